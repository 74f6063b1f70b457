package biz

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/internal/pkg/rag/docutil"
	"github.com/kart-io/docqa/internal/pkg/rag/textutil"
	"github.com/kart-io/docqa/pkg/llm"
	errno "github.com/kart-io/docqa/pkg/utils/errors"
)

// ErrRebuildInProgress 已有重建在执行。
var ErrRebuildInProgress = errno.ErrDocQARebuildInProgress

// ErrIndexNotReady 索引尚未加载或构建。
var ErrIndexNotReady = errno.ErrDocQAIndexUnavailable

// IndexerConfig 索引器配置。
type IndexerConfig struct {
	// DocsDir 语料目录。
	DocsDir string
	// Extensions 参与索引的文件扩展名。
	Extensions []string
	// ChunkSize 块最大字符数。
	ChunkSize int
	// ChunkOverlap 相邻块重叠字符数。
	ChunkOverlap int
	// Separator 优先切分的分隔符。
	Separator string
	// EmbedBatchSize 每批计算向量的块数。
	EmbedBatchSize int
}

// DefaultIndexerConfig 返回默认配置。
func DefaultIndexerConfig() *IndexerConfig {
	return &IndexerConfig{
		DocsDir:        "docs",
		Extensions:     []string{".txt", ".md"},
		ChunkSize:      1500,
		ChunkOverlap:   200,
		Separator:      "\n\n",
		EmbedBatchSize: 16,
	}
}

// IndexStats 索引统计。
type IndexStats struct {
	Backend  string    `json:"backend"`
	Ready    bool      `json:"ready"`
	Chunks   int       `json:"chunks"`
	Files    int       `json:"files"`
	Skipped  int       `json:"skipped"`
	Source   string    `json:"source"`
	BuiltAt  time.Time `json:"built_at,omitempty"`
	Duration string    `json:"duration,omitempty"`
}

type liveIndex struct {
	index store.VectorIndex
	stats IndexStats
}

// Indexer 切分、向量化并构建语料索引。重建互斥，完成后原子替换在用索引。
type Indexer struct {
	backend  store.IndexBackend
	embedder llm.EmbeddingProvider
	splitter *textutil.Splitter
	config   *IndexerConfig

	rebuildMu sync.Mutex
	live      atomic.Pointer[liveIndex]
}

// NewIndexer 创建索引器。
func NewIndexer(backend store.IndexBackend, embedder llm.EmbeddingProvider, config *IndexerConfig) (*Indexer, error) {
	if config == nil {
		config = DefaultIndexerConfig()
	}
	splitter, err := textutil.NewSplitter(config.ChunkSize, config.ChunkOverlap, config.Separator)
	if err != nil {
		return nil, err
	}
	if config.EmbedBatchSize <= 0 {
		config.EmbedBatchSize = DefaultIndexerConfig().EmbedBatchSize
	}
	return &Indexer{
		backend:  backend,
		embedder: embedder,
		splitter: splitter,
		config:   config,
	}, nil
}

// Ready 在用索引是否存在。
func (i *Indexer) Ready() bool { return i.live.Load() != nil }

// Stats 返回在用索引的统计。
func (i *Indexer) Stats() IndexStats {
	if cur := i.live.Load(); cur != nil {
		return cur.stats
	}
	return IndexStats{Backend: i.backend.Name()}
}

// Index 返回在用索引，未就绪时为 nil。
func (i *Indexer) Index() store.VectorIndex {
	if cur := i.live.Load(); cur != nil {
		return cur.index
	}
	return nil
}

// Load 加载持久化的索引并设为在用索引。
func (i *Indexer) Load(ctx context.Context) error {
	idx, err := i.backend.Load(ctx)
	if err != nil {
		return err
	}
	i.live.Store(&liveIndex{
		index: idx,
		stats: IndexStats{Backend: i.backend.Name(), Ready: true, Chunks: idx.Len(), Source: "snapshot"},
	})
	logger.Infow("Index loaded", "backend", i.backend.Name(), "chunks", idx.Len())
	return nil
}

// EnsureIndex 优先加载快照，快照缺失或损坏时重建。
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	err := i.Load(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrInvalidIndex) {
		logger.Infow("No usable index snapshot, rebuilding", "reason", err.Error())
	} else {
		logger.Warnw("Failed to load index, rebuilding", "error", err.Error())
	}
	_, err = i.Rebuild(ctx)
	return err
}

// Rebuild 从语料目录重建索引。已有重建在执行时立即返回 ErrRebuildInProgress。
// 失败时之前的在用索引保持不变。
func (i *Indexer) Rebuild(ctx context.Context) (*IndexStats, error) {
	if !i.rebuildMu.TryLock() {
		return nil, ErrRebuildInProgress
	}
	defer i.rebuildMu.Unlock()

	ctx, span := tracer.Start(ctx, "indexer.Rebuild")
	defer span.End()

	start := time.Now()
	logger.Infow("Rebuilding index", "docs_dir", i.config.DocsDir, "backend", i.backend.Name())

	chunks, files, skipped, err := i.collectChunks(ctx)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		logger.Warnw("Corpus is empty, building empty index", "docs_dir", i.config.DocsDir)
	}

	if err := i.embed(ctx, chunks); err != nil {
		return nil, errno.ErrDocQAIndexFailed.WithCause(err)
	}

	idx, err := i.backend.Build(ctx, chunks)
	if err != nil {
		return nil, errno.ErrDocQAIndexFailed.WithCause(err)
	}

	stats := IndexStats{
		Backend:  i.backend.Name(),
		Ready:    true,
		Chunks:   idx.Len(),
		Files:    files,
		Skipped:  skipped,
		Source:   "rebuild",
		BuiltAt:  time.Now().UTC(),
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	i.live.Store(&liveIndex{index: idx, stats: stats})

	span.SetAttributes(attribute.Int("docqa.chunks", stats.Chunks), attribute.Int("docqa.files", files))
	logger.Infow("Index rebuilt",
		"chunks", stats.Chunks,
		"files", files,
		"skipped", skipped,
		"duration", stats.Duration,
	)
	return &stats, nil
}

// collectChunks 读取并切分语料，单个文件失败只记录日志并跳过。
func (i *Indexer) collectChunks(ctx context.Context) ([]store.Chunk, int, int, error) {
	if !docutil.DirExists(i.config.DocsDir) {
		logger.Warnw("Docs directory does not exist", "docs_dir", i.config.DocsDir)
		return nil, 0, 0, nil
	}

	paths, err := docutil.FindFiles(i.config.DocsDir, i.config.Extensions)
	if err != nil {
		return nil, 0, 0, errno.ErrDocQAIndexFailed.WithCause(err)
	}

	var (
		chunks  []store.Chunk
		files   int
		skipped int
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, 0, 0, err
		}

		rel, err := filepath.Rel(i.config.DocsDir, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		content, err := docutil.ReadFileContent(path)
		if err != nil {
			logger.Warnw("Skipping unreadable document", "path", rel, "error", err.Error())
			skipped++
			continue
		}

		files++
		for n, seg := range i.splitter.Split(content) {
			chunks = append(chunks, store.Chunk{
				ID:      fmt.Sprintf("%s#%d", rel, n),
				Source:  rel,
				Ordinal: n,
				Offset:  seg.Offset,
				Text:    seg.Text,
			})
		}
	}
	return chunks, files, skipped, nil
}

// embed 分批计算向量，任一批失败即整体失败。
func (i *Indexer) embed(ctx context.Context, chunks []store.Chunk) error {
	batch := i.config.EmbedBatchSize
	for start := 0; start < len(chunks); start += batch {
		end := min(start+batch, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		vectors, err := i.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end, len(vectors))
		}
		for n, v := range vectors {
			chunks[start+n].Embedding = v
		}
		logger.Debugw("Embedded batch", "from", start, "to", end)
	}
	return nil
}

// Query 向量化 question 并返回最相似的 k 个块。
func (i *Indexer) Query(ctx context.Context, question string, k int) ([]store.ScoredChunk, error) {
	cur := i.live.Load()
	if cur == nil {
		return nil, ErrIndexNotReady
	}
	if k <= 0 || cur.index.Len() == 0 {
		return []store.ScoredChunk{}, nil
	}

	ctx, span := tracer.Start(ctx, "indexer.Query")
	defer span.End()

	vector, err := i.embedder.EmbedSingle(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	return cur.index.Search(ctx, vector, k)
}
