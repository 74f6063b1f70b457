package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/kart-io/docqa/internal/pkg/rag/docutil"
	"github.com/kart-io/docqa/internal/pkg/rag/textutil"
)

// SnapshotFile 快照文件名。
const SnapshotFile = "index.gob"

const snapshotVersion = 1

// FlatIndex 内存中的暴力检索索引。
type FlatIndex struct {
	chunks []Chunk
	dim    int
}

// NewFlatIndex 创建索引，所有块的向量维度必须一致。
func NewFlatIndex(chunks []Chunk) (*FlatIndex, error) {
	idx := &FlatIndex{chunks: chunks}
	for i, c := range chunks {
		if i == 0 {
			idx.dim = len(c.Embedding)
			continue
		}
		if len(c.Embedding) != idx.dim {
			return nil, fmt.Errorf("chunk %s: dimension %d, want %d", c.ID, len(c.Embedding), idx.dim)
		}
	}
	return idx, nil
}

// Len 实现 VectorIndex。
func (f *FlatIndex) Len() int { return len(f.chunks) }

// Dimension 实现 VectorIndex。
func (f *FlatIndex) Dimension() int { return f.dim }

// Chunks 返回全部块。
func (f *FlatIndex) Chunks() []Chunk { return f.chunks }

// Search 实现 VectorIndex。
func (f *FlatIndex) Search(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error) {
	if k <= 0 || len(f.chunks) == 0 {
		return []ScoredChunk{}, nil
	}
	if len(vector) != f.dim {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(vector), f.dim)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scored := make([]ScoredChunk, len(f.chunks))
	for i, c := range f.chunks {
		scored[i] = ScoredChunk{Chunk: c, Score: textutil.CosineSimilarity(vector, c.Embedding)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

type snapshot struct {
	Version int
	Chunks  []Chunk
}

// Save 原子地写入快照。
func (f *FlatIndex) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	return docutil.WriteFileAtomic(path, func(file *os.File) error {
		return gob.NewEncoder(file).Encode(snapshot{Version: snapshotVersion, Chunks: f.chunks})
	})
}

// LoadFlatIndex 读取快照。
func LoadFlatIndex(path string) (*FlatIndex, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIndex, err)
	}
	defer file.Close()

	var snap snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidIndex, path, err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: snapshot version %d", ErrInvalidIndex, snap.Version)
	}
	idx, err := NewFlatIndex(snap.Chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIndex, err)
	}
	return idx, nil
}

// FlatBackend 以 gob 快照持久化的本地后端。
type FlatBackend struct {
	dir string
}

// NewFlatBackend 快照保存在 dir/index.gob。
func NewFlatBackend(dir string) *FlatBackend {
	return &FlatBackend{dir: dir}
}

// Name 实现 IndexBackend。
func (b *FlatBackend) Name() string { return "flat" }

// Path 返回快照路径。
func (b *FlatBackend) Path() string { return filepath.Join(b.dir, SnapshotFile) }

// Build 实现 IndexBackend。
func (b *FlatBackend) Build(_ context.Context, chunks []Chunk) (VectorIndex, error) {
	idx, err := NewFlatIndex(chunks)
	if err != nil {
		return nil, err
	}
	if err := idx.Save(b.Path()); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}
	return idx, nil
}

// Load 实现 IndexBackend。
func (b *FlatBackend) Load(_ context.Context) (VectorIndex, error) {
	return LoadFlatIndex(b.Path())
}
