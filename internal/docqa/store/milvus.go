package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kart-io/logger"
	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/docqa/pkg/component/milvus"
)

const (
	fieldChunkID  = "chunk_id"
	fieldSource   = "source"
	fieldText     = "text"
	fieldOrdinal  = "ordinal"
	fieldOffset   = "offset"
	// fieldPosition 块在整次重建中的插入序号，同分时以此保持与 FlatIndex 一致的顺序。
	fieldPosition = "position"

	maxTextLen = 65535
)

var outputFields = []string{fieldChunkID, fieldSource, fieldText, fieldOrdinal, fieldOffset, fieldPosition}

// MilvusClient MilvusBackend 依赖的客户端能力，由 *milvus.Client 实现。
type MilvusClient interface {
	CreateCollection(ctx context.Context, schema *milvus.CollectionSchema) error
	Insert(ctx context.Context, collection string, data *milvus.InsertData) error
	Search(ctx context.Context, collection string, vector []float32, topK int, outputFields []string) ([]milvus.SearchResult, error)
	ListCollections(ctx context.Context) ([]string, error)
	DropCollection(ctx context.Context, collection string) error
	RowCount(ctx context.Context, collection string) (int64, error)
}

// MilvusBackend 每次重建写入新一代集合 <collection>_<unixnano>，
// 完成后切换并删除旧一代。
type MilvusBackend struct {
	client     MilvusClient
	collection string
	batchSize  int
	now        func() time.Time

	mu     sync.Mutex
	active string
}

// NewMilvusBackend 创建 Milvus 后端。
func NewMilvusBackend(client MilvusClient, collection string) *MilvusBackend {
	return &MilvusBackend{
		client:     client,
		collection: collection,
		batchSize:  256,
		now:        time.Now,
	}
}

// Name 实现 IndexBackend。
func (b *MilvusBackend) Name() string { return "milvus" }

// Active 返回当前在用的集合名。
func (b *MilvusBackend) Active() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

func (b *MilvusBackend) generationName() string {
	return b.collection + "_" + strconv.FormatInt(b.now().UnixNano(), 10)
}

// generation 解析集合名中的代号，不属于本后端的返回 false。
func (b *MilvusBackend) generation(name string) (int64, bool) {
	rest, ok := strings.CutPrefix(name, b.collection+"_")
	if !ok {
		return 0, false
	}
	gen, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return gen, true
}

// Build 实现 IndexBackend。
func (b *MilvusBackend) Build(ctx context.Context, chunks []Chunk) (VectorIndex, error) {
	dim := 0
	if len(chunks) > 0 {
		dim = len(chunks[0].Embedding)
	}
	if dim == 0 {
		// 空语料不建集合，检索直接返回空
		b.swap(ctx, "")
		return &MilvusIndex{client: b.client}, nil
	}

	name := b.generationName()
	err := b.client.CreateCollection(ctx, &milvus.CollectionSchema{
		Name:        name,
		Description: "docqa corpus chunks",
		Dimension:   dim,
		MetaFields: []milvus.MetaField{
			{Name: fieldChunkID, DataType: entity.FieldTypeVarChar, MaxLen: 1024},
			{Name: fieldSource, DataType: entity.FieldTypeVarChar, MaxLen: 1024},
			{Name: fieldText, DataType: entity.FieldTypeVarChar, MaxLen: maxTextLen},
			{Name: fieldOrdinal, DataType: entity.FieldTypeInt64},
			{Name: fieldOffset, DataType: entity.FieldTypeInt64},
			{Name: fieldPosition, DataType: entity.FieldTypeInt64},
		},
	})
	if err != nil {
		return nil, err
	}

	for start := 0; start < len(chunks); start += b.batchSize {
		end := min(start+b.batchSize, len(chunks))
		if err := b.client.Insert(ctx, name, toInsertData(chunks[start:end], start)); err != nil {
			b.drop(ctx, name)
			return nil, err
		}
	}

	b.swap(ctx, name)
	return &MilvusIndex{client: b.client, collection: name, count: len(chunks), dim: dim}, nil
}

// swap 切换在用集合并删除上一代。
func (b *MilvusBackend) swap(ctx context.Context, name string) {
	b.mu.Lock()
	prev := b.active
	b.active = name
	b.mu.Unlock()

	if prev != "" && prev != name {
		b.drop(ctx, prev)
	}
}

func (b *MilvusBackend) drop(ctx context.Context, name string) {
	if err := b.client.DropCollection(ctx, name); err != nil {
		logger.Warnw("Failed to drop milvus collection", "collection", name, "error", err.Error())
	}
}

// Load 选择最新一代集合作为在用索引。
func (b *MilvusBackend) Load(ctx context.Context) (VectorIndex, error) {
	names, err := b.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list collections: %v", ErrInvalidIndex, err)
	}

	var (
		latest    string
		latestGen int64 = -1
	)
	for _, n := range names {
		if gen, ok := b.generation(n); ok && gen > latestGen {
			latest, latestGen = n, gen
		}
	}
	if latest == "" {
		return nil, fmt.Errorf("%w: no collection for %s", ErrInvalidIndex, b.collection)
	}

	count, err := b.client.RowCount(ctx, latest)
	if err != nil {
		return nil, fmt.Errorf("%w: row count: %v", ErrInvalidIndex, err)
	}

	b.mu.Lock()
	b.active = latest
	b.mu.Unlock()
	return &MilvusIndex{client: b.client, collection: latest, count: int(count)}, nil
}

func toInsertData(chunks []Chunk, base int) *milvus.InsertData {
	data := &milvus.InsertData{
		Embeddings: make([][]float32, len(chunks)),
		Strings: map[string][]string{
			fieldChunkID: make([]string, len(chunks)),
			fieldSource:  make([]string, len(chunks)),
			fieldText:    make([]string, len(chunks)),
		},
		Int64s: map[string][]int64{
			fieldOrdinal:  make([]int64, len(chunks)),
			fieldOffset:   make([]int64, len(chunks)),
			fieldPosition: make([]int64, len(chunks)),
		},
	}
	for i, c := range chunks {
		data.Embeddings[i] = c.Embedding
		data.Strings[fieldChunkID][i] = c.ID
		data.Strings[fieldSource][i] = c.Source
		data.Strings[fieldText][i] = truncateBytes(c.Text, maxTextLen)
		data.Int64s[fieldOrdinal][i] = int64(c.Ordinal)
		data.Int64s[fieldOffset][i] = int64(c.Offset)
		data.Int64s[fieldPosition][i] = int64(base + i)
	}
	return data
}

// truncateBytes 按字节截断且不破坏 UTF-8 字符。
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// MilvusIndex 指向某一代集合的只读索引。
type MilvusIndex struct {
	client     MilvusClient
	collection string
	count      int
	dim        int
}

// Collection 返回集合名。
func (m *MilvusIndex) Collection() string { return m.collection }

// Len 实现 VectorIndex。
func (m *MilvusIndex) Len() int { return m.count }

// Dimension 实现 VectorIndex，加载得到的索引返回 0。
func (m *MilvusIndex) Dimension() int { return m.dim }

// Search 实现 VectorIndex。
func (m *MilvusIndex) Search(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error) {
	if k <= 0 || m.collection == "" || m.count == 0 {
		return []ScoredChunk{}, nil
	}
	results, err := m.client.Search(ctx, m.collection, vector, k, outputFields)
	if err != nil {
		return nil, err
	}

	type hit struct {
		chunk    ScoredChunk
		position int64
	}
	hits := make([]hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, hit{
			chunk: ScoredChunk{
				Chunk: Chunk{
					ID:      r.Strings[fieldChunkID],
					Source:  r.Strings[fieldSource],
					Text:    r.Strings[fieldText],
					Ordinal: int(r.Int64s[fieldOrdinal]),
					Offset:  int(r.Int64s[fieldOffset]),
				},
				Score: float64(r.Score),
			},
			position: r.Int64s[fieldPosition],
		})
	}
	// 同分时按插入序号排序，与 FlatIndex 的插入顺序一致
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].chunk.Score != hits[j].chunk.Score {
			return hits[i].chunk.Score > hits[j].chunk.Score
		}
		return hits[i].position < hits[j].position
	})

	out := make([]ScoredChunk, len(hits))
	for i, h := range hits {
		out[i] = h.chunk
	}
	return out, nil
}
