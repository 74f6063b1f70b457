package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/pkg/component/milvus"
)

type fakeMilvus struct {
	mu          sync.Mutex
	collections map[string][]milvus.SearchResult
	insertErr   error
	dropped     []string
}

func newFakeMilvus() *fakeMilvus {
	return &fakeMilvus{collections: map[string][]milvus.SearchResult{}}
}

func (f *fakeMilvus) CreateCollection(_ context.Context, schema *milvus.CollectionSchema) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[schema.Name] = nil
	return nil
}

func (f *fakeMilvus) Insert(_ context.Context, collection string, data *milvus.InsertData) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range data.Embeddings {
		r := milvus.SearchResult{
			Score:   float32(data.Embeddings[i][0]),
			Strings: map[string]string{},
			Int64s:  map[string]int64{},
		}
		for k, v := range data.Strings {
			r.Strings[k] = v[i]
		}
		for k, v := range data.Int64s {
			r.Int64s[k] = v[i]
		}
		f.collections[collection] = append(f.collections[collection], r)
	}
	return nil
}

// Search 以第一维作为分数，倒序返回，便于校验重新排序。
func (f *fakeMilvus) Search(_ context.Context, collection string, _ []float32, topK int, _ []string) ([]milvus.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := append([]milvus.SearchResult(nil), f.collections[collection]...)
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	if len(rows) > topK {
		rows = rows[:topK]
	}
	return rows, nil
}

func (f *fakeMilvus) ListCollections(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.collections))
	for n := range f.collections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeMilvus) DropCollection(_ context.Context, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.collections, collection)
	f.dropped = append(f.dropped, collection)
	return nil
}

func (f *fakeMilvus) RowCount(_ context.Context, collection string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.collections[collection])), nil
}

func newTestMilvusBackend(client MilvusClient) *MilvusBackend {
	b := NewMilvusBackend(client, "docqa")
	var tick int64
	b.now = func() time.Time {
		tick++
		return time.Unix(0, 1000+tick)
	}
	return b
}

func TestMilvusBackend_GenerationSwap(t *testing.T) {
	ctx := context.Background()
	fake := newFakeMilvus()
	backend := newTestMilvusBackend(fake)

	first, err := backend.Build(ctx, testChunks())
	require.NoError(t, err)
	firstColl := first.(*MilvusIndex).Collection()
	assert.Equal(t, "docqa_1001", firstColl)
	assert.Equal(t, firstColl, backend.Active())

	second, err := backend.Build(ctx, testChunks()[:2])
	require.NoError(t, err)
	assert.Equal(t, "docqa_1002", backend.Active())
	assert.Equal(t, 2, second.Len())
	assert.Equal(t, []string{firstColl}, fake.dropped)

	names, _ := fake.ListCollections(ctx)
	assert.Equal(t, []string{"docqa_1002"}, names)
}

func TestMilvusBackend_BuildFailureKeepsActive(t *testing.T) {
	ctx := context.Background()
	fake := newFakeMilvus()
	backend := newTestMilvusBackend(fake)

	_, err := backend.Build(ctx, testChunks())
	require.NoError(t, err)
	active := backend.Active()

	fake.insertErr = errors.New("boom")
	_, err = backend.Build(ctx, testChunks())
	require.Error(t, err)
	assert.Equal(t, active, backend.Active())
	assert.Contains(t, fake.dropped, "docqa_1002")
}

func TestMilvusBackend_Load(t *testing.T) {
	ctx := context.Background()
	fake := newFakeMilvus()
	fake.collections["docqa_5"] = make([]milvus.SearchResult, 1)
	fake.collections["docqa_9"] = make([]milvus.SearchResult, 3)
	fake.collections["docqa_x"] = nil
	fake.collections["other_99"] = nil

	backend := newTestMilvusBackend(fake)
	idx, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "docqa_9", backend.Active())
	assert.Equal(t, 3, idx.Len())

	_, err = newTestMilvusBackend(newFakeMilvus()).Load(ctx)
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

func TestMilvusIndex_SearchOrdering(t *testing.T) {
	ctx := context.Background()
	backend := newTestMilvusBackend(newFakeMilvus())
	idx, err := backend.Build(ctx, testChunks())
	require.NoError(t, err)

	got, err := idx.Search(ctx, []float32{1, 0, 0}, 4)
	require.NoError(t, err)
	require.Len(t, got, 4)
	// a.md#0 与 b.md#0 同分，按插入顺序
	assert.Equal(t, "a.md#0", got[0].ID)
	assert.Equal(t, "b.md#0", got[1].ID)
	assert.Equal(t, "vacation policy", got[0].Text)

	empty, err := idx.Search(ctx, []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMilvusIndex_TieBreakFollowsInsertion(t *testing.T) {
	ctx := context.Background()
	// 目录遍历顺序下 a/b.md 先于 a.md，与字符串顺序相反
	chunks := []Chunk{
		{ID: "a/b.md#0", Source: "a/b.md", Text: "nested", Embedding: []float32{1, 0}},
		{ID: "a.md#0", Source: "a.md", Text: "top", Embedding: []float32{1, 0}},
		{ID: "a.md#1", Source: "a.md", Ordinal: 1, Text: "other", Embedding: []float32{0.2, 0.8}},
	}
	backend := newTestMilvusBackend(newFakeMilvus())
	backend.batchSize = 2
	idx, err := backend.Build(ctx, chunks)
	require.NoError(t, err)

	got, err := idx.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	flat, err := NewFlatIndex(chunks)
	require.NoError(t, err)
	want, err := flat.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
	}
	assert.Equal(t, "a/b.md#0", got[0].ID)
}

func TestMilvusBackend_EmptyCorpus(t *testing.T) {
	idx, err := newTestMilvusBackend(newFakeMilvus()).Build(context.Background(), nil)
	require.NoError(t, err)
	got, err := idx.Search(context.Background(), []float32{1}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTruncateBytes(t *testing.T) {
	assert.Equal(t, "abc", truncateBytes("abc", 5))
	assert.Equal(t, "ab", truncateBytes("abc", 2))
	// "中" 占 3 字节，不能从中间截断
	assert.Equal(t, "a", truncateBytes("a中", 2))
}
