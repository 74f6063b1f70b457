package biz

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/internal/docqa/store"
	errno "github.com/kart-io/docqa/pkg/utils/errors"
)

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func newTestIndexer(t *testing.T, docs string, emb *hashEmbedder) (*Indexer, *store.FlatBackend) {
	t.Helper()
	backend := store.NewFlatBackend(t.TempDir())
	cfg := DefaultIndexerConfig()
	cfg.DocsDir = docs
	cfg.EmbedBatchSize = 2
	idx, err := NewIndexer(backend, emb, cfg)
	require.NoError(t, err)
	return idx, backend
}

var hrCorpus = map[string]string{
	"vacation.txt":       "Vacation policy: employees receive twenty vacation days per year.",
	"expenses.md":        "Expense reports are submitted monthly through the finance portal.",
	"benefits/dental.md": "Dental insurance covers two cleanings annually.",
	"handbook.pdf":       "ignored binary",
}

func TestIndexer_Rebuild(t *testing.T) {
	emb := &hashEmbedder{}
	idx, backend := newTestIndexer(t, writeCorpus(t, hrCorpus), emb)
	assert.False(t, idx.Ready())

	stats, err := idx.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 3, stats.Chunks)
	assert.Equal(t, "rebuild", stats.Source)
	assert.True(t, idx.Ready())
	assert.FileExists(t, backend.Path())
	// 3 个块，每批 2 个
	assert.Equal(t, int32(2), emb.calls.Load())

	hits, err := idx.Query(context.Background(), "how many vacation days", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "vacation.txt", hits[0].Source)
	assert.Equal(t, "vacation.txt#0", hits[0].ID)

	all, err := idx.Query(context.Background(), "dental", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "benefits/dental.md", all[0].Source)
}

func TestIndexer_RebuildDeterministic(t *testing.T) {
	para := strings.Repeat("Overtime must be approved in advance. ", 20)
	docs := writeCorpus(t, map[string]string{
		"a.md":          para + "\n\n" + para,
		"a/b.md":        "Nested policy.\n\n" + para,
		"z.txt":         hrCorpus["vacation.txt"],
		"notes/ref.txt": para,
	})

	build := func() []store.Chunk {
		idx, _ := newTestIndexer(t, docs, &hashEmbedder{})
		_, err := idx.Rebuild(context.Background())
		require.NoError(t, err)
		flat, ok := idx.Index().(*store.FlatIndex)
		require.True(t, ok)
		return flat.Chunks()
	}

	first, second := build(), build()
	require.Len(t, second, len(first))
	assert.Greater(t, len(first), 4)
	for n := range first {
		assert.Equal(t, first[n].ID, second[n].ID)
		assert.Equal(t, first[n].Source, second[n].Source)
		assert.Equal(t, first[n].Offset, second[n].Offset)
		assert.Equal(t, first[n].Text, second[n].Text)
	}
}

func TestIndexer_EmptyCorpus(t *testing.T) {
	for name, dir := range map[string]string{
		"missing": filepath.Join(t.TempDir(), "missing"),
		"empty":   t.TempDir(),
	} {
		t.Run(name, func(t *testing.T) {
			idx, _ := newTestIndexer(t, dir, &hashEmbedder{})
			stats, err := idx.Rebuild(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 0, stats.Chunks)
			assert.True(t, idx.Ready())

			hits, err := idx.Query(context.Background(), "anything", 5)
			require.NoError(t, err)
			assert.NotNil(t, hits)
			assert.Empty(t, hits)
		})
	}
}

func TestIndexer_QueryNotReady(t *testing.T) {
	idx, _ := newTestIndexer(t, t.TempDir(), &hashEmbedder{})
	_, err := idx.Query(context.Background(), "q", 5)
	assert.ErrorIs(t, err, ErrIndexNotReady)
}

func TestIndexer_QueryNonPositiveK(t *testing.T) {
	emb := &hashEmbedder{}
	idx, _ := newTestIndexer(t, writeCorpus(t, hrCorpus), emb)
	_, err := idx.Rebuild(context.Background())
	require.NoError(t, err)

	before := emb.calls.Load()
	hits, err := idx.Query(context.Background(), "vacation", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, before, emb.calls.Load())
}

func TestIndexer_ConcurrentRebuildRejected(t *testing.T) {
	emb := &hashEmbedder{block: make(chan struct{})}
	idx, _ := newTestIndexer(t, writeCorpus(t, hrCorpus), emb)

	done := make(chan error, 1)
	go func() {
		_, err := idx.Rebuild(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return emb.calls.Load() > 0 }, 2*time.Second, 5*time.Millisecond)

	_, err := idx.Rebuild(context.Background())
	assert.ErrorIs(t, err, ErrRebuildInProgress)

	close(emb.block)
	require.NoError(t, <-done)
	assert.True(t, idx.Ready())
}

func TestIndexer_FailedRebuildKeepsIndex(t *testing.T) {
	emb := &hashEmbedder{}
	idx, _ := newTestIndexer(t, writeCorpus(t, hrCorpus), emb)
	_, err := idx.Rebuild(context.Background())
	require.NoError(t, err)
	before := idx.Index()

	emb.err = errors.New("embedding service unavailable")
	_, err = idx.Rebuild(context.Background())
	require.Error(t, err)
	assert.True(t, errno.IsCode(err, errno.ErrDocQAIndexFailed.Code))
	assert.Same(t, before, idx.Index())
	assert.Equal(t, 3, idx.Stats().Chunks)
}

func TestIndexer_EnsureIndex(t *testing.T) {
	docs := writeCorpus(t, hrCorpus)
	emb := &hashEmbedder{}
	idx, backend := newTestIndexer(t, docs, emb)

	// 无快照时重建
	require.NoError(t, idx.EnsureIndex(context.Background()))
	assert.Equal(t, "rebuild", idx.Stats().Source)

	// 有快照时直接加载，不计算向量
	emb2 := &hashEmbedder{}
	cfg := DefaultIndexerConfig()
	cfg.DocsDir = docs
	again, err := NewIndexer(backend, emb2, cfg)
	require.NoError(t, err)
	require.NoError(t, again.EnsureIndex(context.Background()))
	assert.Equal(t, "snapshot", again.Stats().Source)
	assert.Equal(t, 3, again.Stats().Chunks)
	assert.Equal(t, int32(0), emb2.calls.Load())
}

func TestIndexer_LongDocumentChunks(t *testing.T) {
	para := strings.Repeat("Remote work requires manager approval. ", 30)
	docs := writeCorpus(t, map[string]string{"remote.txt": para + "\n\n" + para + "\n\n" + para})
	idx, _ := newTestIndexer(t, docs, &hashEmbedder{})

	stats, err := idx.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Greater(t, stats.Chunks, 1)

	hits, err := idx.Query(context.Background(), "remote", stats.Chunks)
	require.NoError(t, err)
	for _, h := range hits {
		assert.LessOrEqual(t, len(h.Text), DefaultIndexerConfig().ChunkSize)
		assert.Equal(t, "remote.txt", h.Source)
	}
}
