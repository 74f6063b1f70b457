package docqasvc

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/pkg/llm"
	docqaopts "github.com/kart-io/docqa/pkg/options/docqa"
	httpopts "github.com/kart-io/docqa/pkg/options/http"
	llmopts "github.com/kart-io/docqa/pkg/options/llm"
	logopts "github.com/kart-io/docqa/pkg/options/logger"
	milvusopts "github.com/kart-io/docqa/pkg/options/milvus"
	mongoopts "github.com/kart-io/docqa/pkg/options/mongodb"
	poolopts "github.com/kart-io/docqa/pkg/options/pool"
	redisopts "github.com/kart-io/docqa/pkg/options/redis"
	tracingopts "github.com/kart-io/docqa/pkg/options/tracing"
)

// testProvider 词袋向量加回显生成，不依赖外部服务。
type testProvider struct{}

func (testProvider) Name() string { return "test" }

func (p testProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := p.EmbedSingle(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (testProvider) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 64)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,?!")))
		v[h.Sum32()%64]++
	}
	v[0] += 0.01
	return v, nil
}

func (testProvider) Chat(_ context.Context, messages []llm.Message) (string, error) {
	return messages[len(messages)-1].Content, nil
}

func (testProvider) Generate(_ context.Context, prompt, _ string) (string, error) {
	if strings.Contains(prompt, "vacation") {
		return "Employees get 20 vacation days.", nil
	}
	return "I don't know.", nil
}

func init() {
	llm.RegisterProvider("test", func(map[string]any) (llm.Provider, error) { return testProvider{}, nil })
}

func newTestConfig(t *testing.T) *Config {
	t.Helper()
	docs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "vacation.md"),
		[]byte("Full-time employees receive 20 paid vacation days per year."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "conduct.txt"),
		[]byte("Employees must follow the code of conduct at all times."), 0o644))

	embedding := llmopts.NewEmbeddingOptions()
	embedding.Provider = "test"
	chat := llmopts.NewChatOptions()
	chat.Provider = "test"

	index := docqaopts.NewIndexOptions()
	index.DocsDir = docs
	index.IndexPath = t.TempDir()

	httpOpts := httpopts.NewOptions()
	httpOpts.Addr = "127.0.0.1:0"

	return &Config{
		HTTPOptions:      httpOpts,
		LogOptions:       logopts.NewOptions(),
		TracingOptions:   tracingopts.NewOptions(),
		EmbeddingOptions: embedding,
		ChatOptions:      chat,
		IndexOptions:     index,
		AssistantOptions: docqaopts.NewAssistantOptions(),
		SessionOptions:   docqaopts.NewSessionOptions(),
		SQLAgentOptions:  docqaopts.NewSQLAgentOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		RedisOptions:     redisopts.NewOptions(),
		MongoDBOptions:   mongoopts.NewOptions(),
		PoolOptions:      poolopts.NewOptions(),
	}
}

func TestNewServer_KnowledgeBase(t *testing.T) {
	cfg := newTestConfig(t)
	s, err := cfg.NewServer(context.Background())
	require.NoError(t, err)
	defer s.close()

	health := s.Service().Health()
	assert.True(t, health.Healthy)
	assert.True(t, health.KnowledgeBase)
	assert.False(t, health.SQL)
	assert.Equal(t, "memory", health.SessionBackend)
	assert.Equal(t, 2, health.IndexChunks)

	res, err := s.Service().Chat(context.Background(), "", "How many vacation days do I get?")
	require.NoError(t, err)
	assert.Equal(t, "Employees get 20 vacation days.", res.Response)
	assert.Equal(t, []string{biz.KnowledgeAgentName}, res.AgentsUsed)

	// 快照已写出
	_, err = os.Stat(filepath.Join(cfg.IndexOptions.IndexPath, store.SnapshotFile))
	assert.NoError(t, err)
}

func TestNewServer_UnknownChatProvider(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.ChatOptions.Provider = "nope"
	s, err := cfg.NewServer(context.Background())
	require.NoError(t, err)
	defer s.close()

	assert.False(t, s.Service().Health().Healthy)
	_, err = s.Service().Chat(context.Background(), "", "hi")
	assert.Error(t, err)
}

func TestNewServer_SessionStoreFailure(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.SessionOptions.Backend = docqaopts.SessionBackendSQL
	cfg.SessionOptions.SQL.Driver = "oracle"
	_, err := cfg.NewServer(context.Background())
	assert.Error(t, err)
}

func TestConfig_RebuildIndex(t *testing.T) {
	cfg := newTestConfig(t)
	stats, err := cfg.RebuildIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "flat", stats.Backend)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 2, stats.Chunks)
}

func TestBackgroundRunner(t *testing.T) {
	var running atomic.Bool
	r := newBackgroundRunner("loop", func(ctx context.Context) error {
		running.Store(true)
		<-ctx.Done()
		running.Store(false)
		return nil
	})
	assert.Equal(t, "loop", r.Name())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx))
	// 启动 ctx 取消不影响后台循环
	cancel()
	require.Eventually(t, running.Load, time.Second, 5*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, r.Stop(stopCtx))
	assert.False(t, running.Load())
}
