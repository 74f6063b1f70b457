package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docqa/pkg/utils/json"
)

// EmbeddingCacheConfig Embedding 缓存配置。
type EmbeddingCacheConfig struct {
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
	// Namespace 区分不同模型的向量，通常为模型名。
	Namespace string
}

// DefaultEmbeddingCacheConfig 返回默认的 Embedding 缓存配置。
func DefaultEmbeddingCacheConfig() *EmbeddingCacheConfig {
	return &EmbeddingCacheConfig{
		TTL:       7 * 24 * time.Hour,
		KeyPrefix: "docqa:emb:",
	}
}

// CachedEmbeddingProvider 在 Redis 中缓存向量，重建索引时未变化的分块无需重新计算。
type CachedEmbeddingProvider struct {
	provider EmbeddingProvider
	redis    goredis.UniversalClient
	config   *EmbeddingCacheConfig
}

// NewCachedEmbeddingProvider 创建带缓存的 Embedding Provider。redis 为 nil 时直接透传。
func NewCachedEmbeddingProvider(provider EmbeddingProvider, redis goredis.UniversalClient, config *EmbeddingCacheConfig) *CachedEmbeddingProvider {
	if config == nil {
		config = DefaultEmbeddingCacheConfig()
	}
	return &CachedEmbeddingProvider{provider: provider, redis: redis, config: config}
}

func (c *CachedEmbeddingProvider) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.config.Namespace + "\x00" + text))
	return c.config.KeyPrefix + hex.EncodeToString(sum[:])
}

// EmbedSingle 生成单个文本的 Embedding（带缓存）。
func (c *CachedEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Embed 批量生成 Embedding，只对未命中的文本调用底层 provider。
func (c *CachedEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.redis == nil || len(texts) == 0 {
		return c.provider.Embed(ctx, texts)
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.cacheKey(t)
	}

	embeddings := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	vals, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Warnw("embedding cache read failed, falling back to provider", "error", err.Error())
		vals = make([]interface{}, len(texts))
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			var vec []float32
			if err := json.Unmarshal([]byte(s), &vec); err == nil && len(vec) > 0 {
				embeddings[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, texts[i])
	}

	if len(missTexts) == 0 {
		logger.Debugw("all embeddings served from cache", "total", len(texts))
		return embeddings, nil
	}

	fresh, err := c.provider.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	pipe := c.redis.Pipeline()
	for j, idx := range missIdx {
		embeddings[idx] = fresh[j]
		data, err := json.Marshal(fresh[j])
		if err != nil {
			continue
		}
		pipe.Set(ctx, keys[idx], data, c.config.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warnw("failed to cache embeddings", "error", err.Error(), "count", len(missIdx))
	}

	logger.Debugw("embedding cache", "total", len(texts), "missed", len(missIdx))
	return embeddings, nil
}

// Name 返回底层 provider 的名称。
func (c *CachedEmbeddingProvider) Name() string {
	return c.provider.Name() + "-cached"
}

var _ EmbeddingProvider = (*CachedEmbeddingProvider)(nil)
