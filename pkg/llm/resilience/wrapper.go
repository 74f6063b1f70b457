package resilience

import (
	"context"

	"github.com/kart-io/docqa/pkg/llm"
)

// ChatProvider 为 llm.ChatProvider 增加重试、超时与熔断。
type ChatProvider struct {
	inner   llm.ChatProvider
	policy  RetryPolicy
	breaker *Breaker
}

// WrapChat 包装 Chat 供应商。breaker 可为 nil。
func WrapChat(inner llm.ChatProvider, policy RetryPolicy, breaker *Breaker) *ChatProvider {
	return &ChatProvider{inner: inner, policy: policy, breaker: breaker}
}

func (c *ChatProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return Do(ctx, c.policy, func(ctx context.Context) (string, error) {
		if err := c.breaker.Allow(); err != nil {
			return "", err
		}
		out, err := c.inner.Chat(ctx, messages)
		c.breaker.Record(err)
		return out, err
	})
}

func (c *ChatProvider) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return Do(ctx, c.policy, func(ctx context.Context) (string, error) {
		if err := c.breaker.Allow(); err != nil {
			return "", err
		}
		out, err := c.inner.Generate(ctx, prompt, systemPrompt)
		c.breaker.Record(err)
		return out, err
	})
}

func (c *ChatProvider) Name() string { return c.inner.Name() }

// Breaker 返回熔断器，用于健康检查。
func (c *ChatProvider) Breaker() *Breaker { return c.breaker }

// EmbeddingProvider 为 llm.EmbeddingProvider 增加重试与超时。
type EmbeddingProvider struct {
	inner  llm.EmbeddingProvider
	policy RetryPolicy
}

// WrapEmbedding 包装 Embedding 供应商。
func WrapEmbedding(inner llm.EmbeddingProvider, policy RetryPolicy) *EmbeddingProvider {
	return &EmbeddingProvider{inner: inner, policy: policy}
}

func (e *EmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return Do(ctx, e.policy, func(ctx context.Context) ([][]float32, error) {
		return e.inner.Embed(ctx, texts)
	})
}

func (e *EmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return Do(ctx, e.policy, func(ctx context.Context) ([]float32, error) {
		return e.inner.EmbedSingle(ctx, text)
	})
}

func (e *EmbeddingProvider) Name() string { return e.inner.Name() }

var (
	_ llm.ChatProvider      = (*ChatProvider)(nil)
	_ llm.EmbeddingProvider = (*EmbeddingProvider)(nil)
)
