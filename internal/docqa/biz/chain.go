package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kart-io/docqa/internal/docqa/store"
	logctx "github.com/kart-io/docqa/pkg/infra/logger"
	"github.com/kart-io/docqa/pkg/llm"
	"github.com/kart-io/docqa/pkg/llm/resilience"
)

// DefaultTopK 每个问题检索的块数。
const DefaultTopK = 5

const promptTemplate = `You are a knowledgeable HR assistant specializing in company policies and procedures.
When answering questions, provide comprehensive, detailed information including:
- Exact policy requirements and procedures
- Specific deadlines, timeframes, and important dates
- Required forms, documents, or steps
- Contact information or responsible parties
- Any conditions, exceptions, or special circumstances
- Policy section references when available.

IMPORTANT: For health-related policies, always prioritize accuracy and completeness over brevity.
If the context doesn't contain enough information to answer completely, say so clearly.
Always be thorough and precise in your responses.

{chat_history_section}

Context: {context}
Question: {question}

Detailed Answer:
`

// BuildPrompt 渲染固定模板。historySection 为 RenderHistory 的输出。
func BuildPrompt(question, historySection string, chunks []store.ScoredChunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.NewReplacer(
		"{chat_history_section}", historySection,
		"{context}", strings.Join(texts, "\n\n"),
		"{question}", question,
	).Replace(promptTemplate)
}

// GenerationFailure 生成调用重试耗尽或超时。
type GenerationFailure struct {
	Cause error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("answer generation failed: %v", e.Cause)
}

func (e *GenerationFailure) Unwrap() error { return e.Cause }

// Retriever 按问题检索相关块，由 *Indexer 实现。
type Retriever interface {
	Query(ctx context.Context, question string, k int) ([]store.ScoredChunk, error)
}

// ChainConfig 回答链配置。
type ChainConfig struct {
	// TopK 检索块数。
	TopK int
	// Retry 生成调用的重试策略。
	Retry resilience.RetryPolicy
}

// DefaultChainConfig 检索 5 块，生成单次 60 秒、最多重试 2 次。
func DefaultChainConfig() *ChainConfig {
	return &ChainConfig{
		TopK:  DefaultTopK,
		Retry: resilience.DefaultRetryPolicy(),
	}
}

// Chain 检索增强的回答链：检索、拼装提示词、生成。
type Chain struct {
	retriever Retriever
	chat      llm.ChatProvider
	config    *ChainConfig
}

// NewChain 创建回答链。
func NewChain(retriever Retriever, chat llm.ChatProvider, config *ChainConfig) *Chain {
	if config == nil {
		config = DefaultChainConfig()
	}
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	return &Chain{retriever: retriever, chat: chat, config: config}
}

// Answer 只用问题本身检索，历史仅进入提示词。
func (c *Chain) Answer(ctx context.Context, question string, history []Turn) (string, error) {
	ctx, span := tracer.Start(ctx, "chain.Answer")
	defer span.End()
	log := logctx.L(ctx)

	chunks, err := c.retriever.Query(ctx, question, c.config.TopK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return "", fmt.Errorf("retrieve context: %w", err)
	}
	span.SetAttributes(attribute.Int("docqa.retrieved", len(chunks)))

	prompt := BuildPrompt(question, RenderHistory(history), chunks)

	start := time.Now()
	answer, err := resilience.Do(ctx, c.config.Retry, func(ctx context.Context) (string, error) {
		return c.chat.Generate(ctx, prompt, "")
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		log.Errorw("Answer generation failed", "provider", c.chat.Name(), "error", err.Error())
		return "", &GenerationFailure{Cause: err}
	}

	answer = strings.TrimSpace(answer)
	log.Infow("Answer generated",
		"provider", c.chat.Name(),
		"chunks", len(chunks),
		"length", len(answer),
		"elapsed", time.Since(start).String(),
	)
	return answer, nil
}

var _ Retriever = (*Indexer)(nil)
