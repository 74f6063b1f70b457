package biz

import (
	"context"
	"errors"
	"strings"

	"github.com/kart-io/docqa/pkg/llm/resilience"
)

// Agent 名称。
const (
	KnowledgeAgentName = "Knowledge Base"
	SQLAgentName       = "SQL Assistant"
)

// StatusCode 能力体调用结果类型。
type StatusCode int

const (
	StatusOK StatusCode = iota
	StatusEmpty
	StatusFailed
	StatusTimeout
)

func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Status 调用结果及失败原因。
type Status struct {
	Code StatusCode
	Err  error
}

// OK 是否成功产出内容。
func (s Status) OK() bool { return s.Code == StatusOK }

// Agent 可独立回答问题的能力体。
type Agent interface {
	Name() string
	Invoke(ctx context.Context, question string, history []Turn) (string, Status)
}

// statusFor 由 ctx 与 err 推断失败类型。
func statusFor(ctx context.Context, err error) Status {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, resilience.ErrAttemptTimeout) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Status{Code: StatusTimeout, Err: err}
	}
	return Status{Code: StatusFailed, Err: err}
}

// KnowledgeAgent 基于语料索引回答。
type KnowledgeAgent struct {
	chain *Chain
}

// NewKnowledgeAgent 创建知识库能力体。
func NewKnowledgeAgent(chain *Chain) *KnowledgeAgent {
	return &KnowledgeAgent{chain: chain}
}

// Name 实现 Agent。
func (a *KnowledgeAgent) Name() string { return KnowledgeAgentName }

// Invoke 实现 Agent。
func (a *KnowledgeAgent) Invoke(ctx context.Context, question string, history []Turn) (string, Status) {
	answer, err := a.chain.Answer(ctx, question, history)
	if err != nil {
		return "", statusFor(ctx, err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", Status{Code: StatusEmpty}
	}
	return answer, Status{Code: StatusOK}
}
