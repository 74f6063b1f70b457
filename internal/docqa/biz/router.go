package biz

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	logctx "github.com/kart-io/docqa/pkg/infra/logger"
	"github.com/kart-io/docqa/pkg/infra/pool"
	errno "github.com/kart-io/docqa/pkg/utils/errors"
)

// ErrNoAgentsAvailable 启动时没有任何可用能力体。
var ErrNoAgentsAvailable = errno.ErrDocQANoAgents

// DefaultAgentTimeout 单个能力体的超时时间。
const DefaultAgentTimeout = 3 * time.Minute

// DefaultAgentOrder 默认优先级，SQL 在前。
var DefaultAgentOrder = []string{SQLAgentName, KnowledgeAgentName}

// InternalInvariantViolation 作为 panic 值抛出，表示调度状态不一致。
type InternalInvariantViolation struct {
	Detail string
}

func (v InternalInvariantViolation) Error() string {
	return "internal invariant violation: " + v.Detail
}

func assertInvariant(ok bool, format string, args ...any) {
	if !ok {
		panic(InternalInvariantViolation{Detail: fmt.Sprintf(format, args...)})
	}
}

// RouterConfig 路由配置。
type RouterConfig struct {
	// Order 能力体优先级，未知名称忽略，未列出的按注册顺序追加。
	Order []string
	// AgentTimeout 单个能力体的超时时间。
	AgentTimeout time.Duration
}

// AgentOutcome 单个能力体的执行结果。
type AgentOutcome struct {
	Agent   string
	Text    string
	Status  Status
	Elapsed time.Duration
}

// RouteResult 聚合结果。
type RouteResult struct {
	// Answer 聚合后的回答，全部失败时为错误描述。
	Answer string
	// AgentsUsed 成功产出内容的能力体，按优先级排列。
	AgentsUsed []string
	// Outcomes 按优先级排列的每个能力体结果。
	Outcomes []AgentOutcome
}

// AllFailed 是否没有任何能力体成功。
func (r *RouteResult) AllFailed() bool { return len(r.AgentsUsed) == 0 }

// Router 把问题并行分发给全部可用能力体，按优先级聚合输出。
type Router struct {
	agents  []Agent
	pool    *pool.Pool
	timeout time.Duration
}

// NewRouter 创建路由。agents 为启动时确定的可用能力体，p 为 nil 时每个任务独立起 goroutine。
func NewRouter(agents []Agent, p *pool.Pool, config *RouterConfig) *Router {
	if config == nil {
		config = &RouterConfig{}
	}
	timeout := config.AgentTimeout
	if timeout <= 0 {
		timeout = DefaultAgentTimeout
	}
	order := config.Order
	if len(order) == 0 {
		order = DefaultAgentOrder
	}
	return &Router{agents: OrderAgents(agents, order), pool: p, timeout: timeout}
}

// OrderAgents 按 order 排序，未知名称忽略，未列出的能力体按原顺序追加。
func OrderAgents(agents []Agent, order []string) []Agent {
	byName := make(map[string]Agent, len(agents))
	for _, a := range agents {
		byName[a.Name()] = a
	}

	out := make([]Agent, 0, len(agents))
	placed := make(map[string]bool, len(agents))
	for _, name := range order {
		if a, ok := byName[name]; ok && !placed[name] {
			out = append(out, a)
			placed[name] = true
		}
	}
	for _, a := range agents {
		if !placed[a.Name()] {
			out = append(out, a)
			placed[a.Name()] = true
		}
	}
	return out
}

// Agents 返回按优先级排列的能力体。
func (r *Router) Agents() []Agent { return r.agents }

// Has 是否存在指定名称的能力体。
func (r *Router) Has(name string) bool {
	for _, a := range r.agents {
		if a.Name() == name {
			return true
		}
	}
	return false
}

// Route 执行一次分发。超时的能力体不重试，直接排除。
func (r *Router) Route(ctx context.Context, question string, history []Turn) (*RouteResult, error) {
	if len(r.agents) == 0 {
		return nil, ErrNoAgentsAvailable
	}

	ctx, span := tracer.Start(ctx, "router.Route")
	defer span.End()
	log := logctx.L(ctx)

	outcomes := make([]AgentOutcome, len(r.agents))
	var (
		wg        sync.WaitGroup
		completed atomic.Int32
	)
	for i, agent := range r.agents {
		wg.Add(1)
		task := r.task(ctx, agent, question, history, &outcomes[i], &wg, &completed)
		if r.pool == nil {
			go task()
			continue
		}
		if err := r.pool.Submit(task); err != nil {
			log.Warnw("Agent pool rejected task, falling back to goroutine", "agent", agent.Name(), "error", err.Error())
			go task()
		}
	}
	wg.Wait()

	assertInvariant(int(completed.Load()) == len(r.agents), "%d tasks completed for %d agents", completed.Load(), len(r.agents))

	result := aggregate(outcomes)
	for _, o := range outcomes {
		if !o.Status.OK() {
			fields := []interface{}{"agent", o.Agent, "status", o.Status.Code.String(), "elapsed", o.Elapsed.String()}
			if o.Status.Err != nil {
				fields = append(fields, "error", o.Status.Err.Error())
			}
			log.Warnw("Agent produced no answer", fields...)
		}
	}
	span.SetAttributes(attribute.StringSlice("docqa.agents_used", result.AgentsUsed))
	return result, nil
}

type invokeResult struct {
	text   string
	status Status
}

// task 的超时由路由器自身保证：能力体忽略 ctx 时迟到的结果直接丢弃，不写入 out。
func (r *Router) task(ctx context.Context, agent Agent, question string, history []Turn, out *AgentOutcome, wg *sync.WaitGroup, completed *atomic.Int32) func() {
	return func() {
		defer wg.Done()
		defer completed.Add(1)
		start := time.Now()
		out.Agent = agent.Name()

		actx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		done := make(chan invokeResult, 1)
		go func() {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorw("Agent panicked", "agent", agent.Name(), "panic", fmt.Sprint(rec))
					done <- invokeResult{status: Status{Code: StatusFailed, Err: fmt.Errorf("agent panic: %v", rec)}}
				}
			}()
			text, status := agent.Invoke(actx, question, history)
			done <- invokeResult{text: text, status: status}
		}()

		select {
		case res := <-done:
			if res.status.Code == StatusFailed && actx.Err() == context.DeadlineExceeded {
				res.status.Code = StatusTimeout
			}
			out.Text = res.text
			out.Status = res.status
		case <-actx.Done():
			out.Text = ""
			if ctx.Err() != nil {
				out.Status = Status{Code: StatusFailed, Err: ctx.Err()}
			} else {
				out.Status = Status{Code: StatusTimeout, Err: actx.Err()}
			}
		}
		out.Elapsed = time.Since(start)
	}
}

// aggregate 一个结果直接返回文本，多个结果按优先级分段拼接。
func aggregate(outcomes []AgentOutcome) *RouteResult {
	result := &RouteResult{Outcomes: outcomes, AgentsUsed: []string{}}

	var ok []AgentOutcome
	for _, o := range outcomes {
		if o.Status.OK() && strings.TrimSpace(o.Text) != "" {
			ok = append(ok, o)
			result.AgentsUsed = append(result.AgentsUsed, o.Agent)
		}
	}

	switch len(ok) {
	case 0:
		result.Answer = failureAnswer(outcomes)
	case 1:
		result.Answer = ok[0].Text
	default:
		sections := make([]string, len(ok))
		for i, o := range ok {
			sections[i] = fmt.Sprintf("**%s:**\n%s", o.Agent, o.Text)
		}
		result.Answer = strings.Join(sections, "\n\n")
	}
	return result
}

// ErrorAnswerPrefix 错误描述回答的固定前缀，这类回答写入历史但不进入对话缓冲。
const ErrorAnswerPrefix = "Error processing your question: "

// IsErrorAnswer 是否为错误描述回答。
func IsErrorAnswer(answer string) bool { return strings.HasPrefix(answer, ErrorAnswerPrefix) }

func failureAnswer(outcomes []AgentOutcome) string {
	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		parts = append(parts, fmt.Sprintf("%s: %s", o.Agent, o.Status.Code))
	}
	return ErrorAnswerPrefix + "no agent could produce an answer (" + strings.Join(parts, "; ") + ")"
}
