package docqa

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/llm/resilience"
	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*AssistantOptions)(nil)

// AssistantOptions 对话、路由与生成配置。
type AssistantOptions struct {
	// MemorySize 每个会话保留的对话轮数。
	MemorySize int `json:"memory-size" mapstructure:"memory-size"`
	// HistoryContext 进程重启后从会话存储回填的轮数。
	HistoryContext int `json:"history-context" mapstructure:"history-context"`
	// MaxSessions 进程内缓冲的会话上限。
	MaxSessions int `json:"max-sessions" mapstructure:"max-sessions"`
	// AgentOrder 能力体优先级。
	AgentOrder   []string      `json:"agent-order" mapstructure:"agent-order"`
	AgentTimeout time.Duration `json:"agent-timeout" mapstructure:"agent-timeout"`
	// GenerationTimeout 单次生成调用的超时。
	GenerationTimeout time.Duration `json:"generation-timeout" mapstructure:"generation-timeout"`
	// GenerationRetries 首次调用之后的重试次数。
	GenerationRetries int           `json:"generation-retries" mapstructure:"generation-retries"`
	RetryBackoff      time.Duration `json:"retry-backoff" mapstructure:"retry-backoff"`
	RetryMaxBackoff   time.Duration `json:"retry-max-backoff" mapstructure:"retry-max-backoff"`
	// BreakerThreshold 连续失败多少次后熔断生成调用，0 表示不熔断。
	BreakerThreshold int           `json:"breaker-threshold" mapstructure:"breaker-threshold"`
	BreakerCooldown  time.Duration `json:"breaker-cooldown" mapstructure:"breaker-cooldown"`
}

// NewAssistantOptions 返回默认配置。
func NewAssistantOptions() *AssistantOptions {
	def := resilience.DefaultRetryPolicy()
	return &AssistantOptions{
		MemorySize:        8,
		HistoryContext:    5,
		MaxSessions:       10000,
		AgentOrder:        []string{"SQL Assistant", "Knowledge Base"},
		AgentTimeout:      3 * time.Minute,
		GenerationTimeout: def.AttemptTimeout,
		GenerationRetries: def.Attempts - 1,
		RetryBackoff:      def.InitialBackoff,
		RetryMaxBackoff:   def.MaxBackoff,
		BreakerThreshold:  5,
		BreakerCooldown:   30 * time.Second,
	}
}

// AddFlags 注册 assistant.* 参数。
func (o *AssistantOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "assistant."
	fs.IntVar(&o.MemorySize, p+"memory-size", o.MemorySize, "Exchanges kept in each session's conversation memory.")
	fs.IntVar(&o.HistoryContext, p+"history-context", o.HistoryContext, "Stored exchanges used to rebuild memory for a session unseen since startup.")
	fs.IntVar(&o.MaxSessions, p+"max-sessions", o.MaxSessions, "Sessions kept in memory before the least recently used is evicted.")
	fs.StringSliceVar(&o.AgentOrder, p+"agent-order", o.AgentOrder, "Agent priority used to order aggregated answers.")
	fs.DurationVar(&o.AgentTimeout, p+"agent-timeout", o.AgentTimeout, "Timeout of a single agent invocation.")
	fs.DurationVar(&o.GenerationTimeout, p+"generation-timeout", o.GenerationTimeout, "Timeout of a single generation attempt.")
	fs.IntVar(&o.GenerationRetries, p+"generation-retries", o.GenerationRetries, "Retries after the first generation attempt.")
	fs.DurationVar(&o.RetryBackoff, p+"retry-backoff", o.RetryBackoff, "Initial backoff between generation attempts.")
	fs.DurationVar(&o.RetryMaxBackoff, p+"retry-max-backoff", o.RetryMaxBackoff, "Maximum backoff between generation attempts.")
	fs.IntVar(&o.BreakerThreshold, p+"breaker-threshold", o.BreakerThreshold, "Consecutive generation failures that open the circuit breaker, 0 disables.")
	fs.DurationVar(&o.BreakerCooldown, p+"breaker-cooldown", o.BreakerCooldown, "How long the breaker stays open before a probe call.")
}

// Validate 校验配置。
func (o *AssistantOptions) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.MemorySize <= 0 {
		errs = append(errs, fmt.Errorf("assistant.memory-size must be positive"))
	}
	if o.HistoryContext < 0 || o.HistoryContext > o.MemorySize {
		errs = append(errs, fmt.Errorf("assistant.history-context must be in [0, memory-size]"))
	}
	if o.AgentTimeout <= 0 {
		errs = append(errs, fmt.Errorf("assistant.agent-timeout must be positive"))
	}
	if o.GenerationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("assistant.generation-timeout must be positive"))
	}
	if o.BreakerThreshold > 0 && o.BreakerCooldown <= 0 {
		errs = append(errs, fmt.Errorf("assistant.breaker-cooldown must be positive"))
	}
	if o.GenerationRetries < 0 {
		errs = append(errs, fmt.Errorf("assistant.generation-retries must not be negative"))
	}
	return errs
}

// RetryPolicy 生成调用的重试策略。
func (o *AssistantOptions) RetryPolicy() resilience.RetryPolicy {
	p := resilience.DefaultRetryPolicy()
	p.Attempts = o.GenerationRetries + 1
	p.AttemptTimeout = o.GenerationTimeout
	if o.RetryBackoff > 0 {
		p.InitialBackoff = o.RetryBackoff
	}
	if o.RetryMaxBackoff > 0 {
		p.MaxBackoff = o.RetryMaxBackoff
	}
	return p
}
