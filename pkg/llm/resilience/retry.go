// Package resilience 为 LLM 调用提供重试、单次尝试超时与熔断。
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"
)

// RetryPolicy 重试策略。
type RetryPolicy struct {
	// Attempts 总尝试次数（含首次）。
	Attempts int
	// AttemptTimeout 每次尝试的超时时间，0 表示不限制。
	AttemptTimeout time.Duration
	// InitialBackoff 首次重试前的等待时间。
	InitialBackoff time.Duration
	// MaxBackoff 等待时间上限。
	MaxBackoff time.Duration
	// Multiplier 指数退避倍数。
	Multiplier float64
	// Retryable 判断错误是否值得重试，nil 时使用 IsRetryable。
	Retryable func(error) bool
}

// DefaultRetryPolicy 一次调用加两次重试，每次最长 60 秒。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:       3,
		AttemptTimeout: 60 * time.Second,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2,
	}
}

// ExhaustedError 所有尝试均失败。
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do 按策略执行 fn。每次尝试获得独立的超时上下文；父上下文取消时立即返回。
func Do[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	backoff := p.InitialBackoff
	var last error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		out, err := runAttempt(ctx, p.AttemptTimeout, fn)
		if err == nil {
			return out, nil
		}
		last = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !retryable(err) {
			return zero, err
		}
		if attempt == p.Attempts {
			break
		}

		logger.Warnw("llm call failed, retrying",
			"attempt", attempt,
			"backoff", backoff.String(),
			"error", err.Error(),
		)
		if err := wait(ctx, backoff); err != nil {
			return zero, err
		}
		backoff = nextBackoff(backoff, p)
	}
	return zero, &ExhaustedError{Attempts: p.Attempts, Last: last}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := fn(actx)
	if err != nil && actx.Err() != nil && ctx.Err() == nil {
		// 单次尝试超时，统一为 ErrAttemptTimeout 以便重试。
		return out, fmt.Errorf("%w after %s: %v", ErrAttemptTimeout, timeout, err)
	}
	return out, err
}

func nextBackoff(cur time.Duration, p RetryPolicy) time.Duration {
	m := p.Multiplier
	if m < 1 {
		m = 1
	}
	next := time.Duration(float64(cur) * m)
	if p.MaxBackoff > 0 && next > p.MaxBackoff {
		next = p.MaxBackoff
	}
	return next
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ErrAttemptTimeout 单次尝试超过 AttemptTimeout。
var ErrAttemptTimeout = errors.New("attempt timed out")
