package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// ErrBreakerOpen 熔断器处于打开状态，调用被拒绝。
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerState 熔断器状态。
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Breaker 连续失败达到阈值后打开，冷却期过后放行一个探测请求。
type Breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker 创建熔断器。threshold <= 0 时返回 nil，nil 熔断器放行所有调用。
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		return nil
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow 判断当前是否可以发起调用。
func (b *Breaker) Allow() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrBreakerOpen
		}
		b.state = StateHalfOpen
		b.probing = true
		logger.Infow("circuit breaker half-open")
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrBreakerOpen
		}
		b.probing = true
	}
	return nil
}

// Record 记录一次调用结果。
func (b *Breaker) Record(err error) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state != StateClosed {
			logger.Infow("circuit breaker closed")
		}
		b.state = StateClosed
		b.failures = 0
		b.probing = false
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		if b.state != StateOpen {
			logger.Warnw("circuit breaker opened", "failures", b.failures)
		}
		b.state = StateOpen
		b.openedAt = b.now()
		b.probing = false
	}
}

// State 返回当前状态。
func (b *Breaker) State() BreakerState {
	if b == nil {
		return StateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
