// Package pool 封装 ants 协程池，提供统计与按上下文提交。
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

var (
	// ErrPoolClosed 池已关闭。
	ErrPoolClosed = errors.New("pool closed")
	// ErrPoolOverload 非阻塞模式下池已满。
	ErrPoolOverload = errors.New("pool overloaded")
)

// Config 协程池配置。
type Config struct {
	// Capacity 最大并发 goroutine 数。
	Capacity int
	// ExpiryDuration 空闲 worker 回收时间。
	ExpiryDuration time.Duration
	// Nonblocking 池满时立即返回 ErrPoolOverload。
	Nonblocking bool
	// MaxBlockingTasks 阻塞模式下允许排队的最大任务数，0 表示不限。
	MaxBlockingTasks int
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		Capacity:       64,
		ExpiryDuration: 10 * time.Second,
	}
}

// Stats 池统计快照。
type Stats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Rejected  int64 `json:"rejected"`
	Panics    int64 `json:"panics"`
	Running   int   `json:"running"`
	Capacity  int   `json:"capacity"`
}

// Pool 命名协程池。
type Pool struct {
	name string
	pool *ants.Pool

	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64

	closeOnce sync.Once
	closed    atomic.Bool
}

// New 创建协程池，config 为 nil 时使用默认配置。
func New(name string, config *Config) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Capacity <= 0 {
		return nil, fmt.Errorf("pool %s: capacity must be positive", name)
	}

	p := &Pool{name: name}
	ap, err := ants.NewPool(config.Capacity,
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
		ants.WithPanicHandler(func(r interface{}) {
			p.panics.Add(1)
			logger.Errorw("worker panic recovered", "pool", name, "panic", r)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create ants pool %s: %w", name, err)
	}
	p.pool = ap

	logger.Infow("worker pool created", "name", name, "capacity", config.Capacity)
	return p, nil
}

// Name 返回池名称。
func (p *Pool) Name() string { return p.name }

// Submit 提交任务。
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)
	err := p.pool.Submit(func() {
		defer p.completed.Add(1)
		task()
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ants.ErrPoolOverload):
		p.rejected.Add(1)
		return ErrPoolOverload
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrPoolClosed
	default:
		return err
	}
}

// SubmitWithContext 提交任务；任务开始执行前上下文已取消则跳过。
func (p *Pool) SubmitWithContext(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.Submit(func() {
		if ctx.Err() != nil {
			return
		}
		task()
	})
}

// Stats 返回统计快照。
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Rejected:  p.rejected.Load(),
		Panics:    p.panics.Load(),
		Running:   p.pool.Running(),
		Capacity:  p.pool.Cap(),
	}
}

// Release 等待运行中的任务结束（最多 timeout）后关闭池。
func (p *Pool) Release(timeout time.Duration) {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		if err := p.pool.ReleaseTimeout(timeout); err != nil {
			logger.Warnw("worker pool release timed out", "name", p.name, "error", err.Error())
			return
		}
		logger.Infow("worker pool released", "name", p.name)
	})
}
