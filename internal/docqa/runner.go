package docqasvc

import (
	"context"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/pkg/infra/server"
)

// backgroundRunner 把阻塞到 ctx 结束的循环适配为 server.Runnable。
type backgroundRunner struct {
	name string
	run  func(ctx context.Context) error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ server.Runnable = (*backgroundRunner)(nil)

func newBackgroundRunner(name string, run func(ctx context.Context) error) *backgroundRunner {
	return &backgroundRunner{name: name, run: run}
}

func (r *backgroundRunner) Name() string { return r.name }

// Start 在后台执行循环，不继承启动 ctx 的取消。
func (r *backgroundRunner) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.run(ctx); err != nil {
			logger.Errorw("Background task exited", "name", r.name, "error", err.Error())
		}
	}()
	return nil
}

// Stop 取消循环并等待退出，ctx 到期时放弃等待。
func (r *backgroundRunner) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
