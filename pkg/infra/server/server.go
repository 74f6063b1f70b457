package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// Manager 按注册顺序启动服务，按相反顺序停止。
type Manager struct {
	shutdownTimeout time.Duration

	mu      sync.Mutex
	servers []Runnable
	started []Runnable
}

// NewManager 创建 Manager。
func NewManager(shutdownTimeout time.Duration) *Manager {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	return &Manager{shutdownTimeout: shutdownTimeout}
}

// AddServer 注册服务。
func (m *Manager) AddServer(s Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, s)
}

// Start 启动全部服务，任一失败时停止已启动的服务。
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.started) > 0 {
		return fmt.Errorf("server manager already started")
	}

	for _, s := range m.servers {
		if err := s.Start(ctx); err != nil {
			m.stopLocked(context.Background())
			return fmt.Errorf("start %s: %w", s.Name(), err)
		}
		logger.Infow("server started", "name", s.Name())
		m.started = append(m.started, s)
	}
	return nil
}

// Stop 按相反顺序停止已启动的服务。
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(ctx)
}

func (m *Manager) stopLocked(ctx context.Context) error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		s := m.started[i]
		if err := s.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", s.Name(), err))
			continue
		}
		logger.Infow("server stopped", "name", s.Name())
	}
	m.started = nil
	return utilerrors.NewAggregate(errs)
}

// Run 启动服务并阻塞到 ctx 取消，然后在 shutdownTimeout 内优雅停止。
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	logger.Info("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
	defer cancel()
	return m.Stop(shutdownCtx)
}
