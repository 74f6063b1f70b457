package store

import (
	"context"
	"sync"
)

// MemorySessionStore 进程内会话存储，用于测试与单进程部署。
type MemorySessionStore struct {
	opts SessionOptions

	mu       sync.RWMutex
	sessions map[string][]Exchange
}

// NewMemorySessionStore 创建内存存储。
func NewMemorySessionStore(opts SessionOptions) *MemorySessionStore {
	return &MemorySessionStore{
		opts:     opts.withDefaults(),
		sessions: make(map[string][]Exchange),
	}
}

// Name 实现 SessionStore。
func (s *MemorySessionStore) Name() string { return "memory" }

// Append 实现 SessionStore。
func (s *MemorySessionStore) Append(_ context.Context, sessionID, question, answer string) (*Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.sessions[sessionID]
	var last Exchange
	if len(history) > 0 {
		last = history[len(history)-1]
	}
	ex := s.opts.newExchange(sessionID, question, answer, last.Timestamp)
	s.sessions[sessionID] = append(history, *ex)
	return ex, nil
}

// Query 实现 SessionStore，过期记录在读取时过滤并清除。
func (s *MemorySessionStore) Query(_ context.Context, sessionID string, limit int) ([]Exchange, error) {
	now := s.opts.Clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.sessions[sessionID]
	live := make([]Exchange, 0, len(history))
	for _, ex := range history {
		if !ex.Expired(now) {
			live = append(live, ex)
		}
	}
	if len(live) == 0 {
		delete(s.sessions, sessionID)
	} else if len(live) != len(history) {
		s.sessions[sessionID] = live
	}

	recent := tail(live, normalizeLimit(limit))
	out := make([]Exchange, len(recent))
	copy(out, recent)
	return out, nil
}
