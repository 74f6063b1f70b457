package biz

import (
	"context"
	"sync"
)

// SessionLock 按会话 ID 串行化对话轮次。条目按引用计数回收，最后一个持有者释放时删除。
type SessionLock struct {
	mu    sync.Mutex
	locks map[string]*sessionEntry
}

type sessionEntry struct {
	ch   chan struct{}
	refs int
}

// NewSessionLock 创建锁表。
func NewSessionLock() *SessionLock {
	return &SessionLock{locks: make(map[string]*sessionEntry)}
}

// Lock 获取会话锁，ctx 结束时放弃等待并返回错误。成功时返回释放函数。
func (l *SessionLock) Lock(ctx context.Context, sessionID string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[sessionID]
	if !ok {
		e = &sessionEntry{ch: make(chan struct{}, 1)}
		l.locks[sessionID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(sessionID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(sessionID, e)
		})
	}, nil
}

func (l *SessionLock) release(sessionID string, e *sessionEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, sessionID)
	}
}

// Len 当前被持有或等待中的会话数。
func (l *SessionLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
