package biz

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// FirstQuestionSentinel 没有历史时注入提示词的内容。
const FirstQuestionSentinel = "This is the first question in our conversation."

// DefaultMemorySize 每个会话保留的轮数。
const DefaultMemorySize = 8

// Turn 一轮问答。
type Turn struct {
	Question string
	Answer   string
}

// Memory 单个会话的有界缓冲，超出容量时淘汰最早的一轮。
type Memory struct {
	mu       sync.Mutex
	capacity int
	turns    []Turn
	hydrated bool
}

// NewMemory 创建容量为 capacity 的缓冲，capacity <= 0 时使用 DefaultMemorySize。
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultMemorySize
	}
	return &Memory{capacity: capacity}
}

// Add 追加一轮。
func (m *Memory) Add(question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, Turn{Question: question, Answer: answer})
	if over := len(m.turns) - m.capacity; over > 0 {
		m.turns = append(m.turns[:0:0], m.turns[over:]...)
	}
}

// Turns 返回按时间升序的副本。
func (m *Memory) Turns() []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Turn(nil), m.turns...)
}

// Len 当前轮数。
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

// Clear 清空缓冲。清空后不再从持久化历史回填。
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
	m.hydrated = true
}

// Hydrated 是否已回填或已清空过。
func (m *Memory) Hydrated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hydrated
}

// Hydrate 用持久化历史初始化缓冲，只有首次调用生效。
func (m *Memory) Hydrate(turns []Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hydrated {
		return
	}
	m.hydrated = true
	if over := len(turns) - m.capacity; over > 0 {
		turns = turns[over:]
	}
	m.turns = append(append([]Turn(nil), turns...), m.turns...)
	if over := len(m.turns) - m.capacity; over > 0 {
		m.turns = m.turns[over:]
	}
}

// Render 渲染为提示词中的历史段落。
func (m *Memory) Render() string {
	return RenderHistory(m.Turns())
}

// RenderHistory 空历史返回 FirstQuestionSentinel。
func RenderHistory(turns []Turn) string {
	if len(turns) == 0 {
		return FirstQuestionSentinel
	}
	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for _, t := range turns {
		b.WriteString("User: ")
		b.WriteString(t.Question)
		b.WriteString("\nAssistant: ")
		b.WriteString(t.Answer)
		b.WriteString("\n")
	}
	return b.String()
}

// DefaultMaxSessions 进程内最多保留的会话缓冲数。
const DefaultMaxSessions = 10000

// MemoryRegistry 按会话 ID 管理 Memory，超出上限时淘汰最久未用的会话。
// 清空时间单独记录，缓冲被淘汰后重新回填时仍跳过清空之前的轮次。
type MemoryRegistry struct {
	mu          sync.Mutex
	capacity    int
	maxSessions int
	order       *list.List
	entries     map[string]*list.Element

	clearedOrder *list.List
	cleared      map[string]*list.Element
}

type memoryEntry struct {
	sessionID string
	memory    *Memory
}

type clearedEntry struct {
	sessionID string
	at        time.Time
}

// NewMemoryRegistry 创建注册表。
func NewMemoryRegistry(capacity, maxSessions int) *MemoryRegistry {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &MemoryRegistry{
		capacity:    capacity,
		maxSessions: maxSessions,
		order:       list.New(),
		entries:     make(map[string]*list.Element),

		clearedOrder: list.New(),
		cleared:      make(map[string]*list.Element),
	}
}

// Get 返回会话的 Memory，不存在时创建。
func (r *MemoryRegistry) Get(sessionID string) *Memory {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.entries[sessionID]; ok {
		r.order.MoveToFront(el)
		return el.Value.(*memoryEntry).memory
	}

	mem := NewMemory(r.capacity)
	r.entries[sessionID] = r.order.PushFront(&memoryEntry{sessionID: sessionID, memory: mem})
	for r.order.Len() > r.maxSessions {
		oldest := r.order.Back()
		r.order.Remove(oldest)
		delete(r.entries, oldest.Value.(*memoryEntry).sessionID)
	}
	return mem
}

// Clear 清空会话缓冲并记录清空时间。持久化历史不受影响，
// 但 at 之前的轮次不会再回填。
func (r *MemoryRegistry) Clear(sessionID string, at time.Time) {
	r.Get(sessionID).Clear()

	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.cleared[sessionID]; ok {
		el.Value.(*clearedEntry).at = at
		r.clearedOrder.MoveToFront(el)
		return
	}
	r.cleared[sessionID] = r.clearedOrder.PushFront(&clearedEntry{sessionID: sessionID, at: at})
	for r.clearedOrder.Len() > r.maxSessions {
		oldest := r.clearedOrder.Back()
		r.clearedOrder.Remove(oldest)
		delete(r.cleared, oldest.Value.(*clearedEntry).sessionID)
	}
}

// ClearedAt 返回会话最近一次清空的时间。
func (r *MemoryRegistry) ClearedAt(sessionID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.cleared[sessionID]
	if !ok {
		return time.Time{}, false
	}
	return el.Value.(*clearedEntry).at, true
}

// Len 会话数。
func (r *MemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}
