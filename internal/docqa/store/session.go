package store

import (
	"context"
	"time"
)

// DefaultHistoryLimit 未指定 limit 时返回的最大条数。
const DefaultHistoryLimit = 50

// DefaultRetention 会话记录保留时长。
const DefaultRetention = 30 * 24 * time.Hour

// TimestampLayout 定宽 RFC3339 纳秒格式，字典序与时间序一致。
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Exchange 一轮问答记录。
type Exchange struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Question  string    `json:"user"`
	Answer    string    `json:"ai"`
	ExpiresAt int64     `json:"expires_at"`
}

// TimestampString 返回 UTC 定宽时间戳，作为排序键。
func (e *Exchange) TimestampString() string {
	return FormatTimestamp(e.Timestamp)
}

// Expired 判断记录在 now 时是否已过期。
func (e *Exchange) Expired(now time.Time) bool {
	return e.ExpiresAt > 0 && now.Unix() >= e.ExpiresAt
}

// FormatTimestamp 格式化为 TimestampLayout。
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp 解析 FormatTimestamp 的输出。
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// SessionStore 持久化的会话历史。
type SessionStore interface {
	// Name 后端名称。
	Name() string
	// Append 追加一轮问答，由存储分配时间戳与过期时间。
	// 同一会话的时间戳严格递增，冲突时顺延 1ns。
	Append(ctx context.Context, sessionID, question, answer string) (*Exchange, error)
	// Query 按时间升序返回最近 limit 条未过期记录，limit <= 0 时取 DefaultHistoryLimit。
	Query(ctx context.Context, sessionID string, limit int) ([]Exchange, error)
}

// Clock 时间源，测试中可替换。
type Clock interface {
	Now() time.Time
}

// ClockFunc 函数形式的 Clock。
type ClockFunc func() time.Time

// Now 实现 Clock。
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock 系统时钟。
var SystemClock Clock = ClockFunc(time.Now)

// stamp 计算下一条记录的时间戳，保证严格大于 last。
func stamp(now, last time.Time) time.Time {
	now = now.UTC()
	if !last.IsZero() && !now.After(last) {
		return last.Add(time.Nanosecond)
	}
	return now
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}

// tail 返回已按时间升序排列的 exchanges 中最后 limit 条。
func tail(exchanges []Exchange, limit int) []Exchange {
	if len(exchanges) > limit {
		return exchanges[len(exchanges)-limit:]
	}
	return exchanges
}

// SessionOptions 会话存储公共配置。
type SessionOptions struct {
	Retention time.Duration
	Clock     Clock
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.Retention <= 0 {
		o.Retention = DefaultRetention
	}
	if o.Clock == nil {
		o.Clock = SystemClock
	}
	return o
}

func (o SessionOptions) newExchange(sessionID, question, answer string, last time.Time) *Exchange {
	ts := stamp(o.Clock.Now(), last)
	return &Exchange{
		SessionID: sessionID,
		Timestamp: ts,
		Question:  question,
		Answer:    answer,
		ExpiresAt: ts.Add(o.Retention).Unix(),
	}
}
