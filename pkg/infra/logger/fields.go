// Package logger 在 context 中携带日志字段（请求 ID、会话 ID 等），
// 使一次请求链路上的日志自动带上这些字段。
package logger

import (
	"context"
	"sort"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
)

type contextKey int

const fieldsKey contextKey = iota

type fields map[string]interface{}

func fromContext(ctx context.Context) fields {
	if f, ok := ctx.Value(fieldsKey).(fields); ok {
		return f
	}
	return nil
}

// WithFields 追加键值对字段，奇数个参数时丢弃最后一个，非字符串键被忽略。
func WithFields(ctx context.Context, keysAndValues ...interface{}) context.Context {
	if len(keysAndValues) < 2 {
		return ctx
	}
	old := fromContext(ctx)
	f := make(fields, len(old)+len(keysAndValues)/2)
	for k, v := range old {
		f[k] = v
	}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			f[key] = keysAndValues[i+1]
		}
	}
	return context.WithValue(ctx, fieldsKey, f)
}

// WithRequestID 设置 request_id 字段。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return WithFields(ctx, "request_id", requestID)
}

// WithSessionID 设置 session_id 字段。
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return WithFields(ctx, "session_id", sessionID)
}

// Fields 返回按键排序的字段切片。
func Fields(ctx context.Context) []interface{} {
	f := fromContext(ctx)
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]interface{}, 0, len(f)*2)
	for _, k := range keys {
		out = append(out, k, f[k])
	}
	return out
}

// L 返回带 context 字段的 logger。
func L(ctx context.Context) core.Logger {
	base := logger.Global()
	if kv := Fields(ctx); len(kv) > 0 {
		return base.With(kv...)
	}
	return base
}
