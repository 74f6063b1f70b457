// Package common 存放中间件与响应包共用的请求上下文工具，避免循环依赖。
package common

import (
	"context"

	"github.com/gin-gonic/gin"
)

// HeaderXRequestID 请求 ID 头。
const HeaderXRequestID = "X-Request-ID"

// ContextKeyRequestID gin.Context 中保存请求 ID 的键。
const ContextKeyRequestID = "request_id"

type requestIDKey struct{}

// WithRequestID 把请求 ID 写入 context。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID 从 context 读取请求 ID，不存在时返回空串。
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// RequestIDFromGin 优先从 gin.Context 读取，其次从请求 context 读取。
func RequestIDFromGin(c *gin.Context) string {
	if v := c.GetString(ContextKeyRequestID); v != "" {
		return v
	}
	if c.Request != nil {
		return GetRequestID(c.Request.Context())
	}
	return ""
}
