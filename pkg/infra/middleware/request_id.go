// Package middleware 提供 gin 中间件：请求 ID、访问日志、panic 恢复、CORS 与请求体限制。
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/docqa/pkg/id"
	logctx "github.com/kart-io/docqa/pkg/infra/logger"
	"github.com/kart-io/docqa/pkg/infra/middleware/common"
)

// RequestID 透传或生成 X-Request-ID，并写入 gin.Context、请求 context 与日志字段。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(common.HeaderXRequestID)
		if rid == "" || len(rid) > 128 {
			rid = id.NewRequestID()
		}
		c.Set(common.ContextKeyRequestID, rid)
		ctx := common.WithRequestID(c.Request.Context(), rid)
		c.Request = c.Request.WithContext(logctx.WithRequestID(ctx, rid))
		c.Header(common.HeaderXRequestID, rid)
		c.Next()
	}
}
