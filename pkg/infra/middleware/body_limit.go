package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/response"
)

// BodyLimit 限制请求体大小，maxSize <= 0 时使用 1MB。
func BodyLimit(maxSize int64) gin.HandlerFunc {
	if maxSize <= 0 {
		maxSize = 1 << 20
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			logger.Warnw("request body too large",
				"path", c.Request.URL.Path,
				"content_length", c.Request.ContentLength,
				"max_size", maxSize,
			)
			response.Fail(c, errors.ErrRequestTooLarge)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
