package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/pkg/infra/middleware/common"
)

// LoggerConfig 访问日志配置。
type LoggerConfig struct {
	// SkipPaths 不记录日志的路径，如健康检查。
	SkipPaths []string
}

// DefaultLoggerConfig 默认跳过健康检查。
var DefaultLoggerConfig = LoggerConfig{SkipPaths: []string{"/health"}}

// Logger 以结构化日志记录每个请求。
func Logger(cfg LoggerConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"client_ip", c.ClientIP(),
			"latency_ms", latency.Milliseconds(),
			"request_id", common.RequestIDFromGin(c),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Errorw("HTTP Request", fields...)
		case status >= 400:
			logger.Warnw("HTTP Request", fields...)
		default:
			logger.Infow("HTTP Request", fields...)
		}
	}
}
