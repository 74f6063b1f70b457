package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/docqa/pkg/infra/middleware/common"
)

// TracerName HTTP 中间件使用的 tracer 名称。
const TracerName = "github.com/kart-io/docqa/pkg/infra/middleware"

// Tracing 为每个请求创建 server span，并从请求头提取上游链路上下文。
// span 名称使用路由模板，未匹配路由时使用请求方法。
func Tracing(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	tracer := otel.Tracer(TracerName)

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		req := c.Request
		ctx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))
		name := req.Method
		if route := c.FullPath(); route != "" {
			name = fmt.Sprintf("%s %s", req.Method, route)
		}
		ctx, span := tracer.Start(ctx, name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethod(req.Method),
				semconv.HTTPTarget(req.URL.Path),
				semconv.HTTPRoute(c.FullPath()),
				semconv.ServerAddress(req.Host),
				semconv.UserAgentOriginal(req.UserAgent()),
				attribute.String("http.client_ip", c.ClientIP()),
			),
		)
		defer span.End()

		c.Request = req.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			semconv.HTTPStatusCode(status),
			attribute.String("http.request_id", common.RequestIDFromGin(c)),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last().Err)
		}
	}
}
