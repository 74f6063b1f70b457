// Package http 基于 gin 的 HTTP 服务。
package http

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/pkg/infra/middleware"
	options "github.com/kart-io/docqa/pkg/options/http"
	apierrors "github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/response"
)

// Server HTTP 服务。
type Server struct {
	opts     *options.Options
	engine   *gin.Engine
	server   *http.Server
	listener net.Listener
}

// NewServer 创建 gin 引擎并装配公共中间件。
// 中间件需在注册路由前装配，子路由组才会继承。
func NewServer(opts *options.Options) *Server {
	if opts == nil {
		opts = options.NewOptions()
	}
	gin.SetMode(opts.Mode)

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	cors := middleware.DefaultCORSConfig
	if len(opts.AllowOrigins) > 0 {
		cors.AllowOrigins = opts.AllowOrigins
	}
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Tracing("/health", "/metrics"),
		middleware.Logger(middleware.DefaultLoggerConfig),
		middleware.CORS(cors),
		middleware.BodyLimit(opts.MaxBodyBytes),
	)

	engine.NoRoute(func(c *gin.Context) { response.Fail(c, apierrors.ErrRouteNotFound) })
	engine.NoMethod(func(c *gin.Context) { response.Fail(c, apierrors.ErrMethodNotAllowed) })

	return &Server{opts: opts, engine: engine}
}

func (s *Server) Name() string { return "http" }

// Engine 返回 gin 引擎，用于注册路由。
func (s *Server) Engine() *gin.Engine { return s.engine }

// Addr 返回实际监听地址，Start 之前为空。
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start 监听端口并在后台处理请求；端口占用等错误同步返回。
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("http server exited", "error", err.Error())
		}
	}()
	logger.Infow("http server listening", "addr", ln.Addr().String())
	return nil
}

// Stop 优雅关闭。
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
