// Package router 注册对话服务路由。
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/docqa/handler"
	"github.com/kart-io/docqa/pkg/infra/middleware"
)

// Config 路由配置。
type Config struct {
	// ChatRateLimit 作用于 POST /chat 的限流配置。
	ChatRateLimit middleware.RateLimitConfig
}

// Register 注册公开路由与 /v1 管理路由。
// 公开路由返回原始 JSON，/v1 路由使用统一响应结构。
func Register(engine *gin.Engine, h *handler.ChatHandler, cfg Config) {
	logger.Info("Registering docqa routes...")

	engine.GET("/", h.Root)
	engine.POST("/chat", middleware.RateLimit(cfg.ChatRateLimit), h.Chat)
	engine.GET("/chathistory/:session_id", h.History)
	engine.GET("/health", h.Health)
	engine.GET("/metrics", h.Metrics)

	v1 := engine.Group("/v1")
	{
		index := v1.Group("/index")
		{
			index.POST("/rebuild", h.RebuildIndex)
			index.GET("/stats", h.IndexStats)
		}
		v1.DELETE("/sessions/:session_id/memory", h.ClearMemory)
		v1.GET("/stats", h.Stats)
	}

	logger.Info("HTTP routes registered")
}
