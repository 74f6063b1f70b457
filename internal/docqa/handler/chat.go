// Package handler 提供对话 API 的 HTTP 处理函数。
package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/infra/pool"
	errno "github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/response"
	"github.com/kart-io/docqa/pkg/validator"
)

// MetricsNamespace 指标名前缀。
const MetricsNamespace = "docqa"

// ChatHandler 对话、历史与健康检查接口。
type ChatHandler struct {
	service *biz.Service
	pool    *pool.Pool
	version string
}

// NewChatHandler 创建处理器。p 可为 nil。
func NewChatHandler(service *biz.Service, p *pool.Pool, version string) *ChatHandler {
	return &ChatHandler{service: service, pool: p, version: version}
}

// Root GET /
func (h *ChatHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, model.RootResponse{
		Message: "Chatbot API",
		Version: h.version,
		Endpoints: map[string]string{
			"chat":         "POST /chat",
			"chat_history": "GET /chathistory/{session_id}",
			"health":       "GET /health",
			"metrics":      "GET /metrics",
			"rebuild":      "POST /v1/index/rebuild",
			"index_stats":  "GET /v1/index/stats",
			"clear_memory": "DELETE /v1/sessions/{session_id}/memory",
			"stats":        "GET /v1/stats",
		},
	})
}

// Chat POST /chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, errno.ErrDocQAInvalidRequest.WithMessage("invalid request body: "+err.Error()))
		return
	}
	if verr := validator.Struct(&req, lang(c)); verr != nil {
		response.Fail(c, errno.ErrDocQAInvalidRequest.WithMessage(verr.First()))
		return
	}

	res, err := h.service.Chat(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, model.ChatResponse{
		SessionID:  res.SessionID,
		Message:    res.Message,
		Response:   res.Response,
		Timestamp:  store.FormatTimestamp(res.Timestamp),
		AgentsUsed: res.AgentsUsed,
	})
}

// History GET /chathistory/:session_id?limit=50
func (h *ChatHandler) History(c *gin.Context) {
	req := model.HistoryRequest{Limit: store.DefaultHistoryLimit}
	if err := c.ShouldBindUri(&req); err != nil {
		response.Fail(c, errno.ErrDocQAInvalidRequest.WithMessage(err.Error()))
		return
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Fail(c, errno.ErrDocQAInvalidRequest.WithMessage("limit must be an integer"))
		return
	}
	if verr := validator.Struct(&req, lang(c)); verr != nil {
		response.Fail(c, errno.ErrDocQAInvalidRequest.WithMessage(verr.First()))
		return
	}

	exchanges, err := h.service.History(c.Request.Context(), req.SessionID, req.Limit)
	if err != nil {
		response.Fail(c, err)
		return
	}

	conversations := make([]model.Conversation, len(exchanges))
	for i, ex := range exchanges {
		conversations[i] = model.Conversation{
			Timestamp: ex.TimestampString(),
			User:      ex.Question,
			AI:        ex.Answer,
		}
	}
	c.JSON(http.StatusOK, model.HistoryResponse{
		SessionID:     req.SessionID,
		Conversations: conversations,
		TotalCount:    len(conversations),
	})
}

// Health GET /health。没有可用能力体时返回 503。
func (h *ChatHandler) Health(c *gin.Context) {
	report := h.service.Health()

	agents := make(map[string]string, len(report.Agents))
	for name, ok := range report.Agents {
		agents[name] = availability(ok)
	}
	status, code := model.StatusHealthy, http.StatusOK
	if !report.Healthy {
		status, code = model.StatusUnhealthy, http.StatusServiceUnavailable
	}
	c.JSON(code, model.HealthResponse{
		Status:             status,
		KnowledgeBaseAgent: availability(report.KnowledgeBase),
		SQLAgent:           availability(report.SQL),
		Agents:             agents,
		IndexChunks:        report.IndexChunks,
		SessionBackend:     report.SessionBackend,
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
	})
}

func availability(ok bool) string {
	if ok {
		return model.AgentAvailable
	}
	return model.AgentUnavailable
}

func lang(c *gin.Context) string {
	if strings.HasPrefix(c.GetHeader("Accept-Language"), "zh") {
		return validator.LangZH
	}
	return validator.LangEN
}
