// Package model 定义对话 API 的请求与响应结构。
package model

// MaxMessageLength 单条提问的最大字符数。
const MaxMessageLength = 8000

// ChatRequest POST /chat 请求体。
type ChatRequest struct {
	Message   string `json:"message" validate:"required,notblank,max=8000"`
	SessionID string `json:"session_id,omitempty" validate:"omitempty,session_id"`
}

// ChatResponse POST /chat 响应体。
type ChatResponse struct {
	SessionID  string   `json:"session_id"`
	Message    string   `json:"message"`
	Response   string   `json:"response"`
	Timestamp  string   `json:"timestamp"`
	AgentsUsed []string `json:"agents_used"`
}

// HistoryRequest GET /chathistory/:session_id 参数。
type HistoryRequest struct {
	SessionID string `uri:"session_id" json:"session_id" validate:"required,session_id"`
	Limit     int    `form:"limit" json:"limit" validate:"gte=0,lte=1000"`
}

// Conversation 一条历史问答。
type Conversation struct {
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
	AI        string `json:"ai"`
}

// HistoryResponse 会话历史，按时间升序。
type HistoryResponse struct {
	SessionID     string         `json:"session_id"`
	Conversations []Conversation `json:"conversations"`
	TotalCount    int            `json:"total_count"`
}

// 能力体可用状态。
const (
	AgentAvailable   = "available"
	AgentUnavailable = "unavailable"
)

// 服务健康状态。
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthResponse GET /health 响应体。
type HealthResponse struct {
	Status             string            `json:"status"`
	KnowledgeBaseAgent string            `json:"knowledge_base_agent"`
	SQLAgent           string            `json:"sql_agent"`
	Agents             map[string]string `json:"agents"`
	IndexChunks        int               `json:"index_chunks"`
	SessionBackend     string            `json:"session_backend"`
	Timestamp          string            `json:"timestamp"`
}

// RootResponse GET / 响应体。
type RootResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// SessionRequest 带会话 ID 路径参数的请求。
type SessionRequest struct {
	SessionID string `uri:"session_id" json:"session_id" validate:"required,session_id"`
}

// ClearMemoryResponse DELETE /v1/sessions/:session_id/memory 响应数据。
type ClearMemoryResponse struct {
	SessionID string `json:"session_id"`
	Cleared   bool   `json:"cleared"`
}
