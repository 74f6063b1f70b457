package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docqa/internal/model"
	errno "github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/response"
	"github.com/kart-io/docqa/pkg/validator"
)

// RebuildIndex POST /v1/index/rebuild。重建与请求生命周期解绑，客户端断开不会中断重建。
func (h *ChatHandler) RebuildIndex(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())
	stats, err := h.service.RebuildIndex(ctx)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, stats)
}

// IndexStats GET /v1/index/stats
func (h *ChatHandler) IndexStats(c *gin.Context) {
	response.OK(c, h.service.IndexStats())
}

// ClearMemory DELETE /v1/sessions/:session_id/memory
func (h *ChatHandler) ClearMemory(c *gin.Context) {
	var req model.SessionRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.Fail(c, errno.ErrDocQAInvalidRequest.WithMessage(err.Error()))
		return
	}
	if verr := validator.Struct(&req, lang(c)); verr != nil {
		response.Fail(c, errno.ErrDocQAInvalidRequest.WithMessage(verr.First()))
		return
	}
	if err := h.service.ClearMemory(c.Request.Context(), req.SessionID); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, model.ClearMemoryResponse{SessionID: req.SessionID, Cleared: true})
}

// Stats GET /v1/stats
func (h *ChatHandler) Stats(c *gin.Context) {
	stats := h.service.Metrics().Stats()
	if h.pool != nil {
		stats["pool"] = h.pool.Stats()
	}
	response.OK(c, stats)
}

// Metrics GET /metrics，Prometheus 文本格式。
func (h *ChatHandler) Metrics(c *gin.Context) {
	var sb strings.Builder
	sb.WriteString(h.service.Metrics().Export(MetricsNamespace))
	if h.pool != nil {
		s := h.pool.Stats()
		writeGauge(&sb, "agent_pool_running", "Agent tasks currently running.", float64(s.Running))
		writeGauge(&sb, "agent_pool_capacity", "Agent pool capacity.", float64(s.Capacity))
		writeCounter(&sb, "agent_pool_rejected_total", "Agent tasks rejected by the pool.", float64(s.Rejected))
	}
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(sb.String()))
}

func writeGauge(sb *strings.Builder, name, help string, v float64) {
	writeSample(sb, name, help, "gauge", v)
}

func writeCounter(sb *strings.Builder, name, help string, v float64) {
	writeSample(sb, name, help, "counter", v)
}

func writeSample(sb *strings.Builder, name, help, typ string, v float64) {
	full := MetricsNamespace + "_" + name
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s %s\n%s %g\n", full, help, full, typ, full, v)
}
