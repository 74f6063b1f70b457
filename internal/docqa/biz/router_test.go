package biz

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/pkg/infra/pool"
)

func agentNames(agents []Agent) []string {
	names := make([]string, len(agents))
	for i, a := range agents {
		names[i] = a.Name()
	}
	return names
}

func TestOrderAgents(t *testing.T) {
	kb := &stubAgent{name: KnowledgeAgentName}
	sql := &stubAgent{name: SQLAgentName}
	extra := &stubAgent{name: "Extra"}

	assert.Equal(t, []string{SQLAgentName, KnowledgeAgentName},
		agentNames(OrderAgents([]Agent{kb, sql}, DefaultAgentOrder)))
	assert.Equal(t, []string{KnowledgeAgentName, SQLAgentName, "Extra"},
		agentNames(OrderAgents([]Agent{extra, sql, kb}, []string{KnowledgeAgentName, "Unknown", SQLAgentName})))
	assert.Equal(t, []string{KnowledgeAgentName},
		agentNames(OrderAgents([]Agent{kb}, DefaultAgentOrder)))
}

func TestRouter_SingleAgent(t *testing.T) {
	kb := &stubAgent{name: KnowledgeAgentName, text: "Twenty days.", status: StatusOK}
	r := NewRouter([]Agent{kb}, nil, nil)

	res, err := r.Route(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "Twenty days.", res.Answer)
	assert.Equal(t, []string{KnowledgeAgentName}, res.AgentsUsed)
	assert.False(t, res.AllFailed())
}

func TestRouter_AggregatesInPriorityOrder(t *testing.T) {
	kb := &stubAgent{name: KnowledgeAgentName, text: "From the handbook.", status: StatusOK}
	sql := &stubAgent{name: SQLAgentName, text: "From the database.", status: StatusOK}
	r := NewRouter([]Agent{kb, sql}, nil, nil)

	res, err := r.Route(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "**SQL Assistant:**\nFrom the database.\n\n**Knowledge Base:**\nFrom the handbook.", res.Answer)
	assert.Equal(t, []string{SQLAgentName, KnowledgeAgentName}, res.AgentsUsed)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, SQLAgentName, res.Outcomes[0].Agent)
}

func TestRouter_ExcludesFailedAgents(t *testing.T) {
	kb := &stubAgent{name: KnowledgeAgentName, text: "From the handbook.", status: StatusOK}
	sql := &stubAgent{name: SQLAgentName, status: StatusFailed, err: errors.New("syntax error")}
	r := NewRouter([]Agent{kb, sql}, nil, nil)

	res, err := r.Route(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "From the handbook.", res.Answer)
	assert.Equal(t, []string{KnowledgeAgentName}, res.AgentsUsed)
}

func TestRouter_EmptyTextIsNotSuccess(t *testing.T) {
	kb := &stubAgent{name: KnowledgeAgentName, text: "  \n", status: StatusOK}
	sql := &stubAgent{name: SQLAgentName, status: StatusEmpty}
	r := NewRouter([]Agent{kb, sql}, nil, nil)

	res, err := r.Route(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.True(t, res.AllFailed())
	assert.Empty(t, res.AgentsUsed)
	assert.NotNil(t, res.AgentsUsed)
}

func TestRouter_AllFailed(t *testing.T) {
	kb := &stubAgent{name: KnowledgeAgentName, status: StatusFailed, err: errors.New("llm down")}
	sql := &stubAgent{name: SQLAgentName, panics: true}
	r := NewRouter([]Agent{kb, sql}, nil, nil)

	res, err := r.Route(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.True(t, res.AllFailed())
	assert.True(t, strings.HasPrefix(res.Answer, "Error processing your question:"))
	assert.Contains(t, res.Answer, "SQL Assistant: failed")
	assert.Contains(t, res.Answer, "Knowledge Base: failed")
}

func TestRouter_Timeout(t *testing.T) {
	kb := &stubAgent{name: KnowledgeAgentName, text: "fast", status: StatusOK}
	sql := &stubAgent{name: SQLAgentName, wait: true}
	r := NewRouter([]Agent{kb, sql}, nil, &RouterConfig{AgentTimeout: 50 * time.Millisecond})

	start := time.Now()
	res, err := r.Route(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, "fast", res.Answer)
	assert.Equal(t, StatusTimeout, res.Outcomes[0].Status.Code)
	assert.Equal(t, int32(1), sql.calls.Load())
}

func TestRouter_TimeoutIgnoringContext(t *testing.T) {
	kb := &stubAgent{name: KnowledgeAgentName, text: "kb", status: StatusOK}
	sql := &stubAgent{name: SQLAgentName, text: "late answer", status: StatusOK, sleep: 500 * time.Millisecond}
	r := NewRouter([]Agent{kb, sql}, nil, &RouterConfig{AgentTimeout: 50 * time.Millisecond})

	start := time.Now()
	res, err := r.Route(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.Equal(t, "kb", res.Answer)
	assert.Equal(t, []string{KnowledgeAgentName}, res.AgentsUsed)
	assert.Equal(t, StatusTimeout, res.Outcomes[0].Status.Code)
	assert.Empty(t, res.Outcomes[0].Text)

	// 迟到的结果不会回写
	time.Sleep(600 * time.Millisecond)
	assert.Empty(t, res.Outcomes[0].Text)
	assert.Equal(t, StatusTimeout, res.Outcomes[0].Status.Code)
}

func TestRouter_NoAgents(t *testing.T) {
	r := NewRouter(nil, nil, nil)
	_, err := r.Route(context.Background(), "q", nil)
	assert.ErrorIs(t, err, ErrNoAgentsAvailable)
	assert.False(t, r.Has(KnowledgeAgentName))
}

func TestRouter_WithPool(t *testing.T) {
	p, err := pool.New("agents-test", &pool.Config{Capacity: 4, ExpiryDuration: time.Second})
	require.NoError(t, err)
	defer p.Release(time.Second)

	kb := &stubAgent{name: KnowledgeAgentName, text: "a", status: StatusOK}
	sql := &stubAgent{name: SQLAgentName, text: "b", status: StatusOK}
	r := NewRouter([]Agent{kb, sql}, p, nil)

	for i := 0; i < 5; i++ {
		res, err := r.Route(context.Background(), "q", nil)
		require.NoError(t, err)
		assert.Len(t, res.AgentsUsed, 2)
	}
	assert.Equal(t, int64(10), p.Stats().Submitted)
}

func TestRouter_ClosedPoolFallsBack(t *testing.T) {
	p, err := pool.New("agents-closed", &pool.Config{Capacity: 1, ExpiryDuration: time.Second})
	require.NoError(t, err)
	p.Release(time.Second)

	kb := &stubAgent{name: KnowledgeAgentName, text: "still works", status: StatusOK}
	r := NewRouter([]Agent{kb}, p, nil)

	res, err := r.Route(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "still works", res.Answer)
}

func TestAssertInvariant(t *testing.T) {
	assert.NotPanics(t, func() { assertInvariant(true, "fine") })
	assert.PanicsWithValue(t, InternalInvariantViolation{Detail: "1 tasks completed for 2 agents"}, func() {
		assertInvariant(false, "%d tasks completed for %d agents", 1, 2)
	})
}
