package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Export(t *testing.T) {
	m := New()
	m.RecordTurn(2*time.Second, true, false)
	m.RecordTurn(time.Second, false, true)
	m.RecordAgent("Knowledge Base", "ok")
	m.RecordAgent("Knowledge Base", "ok")
	m.RecordAgent("SQL Assistant", "timeout")
	m.RecordRebuild(42, nil, false)
	m.RecordRebuild(0, errors.New("boom"), false)
	m.RecordRebuild(0, nil, true)

	out := m.Export("docqa")
	assert.Contains(t, out, "docqa_turns_total 2\n")
	assert.Contains(t, out, "docqa_turns_failed_total 1\n")
	assert.Contains(t, out, "docqa_sessions_created_total 1\n")
	assert.Contains(t, out, `docqa_agent_invocations_total{agent="Knowledge Base",status="ok"} 2`)
	assert.Contains(t, out, `docqa_agent_invocations_total{agent="SQL Assistant",status="timeout"} 1`)
	assert.Contains(t, out, "docqa_index_chunks 42\n")
	assert.Contains(t, out, "docqa_index_rebuilds_total 2\n")
	assert.Contains(t, out, "docqa_index_rebuilds_rejected_total 1\n")
	assert.Equal(t, 1, strings.Count(out, "# TYPE docqa_agent_invocations_total counter"))
}

func TestMetrics_Stats(t *testing.T) {
	m := New()
	m.RecordTurn(4*time.Second, false, false)
	m.RecordTurn(2*time.Second, false, false)
	m.RecordAppendError()
	m.RecordAgent("Knowledge Base", "failed")

	stats := m.Stats()
	turns := stats["turns"].(map[string]interface{})
	assert.Equal(t, uint64(2), turns["total"])
	assert.InDelta(t, 3.0, turns["avg_duration_secs"], 1e-9)

	sessions := stats["sessions"].(map[string]interface{})
	assert.Equal(t, uint64(1), sessions["append_errors"])

	agents := stats["agents"].(map[string]map[string]uint64)
	assert.Equal(t, uint64(1), agents["Knowledge Base"]["failed"])
}

func TestGlobal(t *testing.T) {
	assert.Same(t, Global(), Global())
}
