// Package metrics 收集 docqa 的业务指标，并以 Prometheus 文本格式导出。
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics 业务指标。
type Metrics struct {
	// 对话轮次
	turnsTotal      atomic.Uint64
	turnsFailed     atomic.Uint64 // 所有能力体均失败
	turnsPanicked   atomic.Uint64
	sessionsCreated atomic.Uint64

	// 会话存储
	appendErrors  atomic.Uint64
	historyErrors atomic.Uint64

	// 索引
	rebuildsTotal    atomic.Uint64
	rebuildsFailed   atomic.Uint64
	rebuildsRejected atomic.Uint64
	indexChunks      atomic.Int64

	mu            sync.Mutex
	turnSeconds   float64
	agentOutcomes map[agentKey]uint64
	startTime     time.Time
}

type agentKey struct {
	agent  string
	status string
}

// New 创建指标集合。
func New() *Metrics {
	return &Metrics{agentOutcomes: make(map[agentKey]uint64), startTime: time.Now()}
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// Global 返回进程级实例。
func Global() *Metrics {
	globalOnce.Do(func() { global = New() })
	return global
}

// RecordTurn 记录一轮对话。
func (m *Metrics) RecordTurn(d time.Duration, newSession, allFailed bool) {
	m.turnsTotal.Add(1)
	if newSession {
		m.sessionsCreated.Add(1)
	}
	if allFailed {
		m.turnsFailed.Add(1)
	}
	m.mu.Lock()
	m.turnSeconds += d.Seconds()
	m.mu.Unlock()
}

// RecordTurnPanic 记录被恢复的 panic。
func (m *Metrics) RecordTurnPanic() { m.turnsPanicked.Add(1) }

// RecordAgent 记录能力体结果。
func (m *Metrics) RecordAgent(agent, status string) {
	m.mu.Lock()
	m.agentOutcomes[agentKey{agent: agent, status: status}]++
	m.mu.Unlock()
}

// RecordAppendError 记录会话写入失败。
func (m *Metrics) RecordAppendError() { m.appendErrors.Add(1) }

// RecordHistoryError 记录历史读取失败。
func (m *Metrics) RecordHistoryError() { m.historyErrors.Add(1) }

// RecordRebuild 记录一次重建，rejected 表示因已有重建而被拒绝。
func (m *Metrics) RecordRebuild(chunks int, err error, rejected bool) {
	switch {
	case rejected:
		m.rebuildsRejected.Add(1)
	case err != nil:
		m.rebuildsTotal.Add(1)
		m.rebuildsFailed.Add(1)
	default:
		m.rebuildsTotal.Add(1)
		m.indexChunks.Store(int64(chunks))
	}
}

// SetIndexChunks 设置在用索引的块数。
func (m *Metrics) SetIndexChunks(n int) { m.indexChunks.Store(int64(n)) }

type sample struct {
	name, help, kind string
	labels           string
	value            string
}

func (m *Metrics) samples() []sample {
	m.mu.Lock()
	turnSeconds := m.turnSeconds
	keys := make([]agentKey, 0, len(m.agentOutcomes))
	for k := range m.agentOutcomes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].agent != keys[j].agent {
			return keys[i].agent < keys[j].agent
		}
		return keys[i].status < keys[j].status
	})
	agentSamples := make([]sample, 0, len(keys))
	for _, k := range keys {
		agentSamples = append(agentSamples, sample{
			name: "agent_invocations_total", help: "Agent invocations by outcome.", kind: "counter",
			labels: fmt.Sprintf(`{agent=%q,status=%q}`, k.agent, k.status),
			value:  fmt.Sprintf("%d", m.agentOutcomes[k]),
		})
	}
	m.mu.Unlock()

	u := func(v uint64) string { return fmt.Sprintf("%d", v) }
	out := []sample{
		{name: "turns_total", help: "Total chat turns.", kind: "counter", value: u(m.turnsTotal.Load())},
		{name: "turns_failed_total", help: "Turns where no agent produced an answer.", kind: "counter", value: u(m.turnsFailed.Load())},
		{name: "turns_panicked_total", help: "Turns recovered from a panic.", kind: "counter", value: u(m.turnsPanicked.Load())},
		{name: "turn_duration_seconds_total", help: "Total time spent in chat turns.", kind: "counter", value: fmt.Sprintf("%.6f", turnSeconds)},
		{name: "sessions_created_total", help: "Sessions created by the server.", kind: "counter", value: u(m.sessionsCreated.Load())},
		{name: "session_append_errors_total", help: "Failed session store writes.", kind: "counter", value: u(m.appendErrors.Load())},
		{name: "session_history_errors_total", help: "Failed session history reads.", kind: "counter", value: u(m.historyErrors.Load())},
		{name: "index_rebuilds_total", help: "Completed or failed index rebuilds.", kind: "counter", value: u(m.rebuildsTotal.Load())},
		{name: "index_rebuilds_failed_total", help: "Failed index rebuilds.", kind: "counter", value: u(m.rebuildsFailed.Load())},
		{name: "index_rebuilds_rejected_total", help: "Rebuilds rejected while another was running.", kind: "counter", value: u(m.rebuildsRejected.Load())},
		{name: "index_chunks", help: "Chunks in the live index.", kind: "gauge", value: fmt.Sprintf("%d", m.indexChunks.Load())},
		{name: "uptime_seconds", help: "Service uptime in seconds.", kind: "gauge", value: fmt.Sprintf("%.2f", time.Since(m.startTime).Seconds())},
	}
	return append(out, agentSamples...)
}

// Export 导出 Prometheus 文本格式，同名指标只输出一次 HELP/TYPE。
func (m *Metrics) Export(namespace string) string {
	var sb strings.Builder
	last := ""
	for _, s := range m.samples() {
		name := s.name
		if namespace != "" {
			name = namespace + "_" + name
		}
		if name != last {
			if last != "" {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s %s\n", name, s.help, name, s.kind)
			last = name
		}
		fmt.Fprintf(&sb, "%s%s %s\n", name, s.labels, s.value)
	}
	return sb.String()
}

// Stats 返回 API 使用的统计信息。
func (m *Metrics) Stats() map[string]interface{} {
	m.mu.Lock()
	turnSeconds := m.turnSeconds
	agents := make(map[string]map[string]uint64)
	for k, v := range m.agentOutcomes {
		if agents[k.agent] == nil {
			agents[k.agent] = make(map[string]uint64)
		}
		agents[k.agent][k.status] = v
	}
	m.mu.Unlock()

	turns := m.turnsTotal.Load()
	avg := 0.0
	if turns > 0 {
		avg = turnSeconds / float64(turns)
	}
	return map[string]interface{}{
		"turns": map[string]interface{}{
			"total":             turns,
			"failed":            m.turnsFailed.Load(),
			"panicked":          m.turnsPanicked.Load(),
			"avg_duration_secs": avg,
			"sessions_created":  m.sessionsCreated.Load(),
		},
		"agents": agents,
		"sessions": map[string]interface{}{
			"append_errors":  m.appendErrors.Load(),
			"history_errors": m.historyErrors.Load(),
		},
		"index": map[string]interface{}{
			"rebuilds":          m.rebuildsTotal.Load(),
			"rebuilds_failed":   m.rebuildsFailed.Load(),
			"rebuilds_rejected": m.rebuildsRejected.Load(),
			"chunks":            m.indexChunks.Load(),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}
