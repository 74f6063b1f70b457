package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/docqa/internal/docqa/metrics"
	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/pkg/id"
	logctx "github.com/kart-io/docqa/pkg/infra/logger"
	errno "github.com/kart-io/docqa/pkg/utils/errors"
)

// DefaultHistoryContext 新会话缓冲从持久化历史回填的轮数。
const DefaultHistoryContext = 5

// ServiceConfig 服务配置。
type ServiceConfig struct {
	// MemorySize 每个会话缓冲的容量。
	MemorySize int
	// HistoryContext 回填轮数。
	HistoryContext int
	// MaxSessions 进程内缓冲的会话上限。
	MaxSessions int
}

// ChatResult 一轮对话的结果。
type ChatResult struct {
	SessionID  string
	Message    string
	Response   string
	Timestamp  time.Time
	AgentsUsed []string
	NewSession bool
}

// HealthReport 健康状况。
type HealthReport struct {
	Healthy        bool
	KnowledgeBase  bool
	SQL            bool
	Agents         map[string]bool
	IndexChunks    int
	SessionBackend string
}

// Service 执行对话轮次并暴露索引、历史与记忆管理。
type Service struct {
	indexer  *Indexer
	router   *Router
	sessions store.SessionStore
	memories *MemoryRegistry
	locks    *SessionLock
	metrics  *metrics.Metrics
	config   *ServiceConfig
	now      func() time.Time
}

// NewService 创建服务。indexer 可为 nil，此时知识库不可用。
func NewService(indexer *Indexer, router *Router, sessions store.SessionStore, m *metrics.Metrics, config *ServiceConfig) *Service {
	if config == nil {
		config = &ServiceConfig{}
	}
	if config.MemorySize <= 0 {
		config.MemorySize = DefaultMemorySize
	}
	if config.HistoryContext <= 0 {
		config.HistoryContext = DefaultHistoryContext
	}
	if m == nil {
		m = metrics.Global()
	}
	return &Service{
		indexer:  indexer,
		router:   router,
		sessions: sessions,
		memories: NewMemoryRegistry(config.MemorySize, config.MaxSessions),
		locks:    NewSessionLock(),
		metrics:  m,
		config:   config,
		now:      time.Now,
	}
}

// Chat 执行一轮对话。sessionID 为空时生成新会话。
// 除没有可用能力体外，任何失败都以错误描述作为回答返回。
func (s *Service) Chat(ctx context.Context, sessionID, message string) (*ChatResult, error) {
	newSession := sessionID == ""
	if newSession {
		sessionID = id.NewSessionID(s.now())
	}
	ctx = logctx.WithSessionID(ctx, sessionID)
	log := logctx.L(ctx)

	ctx, span := tracer.Start(ctx, "service.Chat")
	defer span.End()
	span.SetAttributes(attribute.String("docqa.session_id", sessionID), attribute.Bool("docqa.new_session", newSession))

	if len(s.router.Agents()) == 0 {
		return nil, ErrNoAgentsAvailable
	}

	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	start := time.Now()
	if newSession {
		log.Infow("Starting new session")
	} else {
		log.Infow("Continuing session")
	}

	mem := s.memories.Get(sessionID)
	if !mem.Hydrated() {
		s.hydrate(ctx, sessionID, mem)
	}

	route, err := s.route(ctx, message, mem.Turns())
	if err != nil {
		return nil, err
	}
	if !route.AllFailed() {
		mem.Add(message, route.Answer)
	}

	result := &ChatResult{
		SessionID:  sessionID,
		Message:    message,
		Response:   route.Answer,
		Timestamp:  s.now().UTC(),
		AgentsUsed: route.AgentsUsed,
		NewSession: newSession,
	}
	if ex := s.appendExchange(ctx, sessionID, message, route.Answer); ex != nil {
		result.Timestamp = ex.Timestamp
	}

	s.metrics.RecordTurn(time.Since(start), newSession, route.AllFailed())
	log.Infow("Turn completed",
		"agents_used", route.AgentsUsed,
		"elapsed", time.Since(start).String(),
	)
	return result, nil
}

// route 调用路由并把错误与 panic 转换为错误描述回答。
// 调度状态不一致属于程序缺陷，返回 ErrDocQAInvariant 而不是回答。
func (s *Service) route(ctx context.Context, message string, history []Turn) (result *RouteResult, err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		s.metrics.RecordTurnPanic()
		if v, ok := rec.(InternalInvariantViolation); ok {
			logctx.L(ctx).Errorw("Router invariant violated", "detail", v.Detail)
			result, err = nil, errno.ErrDocQAInvariant.WithCause(v)
			return
		}
		logctx.L(ctx).Errorw("Turn panicked", "panic", fmt.Sprint(rec))
		result = &RouteResult{
			Answer:     fmt.Sprintf("%s%v", ErrorAnswerPrefix, rec),
			AgentsUsed: []string{},
		}
	}()

	res, rerr := s.router.Route(ctx, message, history)
	if rerr != nil {
		logctx.L(ctx).Errorw("Routing failed", "error", rerr.Error())
		return &RouteResult{
			Answer:     ErrorAnswerPrefix + rerr.Error(),
			AgentsUsed: []string{},
		}, nil
	}
	for _, o := range res.Outcomes {
		s.metrics.RecordAgent(o.Agent, o.Status.Code.String())
	}
	return res, nil
}

// hydrate 从持久化历史回填，失败时只记录日志，下一轮再试。
// 错误描述回答和清空之前的轮次不回填。
func (s *Service) hydrate(ctx context.Context, sessionID string, mem *Memory) {
	exchanges, err := s.sessions.Query(ctx, sessionID, s.config.HistoryContext)
	if err != nil {
		s.metrics.RecordHistoryError()
		logctx.L(ctx).Warnw("Failed to load conversation history", "error", err.Error())
		return
	}
	clearedAt, cleared := s.memories.ClearedAt(sessionID)
	turns := make([]Turn, 0, len(exchanges))
	for _, ex := range exchanges {
		if IsErrorAnswer(ex.Answer) || (cleared && !ex.Timestamp.After(clearedAt)) {
			continue
		}
		turns = append(turns, Turn{Question: ex.Question, Answer: ex.Answer})
	}
	mem.Hydrate(turns)
	logctx.L(ctx).Debugw("Retrieved previous conversations", "count", len(turns), "stored", len(exchanges))
}

// appendExchange 写入失败只记录日志，不影响本轮结果。
func (s *Service) appendExchange(ctx context.Context, sessionID, question, answer string) *store.Exchange {
	ex, err := s.sessions.Append(ctx, sessionID, question, answer)
	if err != nil {
		s.metrics.RecordAppendError()
		logctx.L(ctx).Errorw("Failed to save conversation", "backend", s.sessions.Name(), "error", err.Error())
		return nil
	}
	return ex
}

// History 返回会话的最近 limit 条记录，按时间升序。
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]store.Exchange, error) {
	exchanges, err := s.sessions.Query(ctx, sessionID, limit)
	if err != nil {
		s.metrics.RecordHistoryError()
		return nil, errno.ErrDocQAHistoryUnavailable.WithCause(err)
	}
	return exchanges, nil
}

// ClearMemory 清空会话的进程内缓冲，持久化历史保留。
func (s *Service) ClearMemory(ctx context.Context, sessionID string) error {
	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()
	s.memories.Clear(sessionID, s.now())
	logctx.L(logctx.WithSessionID(ctx, sessionID)).Infow("Conversation memory cleared")
	return nil
}

// RebuildIndex 重建语料索引。
func (s *Service) RebuildIndex(ctx context.Context) (*IndexStats, error) {
	if s.indexer == nil {
		return nil, ErrIndexNotReady
	}
	stats, err := s.indexer.Rebuild(ctx)
	rejected := errors.Is(err, ErrRebuildInProgress)
	chunks := 0
	if stats != nil {
		chunks = stats.Chunks
	}
	s.metrics.RecordRebuild(chunks, err, rejected)
	if err != nil {
		if rejected {
			logger.Infow("Index rebuild rejected, another rebuild is running")
		} else {
			logger.Errorw("Index rebuild failed", "error", err.Error())
		}
		return nil, err
	}
	return stats, nil
}

// IndexStats 返回在用索引统计。
func (s *Service) IndexStats() IndexStats {
	if s.indexer == nil {
		return IndexStats{}
	}
	return s.indexer.Stats()
}

// Health 汇总能力体与索引状态。没有可用能力体时不健康。
func (s *Service) Health() HealthReport {
	agents := map[string]bool{KnowledgeAgentName: false, SQLAgentName: false}
	for _, a := range s.router.Agents() {
		agents[a.Name()] = true
	}
	chunks := 0
	if s.indexer != nil {
		chunks = s.indexer.Stats().Chunks
	}
	return HealthReport{
		Healthy:        len(s.router.Agents()) > 0,
		KnowledgeBase:  agents[KnowledgeAgentName],
		SQL:            agents[SQLAgentName],
		Agents:         agents,
		IndexChunks:    chunks,
		SessionBackend: s.sessions.Name(),
	}
}

// Metrics 返回指标集合。
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }
