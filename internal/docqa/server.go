// Package docqasvc 装配文档问答服务。
package docqasvc

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"github.com/spf13/viper"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/internal/docqa/handler"
	"github.com/kart-io/docqa/internal/docqa/metrics"
	"github.com/kart-io/docqa/internal/docqa/router"
	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/pkg/component/milvus"
	"github.com/kart-io/docqa/pkg/component/mongodb"
	"github.com/kart-io/docqa/pkg/component/redis"
	"github.com/kart-io/docqa/pkg/component/sqldb"
	"github.com/kart-io/docqa/pkg/infra/app"
	"github.com/kart-io/docqa/pkg/infra/config"
	"github.com/kart-io/docqa/pkg/infra/middleware"
	"github.com/kart-io/docqa/pkg/infra/pool"
	"github.com/kart-io/docqa/pkg/infra/server"
	httpserver "github.com/kart-io/docqa/pkg/infra/server/http"
	"github.com/kart-io/docqa/pkg/infra/tracing"
	"github.com/kart-io/docqa/pkg/llm"
	"github.com/kart-io/docqa/pkg/llm/resilience"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/docqa/pkg/llm/deepseek"
	_ "github.com/kart-io/docqa/pkg/llm/ollama"
	_ "github.com/kart-io/docqa/pkg/llm/openai"
	_ "github.com/kart-io/docqa/pkg/llm/siliconflow"
	docqaopts "github.com/kart-io/docqa/pkg/options/docqa"
	httpopts "github.com/kart-io/docqa/pkg/options/http"
	llmopts "github.com/kart-io/docqa/pkg/options/llm"
	logopts "github.com/kart-io/docqa/pkg/options/logger"
	milvusopts "github.com/kart-io/docqa/pkg/options/milvus"
	mongoopts "github.com/kart-io/docqa/pkg/options/mongodb"
	poolopts "github.com/kart-io/docqa/pkg/options/pool"
	redisopts "github.com/kart-io/docqa/pkg/options/redis"
	tracingopts "github.com/kart-io/docqa/pkg/options/tracing"
)

// Name 服务名。
const Name = "docqa"

// Config 服务的全部配置。
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	TracingOptions   *tracingopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	IndexOptions     *docqaopts.IndexOptions
	AssistantOptions *docqaopts.AssistantOptions
	SessionOptions   *docqaopts.SessionOptions
	SQLAgentOptions  *docqaopts.SQLAgentOptions
	MilvusOptions    *milvusopts.Options
	RedisOptions     *redisopts.Options
	MongoDBOptions   *mongoopts.Options
	PoolOptions      *poolopts.Options
	// Viper 已加载配置文件时用于监听日志级别变化，可为 nil。
	Viper *viper.Viper
}

// Server 文档问答服务。
type Server struct {
	srv     *server.Manager
	service *biz.Service
	closers []func()
}

// NewServer 按依赖顺序初始化组件。失败时已创建的连接会被关闭。
func (cfg *Config) NewServer(ctx context.Context) (_ *Server, err error) {
	s := &Server{}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	// 1. 初始化日志与追踪
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("Starting docqa service...", "version", app.GetVersion())

	if cfg.TracingOptions.ServiceVersion == "" {
		cfg.TracingOptions.ServiceVersion = app.GetVersion()
	}
	tp, err := tracing.NewProvider(ctx, cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.onClose(func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(sctx)
	})

	// 2. 会话存储
	deps := &components{cfg: cfg, closers: &s.closers}
	sessions, err := deps.sessionStore(ctx)
	if err != nil {
		return nil, err
	}
	logger.Infow("Session store initialized", "backend", sessions.Name(), "retention", cfg.SessionOptions.Retention.String())

	// 3. LLM 供应商与索引
	var (
		agents  []biz.Agent
		indexer *biz.Indexer
	)
	chat, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		// 没有生成能力时所有能力体都不可用，服务仍然启动以提供历史查询与健康检查
		logger.Errorw("Failed to initialize chat provider, no agent is available", "provider", cfg.ChatOptions.Provider, "error", err.Error())
	} else {
		logger.Infow("Chat provider initialized", "provider", cfg.ChatOptions.Provider, "model", cfg.ChatOptions.Model)
		// 重试由调用方按生成策略执行，这里只熔断
		chat = resilience.WrapChat(chat, resilience.RetryPolicy{Attempts: 1},
			resilience.NewBreaker(cfg.AssistantOptions.BreakerThreshold, cfg.AssistantOptions.BreakerCooldown))

		indexer, err = deps.indexer(ctx)
		if err != nil {
			logger.Errorw("Knowledge base unavailable", "error", err.Error())
			indexer = nil
		} else if err := indexer.EnsureIndex(ctx); err != nil {
			// 索引器保留，可通过重建接口恢复索引
			logger.Errorw("Failed to prepare index, knowledge base unavailable", "error", err.Error())
		} else {
			chain := biz.NewChain(indexer, chat, &biz.ChainConfig{
				TopK:  cfg.IndexOptions.TopK,
				Retry: cfg.AssistantOptions.RetryPolicy(),
			})
			agents = append(agents, biz.NewKnowledgeAgent(chain))
			logger.Infow("Knowledge Base agent initialized", "chunks", indexer.Stats().Chunks)
		}

		// 4. 结构化数据能力体
		if cfg.SQLAgentOptions.Enabled {
			if agent, err := deps.sqlAgent(ctx, chat); err != nil {
				logger.Errorw("SQL Assistant unavailable", "error", err.Error())
			} else {
				agents = append(agents, agent)
				logger.Infow("SQL Assistant agent initialized", "driver", cfg.SQLAgentOptions.DB.Driver)
			}
		}
	}

	// 5. Biz 层
	agentPool, err := pool.New("agents", cfg.PoolOptions.ToConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create agent pool: %w", err)
	}
	s.onClose(func() { agentPool.Release(5 * time.Second) })

	m := metrics.New()
	routerCfg := &biz.RouterConfig{
		Order:        cfg.AssistantOptions.AgentOrder,
		AgentTimeout: cfg.AssistantOptions.AgentTimeout,
	}
	s.service = biz.NewService(indexer, biz.NewRouter(agents, agentPool, routerCfg), sessions, m, &biz.ServiceConfig{
		MemorySize:     cfg.AssistantOptions.MemorySize,
		HistoryContext: cfg.AssistantOptions.HistoryContext,
		MaxSessions:    cfg.AssistantOptions.MaxSessions,
	})
	if len(agents) == 0 {
		logger.Warn("No agent is available, /chat will fail until the service is reconfigured")
	}

	// 6. Handler 与路由
	httpServer := httpserver.NewServer(cfg.HTTPOptions)
	router.Register(httpServer.Engine(), handler.NewChatHandler(s.service, agentPool, app.GetVersion()), router.Config{
		ChatRateLimit: middleware.RateLimitConfig{
			QPS:   cfg.HTTPOptions.RateLimit,
			Burst: cfg.HTTPOptions.RateBurst,
		},
	})

	s.srv = server.NewManager(cfg.HTTPOptions.ShutdownTimeout)
	s.srv.AddServer(httpServer)

	// 7. 语料监听与配置热更新
	if cfg.IndexOptions.Watch && indexer != nil {
		w, err := biz.NewCorpusWatcher(cfg.IndexOptions.DocsDir, cfg.IndexOptions.Extensions, cfg.IndexOptions.WatchDebounce,
			func(ctx context.Context) error {
				_, err := s.service.RebuildIndex(ctx)
				return err
			})
		if err != nil {
			logger.Warnw("Failed to watch corpus, automatic rebuild disabled", "error", err.Error())
		} else {
			s.srv.AddServer(newBackgroundRunner("corpus-watcher", w.Run))
		}
	}
	if cfg.Viper != nil {
		watcher := config.NewWatcher(cfg.Viper)
		watcher.Subscribe("log.level", cfg.LogOptions.ReloadLevel)
		watcher.Start()
	}

	logger.Infow("docqa service is ready",
		"addr", cfg.HTTPOptions.Addr,
		"agents", len(agents),
		"index.backend", cfg.IndexOptions.Backend,
		"session.backend", sessions.Name(),
	)
	return s, nil
}

// Service 返回业务服务。
func (s *Server) Service() *biz.Service { return s.service }

// Run 启动 HTTP 服务并阻塞到 ctx 取消。
func (s *Server) Run(ctx context.Context) error {
	defer s.close()
	return s.srv.Run(ctx)
}

func (s *Server) onClose(fn func()) { s.closers = append(s.closers, fn) }

// close 按创建的相反顺序释放资源。
func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// components 按需创建外部连接，同一连接只创建一次。
type components struct {
	cfg     *Config
	closers *[]func()

	redis  *redis.Client
	milvus *milvus.Client
}

func (c *components) onClose(fn func()) { *c.closers = append(*c.closers, fn) }

func (c *components) redisClient(ctx context.Context) (*redis.Client, error) {
	if c.redis != nil {
		return c.redis, nil
	}
	client, err := redis.New(ctx, c.cfg.RedisOptions)
	if err != nil {
		return nil, err
	}
	c.redis = client
	c.onClose(func() { _ = client.Close() })
	logger.Infow("Redis client initialized", "addr", c.cfg.RedisOptions.Addr())
	return client, nil
}

func (c *components) milvusClient(ctx context.Context) (*milvus.Client, error) {
	if c.milvus != nil {
		return c.milvus, nil
	}
	client, err := milvus.New(ctx, c.cfg.MilvusOptions)
	if err != nil {
		return nil, err
	}
	c.milvus = client
	c.onClose(func() { _ = client.Close() })
	logger.Infow("Milvus client initialized", "address", c.cfg.MilvusOptions.Address)
	return client, nil
}

// sessionStore 创建会话存储。存储不可用时启动失败。
func (c *components) sessionStore(ctx context.Context) (store.SessionStore, error) {
	o := c.cfg.SessionOptions
	opts := store.SessionOptions{Retention: o.Retention}

	switch o.Backend {
	case docqaopts.SessionBackendRedis:
		client, err := c.redisClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis session store: %w", err)
		}
		return store.NewRedisSessionStore(client.Client(), o.KeyPrefix, opts), nil

	case docqaopts.SessionBackendMongoDB:
		client, err := mongodb.New(ctx, c.cfg.MongoDBOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongodb: %w", err)
		}
		c.onClose(func() { _ = client.Close() })
		ss, err := store.NewMongoSessionStore(ctx, client.Database(), o.Collection, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongodb session store: %w", err)
		}
		return ss, nil

	case docqaopts.SessionBackendSQL:
		client, err := sqldb.New(ctx, o.SQL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize session database: %w", err)
		}
		c.onClose(func() { _ = client.Close() })
		ss, err := store.NewSQLSessionStore(client.DB(), opts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sql session store: %w", err)
		}
		return ss, nil

	default:
		logger.Warn("Using in-memory session store, conversation history is lost on restart")
		return store.NewMemorySessionStore(opts), nil
	}
}

// embedder 创建 embedding 供应商，启用缓存且 redis 可用时包装缓存层。
func (c *components) embedder(ctx context.Context) (llm.EmbeddingProvider, error) {
	o := c.cfg.EmbeddingOptions
	// 重试与单次超时由外层包装统一处理
	cfgMap := o.ToConfigMap()
	cfgMap["max_retries"] = 0
	raw, err := llm.NewEmbeddingProvider(o.Provider, cfgMap)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	policy := resilience.DefaultRetryPolicy()
	policy.Attempts = o.MaxRetries + 1
	policy.AttemptTimeout = o.Timeout
	var provider llm.EmbeddingProvider = resilience.WrapEmbedding(raw, policy)
	logger.Infow("Embedding provider initialized", "provider", o.Provider, "model", o.Model)

	if !c.cfg.IndexOptions.EmbeddingCache {
		return provider, nil
	}
	client, err := c.redisClient(ctx)
	if err != nil {
		logger.Warnw("Failed to connect to redis, embedding cache disabled", "error", err.Error())
		return provider, nil
	}
	cacheCfg := llm.DefaultEmbeddingCacheConfig()
	cacheCfg.TTL = c.cfg.IndexOptions.EmbeddingCacheTTL
	cacheCfg.Namespace = o.Provider + "/" + o.Model
	logger.Infow("Embedding cache enabled", "ttl", cacheCfg.TTL.String())
	return llm.NewCachedEmbeddingProvider(provider, client.Client(), cacheCfg), nil
}

// indexer 创建语料索引器，不加载也不重建索引。
func (c *components) indexer(ctx context.Context) (*biz.Indexer, error) {
	embedder, err := c.embedder(ctx)
	if err != nil {
		return nil, err
	}

	o := c.cfg.IndexOptions
	var backend store.IndexBackend
	switch o.Backend {
	case docqaopts.BackendMilvus:
		client, err := c.milvusClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		backend = store.NewMilvusBackend(client, o.Collection)
	default:
		backend = store.NewFlatBackend(o.IndexPath)
	}

	return biz.NewIndexer(backend, embedder, &biz.IndexerConfig{
		DocsDir:        o.DocsDir,
		Extensions:     o.Extensions,
		ChunkSize:      o.ChunkSize,
		ChunkOverlap:   o.Overlap,
		Separator:      o.Separator,
		EmbedBatchSize: o.EmbedBatchSize,
	})
}

func (c *components) sqlAgent(ctx context.Context, chat llm.ChatProvider) (*biz.SQLAgent, error) {
	o := c.cfg.SQLAgentOptions
	client, err := sqldb.New(ctx, o.DB)
	if err != nil {
		return nil, err
	}
	c.onClose(func() { _ = client.Close() })
	return biz.NewSQLAgent(ctx, client.DB(), chat, &biz.SQLAgentConfig{
		Dialect: client.Name(),
		MaxRows: o.MaxRows,
		Tables:  o.Tables,
		Retry:   c.cfg.AssistantOptions.RetryPolicy(),
	})
}
