package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"golang.org/x/time/rate"

	"github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/response"
)

// RateLimitConfig 按客户端 IP 的令牌桶限流配置。
type RateLimitConfig struct {
	// QPS 每秒补充的令牌数，<= 0 时不限流。
	QPS float64
	// Burst 令牌桶容量。
	Burst int
	// IdleTTL 空闲超过该时长的客户端限流器会被回收。
	IdleTTL time.Duration
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 维护每个客户端的限流器。
type RateLimiter struct {
	cfg       RateLimitConfig
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter 创建限流器。
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = max(1, int(cfg.QPS))
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &RateLimiter{cfg: cfg, clients: make(map[string]*clientLimiter), now: time.Now}
}

// Allow 为 key 消耗一个令牌。
func (l *RateLimiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.cfg.IdleTTL {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) > l.cfg.IdleTTL {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(l.cfg.QPS), l.cfg.Burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// RateLimit 超出配额时返回 ErrTooManyRequests。QPS <= 0 时直接放行。
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.QPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := NewRateLimiter(cfg)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.Allow(ip) {
			logger.Warnw("rate limit exceeded", "client_ip", ip, "path", c.Request.URL.Path)
			c.Header("Retry-After", "1")
			response.Fail(c, errors.ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
