package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docqa/pkg/utils/json"
)

// DefaultRedisKeyPrefix 会话 ZSET 键前缀。
const DefaultRedisKeyPrefix = "docqa:session:"

// RedisSessionStore 每个会话一个 ZSET，score 为微秒时间戳，
// member 为以定宽时间戳开头的 JSON，同分时按字典序即时间序排列。
type RedisSessionStore struct {
	client goredis.UniversalClient
	prefix string
	opts   SessionOptions
}

// redisMember 字段顺序决定 member 的字典序，timestamp 必须在首位。
type redisMember struct {
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
	AI        string `json:"ai"`
	ExpiresAt int64  `json:"expires_at"`
}

// NewRedisSessionStore 创建 Redis 会话存储。
func NewRedisSessionStore(client goredis.UniversalClient, prefix string, opts SessionOptions) *RedisSessionStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisSessionStore{client: client, prefix: prefix, opts: opts.withDefaults()}
}

// Name 实现 SessionStore。
func (s *RedisSessionStore) Name() string { return "redis" }

func (s *RedisSessionStore) key(sessionID string) string { return s.prefix + sessionID }

// Append 实现 SessionStore。
func (s *RedisSessionStore) Append(ctx context.Context, sessionID, question, answer string) (*Exchange, error) {
	key := s.key(sessionID)

	newest, err := s.client.ZRevRange(ctx, key, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("read latest exchange: %w", err)
	}
	var last Exchange
	if len(newest) == 1 {
		if ex, derr := decodeMember(sessionID, newest[0]); derr == nil {
			last = ex
		}
	}

	ex := s.opts.newExchange(sessionID, question, answer, last.Timestamp)
	member, err := encodeMember(ex)
	if err != nil {
		return nil, err
	}

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(ex.Timestamp.UnixMicro()), Member: member})
	pipe.Expire(ctx, key, s.opts.Retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("append exchange: %w", err)
	}
	return ex, nil
}

// Query 实现 SessionStore。过期成员在读取时过滤，并顺带从 ZSET 中删除。
func (s *RedisSessionStore) Query(ctx context.Context, sessionID string, limit int) ([]Exchange, error) {
	key := s.key(sessionID)
	limit = normalizeLimit(limit)
	now := s.opts.Clock.Now()

	members, err := s.client.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}

	out := make([]Exchange, 0, len(members))
	expiredMax := -1.0
	for _, z := range members {
		raw, ok := z.Member.(string)
		if !ok {
			continue
		}
		ex, err := decodeMember(sessionID, raw)
		if err != nil {
			continue
		}
		if ex.Expired(now) {
			if z.Score > expiredMax {
				expiredMax = z.Score
			}
			continue
		}
		out = append(out, ex)
	}

	if expiredMax >= 0 {
		// 过期时间随时间戳单调，score 不大于最新过期成员的都已过期
		if err := s.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatFloat(expiredMax, 'f', -1, 64)).Err(); err != nil {
			logger.Warnw("Failed to trim expired exchanges", "key", key, "error", err.Error())
		}
	}

	// ZREVRANGE 为降序，翻转为升序
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func encodeMember(ex *Exchange) (string, error) {
	b, err := json.Marshal(redisMember{
		Timestamp: ex.TimestampString(),
		User:      ex.Question,
		AI:        ex.Answer,
		ExpiresAt: ex.ExpiresAt,
	})
	if err != nil {
		return "", fmt.Errorf("encode exchange: %w", err)
	}
	return string(b), nil
}

func decodeMember(sessionID, raw string) (Exchange, error) {
	var m redisMember
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Exchange{}, err
	}
	ts, err := ParseTimestamp(m.Timestamp)
	if err != nil {
		return Exchange{}, err
	}
	return Exchange{
		SessionID: sessionID,
		Timestamp: ts.UTC(),
		Question:  m.User,
		Answer:    m.AI,
		ExpiresAt: m.ExpiresAt,
	}, nil
}
