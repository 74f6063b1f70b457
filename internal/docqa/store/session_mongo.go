package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultConversationCollection 会话集合与表名。
const DefaultConversationCollection = "chatbot_conversations"

type mongoExchange struct {
	SessionID     string    `bson:"session_id"`
	Timestamp     string    `bson:"timestamp"`
	User          string    `bson:"user"`
	AI            string    `bson:"ai"`
	ExpiresAt     int64     `bson:"expires_at"`
	ExpiresAtTime time.Time `bson:"expires_at_time"`
}

func (m *mongoExchange) toExchange() (Exchange, error) {
	ts, err := ParseTimestamp(m.Timestamp)
	if err != nil {
		return Exchange{}, err
	}
	return Exchange{
		SessionID: m.SessionID,
		Timestamp: ts.UTC(),
		Question:  m.User,
		Answer:    m.AI,
		ExpiresAt: m.ExpiresAt,
	}, nil
}

// MongoSessionStore 唯一索引 {session_id, timestamp}，
// expires_at_time 上的 TTL 索引由服务端异步清理过期文档。
type MongoSessionStore struct {
	coll *mongo.Collection
	opts SessionOptions
}

// NewMongoSessionStore 创建存储并确保索引存在。
func NewMongoSessionStore(ctx context.Context, db *mongo.Database, collection string, opts SessionOptions) (*MongoSessionStore, error) {
	if collection == "" {
		collection = DefaultConversationCollection
	}
	s := &MongoSessionStore{coll: db.Collection(collection), opts: opts.withDefaults()}

	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("session_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "expires_at_time", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("expires_at_ttl"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create indexes on %s: %w", collection, err)
	}
	return s, nil
}

// Name 实现 SessionStore。
func (s *MongoSessionStore) Name() string { return "mongodb" }

// Append 实现 SessionStore。
func (s *MongoSessionStore) Append(ctx context.Context, sessionID, question, answer string) (*Exchange, error) {
	var last mongoExchange
	err := s.coll.FindOne(ctx,
		bson.M{"session_id": sessionID},
		options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}}),
	).Decode(&last)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("read latest exchange: %w", err)
	}

	var lastTS time.Time
	if err == nil {
		if ex, perr := last.toExchange(); perr == nil {
			lastTS = ex.Timestamp
		}
	}

	ex := s.opts.newExchange(sessionID, question, answer, lastTS)
	doc := mongoExchange{
		SessionID:     sessionID,
		Timestamp:     ex.TimestampString(),
		User:          question,
		AI:            answer,
		ExpiresAt:     ex.ExpiresAt,
		ExpiresAtTime: time.Unix(ex.ExpiresAt, 0).UTC(),
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("append exchange: %w", err)
	}
	return ex, nil
}

// Query 实现 SessionStore。TTL 清理存在延迟，读取时再按 expires_at 过滤。
func (s *MongoSessionStore) Query(ctx context.Context, sessionID string, limit int) ([]Exchange, error) {
	limit = normalizeLimit(limit)
	now := s.opts.Clock.Now()

	cur, err := s.coll.Find(ctx,
		bson.M{"session_id": sessionID, "expires_at": bson.M{"$gt": now.Unix()}},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoExchange
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode exchanges: %w", err)
	}

	out := make([]Exchange, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		ex, err := docs[i].toExchange()
		if err != nil {
			continue
		}
		out = append(out, ex)
	}
	return out, nil
}
