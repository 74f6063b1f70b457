package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/kart-io/logger"
	"gorm.io/gorm"
)

// ConversationRecord chatbot_conversations 表的一行，主键为 (session_id, timestamp)。
type ConversationRecord struct {
	SessionID   string `gorm:"primaryKey;size:128"`
	Timestamp   string `gorm:"primaryKey;size:40"`
	UserMessage string `gorm:"type:text"`
	AIResponse  string `gorm:"column:ai_response;type:text"`
	ExpiresAt   int64  `gorm:"index"`
}

// TableName 实现 gorm 的 Tabler。
func (ConversationRecord) TableName() string { return DefaultConversationCollection }

func (r *ConversationRecord) toExchange() (Exchange, error) {
	ts, err := ParseTimestamp(r.Timestamp)
	if err != nil {
		return Exchange{}, err
	}
	return Exchange{
		SessionID: r.SessionID,
		Timestamp: ts.UTC(),
		Question:  r.UserMessage,
		Answer:    r.AIResponse,
		ExpiresAt: r.ExpiresAt,
	}, nil
}

// SQLSessionStore 基于 gorm 的会话存储。
type SQLSessionStore struct {
	db   *gorm.DB
	opts SessionOptions
}

// NewSQLSessionStore 创建存储并自动迁移表结构。
func NewSQLSessionStore(db *gorm.DB, opts SessionOptions) (*SQLSessionStore, error) {
	if err := db.AutoMigrate(&ConversationRecord{}); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", DefaultConversationCollection, err)
	}
	return &SQLSessionStore{db: db, opts: opts.withDefaults()}, nil
}

// Name 实现 SessionStore。
func (s *SQLSessionStore) Name() string { return "sql" }

// Append 实现 SessionStore。
func (s *SQLSessionStore) Append(ctx context.Context, sessionID, question, answer string) (*Exchange, error) {
	var ex *Exchange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last ConversationRecord
		err := tx.Where("session_id = ?", sessionID).Order("timestamp DESC").Take(&last).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("read latest exchange: %w", err)
		}

		prev, _ := last.toExchange()
		ex = s.opts.newExchange(sessionID, question, answer, prev.Timestamp)
		rec := ConversationRecord{
			SessionID:   sessionID,
			Timestamp:   ex.TimestampString(),
			UserMessage: question,
			AIResponse:  answer,
			ExpiresAt:   ex.ExpiresAt,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("append exchange: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ex, nil
}

// Query 实现 SessionStore，顺带删除该会话已过期的记录。
func (s *SQLSessionStore) Query(ctx context.Context, sessionID string, limit int) ([]Exchange, error) {
	limit = normalizeLimit(limit)
	now := s.opts.Clock.Now().Unix()
	db := s.db.WithContext(ctx)

	var records []ConversationRecord
	err := db.Where("session_id = ? AND expires_at > ?", sessionID, now).
		Order("timestamp DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}

	if err := db.Where("session_id = ? AND expires_at <= ?", sessionID, now).Delete(&ConversationRecord{}).Error; err != nil {
		logger.Warnw("Failed to delete expired exchanges", "session_id", sessionID, "error", err.Error())
	}

	out := make([]Exchange, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		ex, err := records[i].toExchange()
		if err != nil {
			continue
		}
		out = append(out, ex)
	}
	return out, nil
}
