package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oblivion-social/oblivion-api/internal/model"
)

// Publisher 负责事务内写 posts + outbox
type Publisher struct{ db *gorm.DB }

func NewPublisher(db *gorm.DB) *Publisher { return &Publisher{db: db} }

// Publish 在一个事务内落地 Post 与 Outbox 事件，fanout worker 随后投递到粉丝时间线
func (p *Publisher) Publish(ctx context.Context, post *model.Post) error {
	if post.ID == "" {
		post.ID = uuid.New().String()
	}
	now := time.Now()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		out := &model.Outbox{ID: uuid.New().String(), PostID: post.ID, AuthorID: post.AuthorID, CreatedAt: now, Status: model.OutboxPending}
		return tx.Create(out).Error
	})
}
