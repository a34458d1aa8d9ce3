package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oblivion-social/oblivion-api/internal/model"
)

// TimelineRepository 读关注时间线（inbox 由 fanout worker 写入）
type TimelineRepository interface {
	ListPostIDs(ctx context.Context, userID string, beforeScore int64, limit int) ([]string, error)
	RemoveAuthor(ctx context.Context, userID, authorID string) error
}

type timelineRepository struct{ db *gorm.DB }

func NewTimelineRepository(db *gorm.DB) TimelineRepository { return &timelineRepository{db: db} }

func (r *timelineRepository) ListPostIDs(ctx context.Context, userID string, beforeScore int64, limit int) ([]string, error) {
	q := r.db.WithContext(ctx).Model(&model.Inbox{}).Where("user_id = ?", userID)
	if beforeScore > 0 {
		q = q.Where("score < ?", beforeScore)
	}
	var ids []string
	err := q.Order("score DESC").Limit(clampLimit(limit, 20, 100)).Pluck("post_id", &ids).Error
	return ids, err
}

// RemoveAuthor 取消关注后清理该作者在时间线中的帖子
func (r *timelineRepository) RemoveAuthor(ctx context.Context, userID, authorID string) error {
	sub := r.db.Model(&model.Post{}).Select("id").Where("author_id = ?", authorID)
	return r.db.WithContext(ctx).Where("user_id = ? AND post_id IN (?)", userID, sub).Delete(&model.Inbox{}).Error
}
