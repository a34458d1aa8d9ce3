package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oblivion-social/oblivion-api/internal/model"
)

type BookmarkRepository interface {
	Toggle(ctx context.Context, userID, postID string) (bool, error)
	Exists(ctx context.Context, userID, postID string) (bool, error)
	ListPostIDs(ctx context.Context, userID string, offset, limit int) ([]string, error)
}

type bookmarkRepository struct{ db *gorm.DB }

func NewBookmarkRepository(db *gorm.DB) BookmarkRepository { return &bookmarkRepository{db: db} }

// Toggle 返回切换后的收藏状态
func (r *bookmarkRepository) Toggle(ctx context.Context, userID, postID string) (bool, error) {
	bookmarked := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&model.Bookmark{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		bookmarked = true
		b := &model.Bookmark{ID: uuid.New().String(), UserID: userID, PostID: postID}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(b).Error
	})
	return bookmarked, err
}

func (r *bookmarkRepository) Exists(ctx context.Context, userID, postID string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Bookmark{}).
		Where("user_id = ? AND post_id = ?", userID, postID).Count(&cnt).Error
	return cnt > 0, err
}

// ListPostIDs 最近收藏在前
func (r *bookmarkRepository) ListPostIDs(ctx context.Context, userID string, offset, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Bookmark{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id").
		Offset(offset).Limit(limit).
		Pluck("post_id", &ids).Error
	return ids, err
}
