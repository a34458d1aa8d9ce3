package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oblivion-social/oblivion-api/internal/model"
)

type FanRepository interface {
	ListFans(ctx context.Context, userID string, offset, limit int) ([]*model.Fan, error)
	Count(ctx context.Context, userID string) (int64, error)
	Rebuild(ctx context.Context) (int64, error)
}

type fanRepository struct{ db *gorm.DB }

func NewFanRepository(db *gorm.DB) FanRepository { return &fanRepository{db: db} }

func (r *fanRepository) ListFans(ctx context.Context, userID string, offset, limit int) ([]*model.Fan, error) {
	var res []*model.Fan
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Order("id").
		Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}

func (r *fanRepository) Count(ctx context.Context, userID string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Fan{}).Where("user_id = ?", userID).Count(&cnt).Error
	return cnt, err
}

// Rebuild 以 follows 为准重建冗余的 fans 表
func (r *fanRepository) Rebuild(ctx context.Context) (int64, error) {
	var inserted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM fans").Error; err != nil {
			return err
		}
		res := tx.Exec(`
			INSERT INTO fans (id, user_id, fan_id, created_at)
			SELECT id, followee_id, follower_id, created_at FROM follows
		`)
		inserted = res.RowsAffected
		return res.Error
	})
	return inserted, err
}
