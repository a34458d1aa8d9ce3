package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oblivion-social/oblivion-api/internal/model"
)

type CampaignRepository interface {
	ToggleLike(ctx context.Context, campaignID, userID string) (bool, int64, error)
	HasLiked(ctx context.Context, campaignID, userID string) (bool, error)
	CountLikes(ctx context.Context, campaignIDs []string) (map[string]int64, error)
	SetFinalAmount(ctx context.Context, campaignID, amount, updatedBy string) error
	GetFinalAmount(ctx context.Context, campaignID string) (*model.CampaignFinalAmount, error)
	ListFinalAmounts(ctx context.Context, campaignIDs []string) (map[string]string, error)
}

type campaignRepository struct{ db *gorm.DB }

func NewCampaignRepository(db *gorm.DB) CampaignRepository { return &campaignRepository{db: db} }

func (r *campaignRepository) ToggleLike(ctx context.Context, campaignID, userID string) (bool, int64, error) {
	liked := false
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("campaign_id = ? AND user_id = ?", campaignID, userID).Delete(&model.CampaignLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			like := &model.CampaignLike{ID: uuid.New().String(), CampaignID: campaignID, UserID: userID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(like).Error; err != nil {
				return err
			}
			liked = true
		}
		return tx.Model(&model.CampaignLike{}).Where("campaign_id = ?", campaignID).Count(&count).Error
	})
	return liked, count, err
}

func (r *campaignRepository) HasLiked(ctx context.Context, campaignID, userID string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.CampaignLike{}).
		Where("campaign_id = ? AND user_id = ?", campaignID, userID).Count(&cnt).Error
	return cnt > 0, err
}

func (r *campaignRepository) CountLikes(ctx context.Context, campaignIDs []string) (map[string]int64, error) {
	res := make(map[string]int64, len(campaignIDs))
	if len(campaignIDs) == 0 {
		return res, nil
	}
	type row struct {
		CampaignID string
		N          int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&model.CampaignLike{}).
		Select("campaign_id, COUNT(*) AS n").
		Where("campaign_id IN ?", campaignIDs).
		Group("campaign_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		res[row.CampaignID] = row.N
	}
	return res, nil
}

// SetFinalAmount upsert
func (r *campaignRepository) SetFinalAmount(ctx context.Context, campaignID, amount, updatedBy string) error {
	rec := &model.CampaignFinalAmount{CampaignID: campaignID, Amount: amount, UpdatedBy: updatedBy, UpdatedAt: time.Now()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_by", "updated_at"}),
	}).Create(rec).Error
}

func (r *campaignRepository) GetFinalAmount(ctx context.Context, campaignID string) (*model.CampaignFinalAmount, error) {
	var rec model.CampaignFinalAmount
	if err := r.db.WithContext(ctx).Where("campaign_id = ?", campaignID).First(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

func (r *campaignRepository) ListFinalAmounts(ctx context.Context, campaignIDs []string) (map[string]string, error) {
	res := make(map[string]string, len(campaignIDs))
	if len(campaignIDs) == 0 {
		return res, nil
	}
	var rows []model.CampaignFinalAmount
	if err := r.db.WithContext(ctx).Where("campaign_id IN ?", campaignIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		res[row.CampaignID] = row.Amount
	}
	return res, nil
}
