package model

import "time"

// CampaignLike 众筹活动点赞
type CampaignLike struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	CampaignID string `gorm:"type:varchar(66);not null;index:idx_campaign_like_pair,unique"`
	UserID     string `gorm:"type:varchar(66);not null;index:idx_campaign_like_pair,unique"`
	CreatedAt  time.Time
}

func (CampaignLike) TableName() string { return "campaign_likes" }

// CampaignFinalAmount 活动结束后记录的最终金额（十进制字符串，避免精度丢失）
type CampaignFinalAmount struct {
	CampaignID string    `json:"campaignId" gorm:"primaryKey;type:varchar(66)"`
	Amount     string    `json:"amount" gorm:"type:varchar(78);not null"`
	UpdatedBy  string    `json:"updatedBy" gorm:"type:varchar(66)"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (CampaignFinalAmount) TableName() string { return "campaign_final_amounts" }
