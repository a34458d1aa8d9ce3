package model

import "time"

type NotificationType string

const (
	NotifyLike         NotificationType = "like"
	NotifyRepost       NotificationType = "repost"
	NotifyComment      NotificationType = "comment"
	NotifyFollow       NotificationType = "follow"
	NotifyMention      NotificationType = "mention"
	NotifyCampaignLike NotificationType = "campaign_like"
	NotifyAIReply      NotificationType = "ai_reply"
)

// Notification 站内通知
type Notification struct {
	ID         string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Type       NotificationType `json:"type" gorm:"type:varchar(20);not null"`
	FromUserID string           `json:"fromUserId" gorm:"type:varchar(66);not null"`
	ToUserID   string           `json:"toUserId" gorm:"type:varchar(66);not null;index:idx_notification_to"`
	PostID     string           `json:"postId,omitempty" gorm:"type:varchar(36)"`
	CampaignID string           `json:"campaignId,omitempty" gorm:"type:varchar(66)"`
	Read       bool             `json:"read" gorm:"column:is_read;not null;default:false"`
	CreatedAt  time.Time        `json:"createdAt" gorm:"index:idx_notification_to"`
}

func (Notification) TableName() string { return "notifications" }
