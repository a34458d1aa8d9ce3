package model

import "time"

// Follow 关注关系（A 关注 B）
type Follow struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	FollowerID string `gorm:"type:varchar(66);index:idx_follow_follower;index:idx_follow_pair,unique;not null"`
	FolloweeID string `gorm:"type:varchar(66);not null;index:idx_follow_pair,unique"`
	// idx_follow_pair = (follower_id, followee_id)，避免重复关注
	CreatedAt time.Time
}

func (Follow) TableName() string { return "follows" }
