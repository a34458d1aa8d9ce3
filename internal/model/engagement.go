package model

import "time"

// Like 点赞记录，(post_id, user_id) 唯一
type Like struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	PostID    string    `gorm:"type:varchar(36);not null;index:idx_like_pair,unique"`
	UserID    string    `gorm:"type:varchar(66);not null;index:idx_like_pair,unique;index:idx_like_user"`
	CreatedAt time.Time
}

func (Like) TableName() string { return "likes" }

// Repost 转发记录；RepostPostID 指向转发生成的帖子
type Repost struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	PostID       string `gorm:"type:varchar(36);not null;index:idx_repost_pair,unique"`
	UserID       string `gorm:"type:varchar(66);not null;index:idx_repost_pair,unique"`
	RepostPostID string `gorm:"type:varchar(36);not null"`
	CreatedAt    time.Time
}

func (Repost) TableName() string { return "reposts" }

// Bookmark 收藏
type Bookmark struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `gorm:"type:varchar(66);not null;index:idx_bookmark_pair,unique"`
	PostID    string    `gorm:"type:varchar(36);not null;index:idx_bookmark_pair,unique;index"`
	CreatedAt time.Time `gorm:"index"`
}

func (Bookmark) TableName() string { return "bookmarks" }
