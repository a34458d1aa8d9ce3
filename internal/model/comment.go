package model

import "time"

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaGIF   MediaType = "gif"
)

func (m MediaType) Valid() bool { return m == MediaImage || m == MediaVideo || m == MediaGIF }

// Comment 评论
type Comment struct {
	ID                string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	PostID            string    `json:"postId" gorm:"type:varchar(36);index:idx_comment_post;not null"`
	AuthorID          string    `json:"authorId" gorm:"type:varchar(66);not null"`
	AuthorUsername    string    `json:"authorUsername" gorm:"type:varchar(30)"`
	AuthorDisplayName string    `json:"authorDisplayName" gorm:"type:varchar(64)"`
	AuthorAvatar      string    `json:"authorAvatar" gorm:"type:text"`
	Text              string    `json:"text" gorm:"type:text"`
	MediaURL          string    `json:"mediaUrl,omitempty" gorm:"type:text"`
	MediaType         MediaType `json:"mediaType,omitempty" gorm:"type:varchar(8)"`
	IsAI              bool      `json:"isAi" gorm:"not null;default:false"`
	CreatedAt         time.Time `json:"createdAt" gorm:"index:idx_comment_post"`
}

func (Comment) TableName() string { return "comments" }

func (c *Comment) SetAuthor(a Author) {
	c.AuthorID = a.ID
	c.AuthorUsername = a.Username
	c.AuthorDisplayName = a.DisplayName
	c.AuthorAvatar = a.Avatar
}
