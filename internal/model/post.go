package model

import "time"

// StorageMode 帖子的落地方式
type StorageMode string

const (
	StorageDatabase StorageMode = "database"
	// StorageOblivion 额外通过合约 create_post 上链
	StorageOblivion StorageMode = "oblivion"
)

func (m StorageMode) Valid() bool { return m == StorageDatabase || m == StorageOblivion }

// Post 帖子；转发时冗余一份原帖内容
type Post struct {
	ID                string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	AuthorID          string      `json:"authorId" gorm:"type:varchar(66);index:idx_post_author;not null"`
	AuthorUsername    string      `json:"authorUsername" gorm:"type:varchar(30)"`
	AuthorDisplayName string      `json:"authorDisplayName" gorm:"type:varchar(64)"`
	AuthorAvatar      string      `json:"authorAvatar" gorm:"type:text"`
	Text              string      `json:"text" gorm:"type:text"`
	ImageURL          string      `json:"imageUrl,omitempty" gorm:"type:text"`
	StorageMode       StorageMode `json:"storageMode" gorm:"type:varchar(16);not null;default:database"`
	ChainTxHash       string      `json:"chainTxHash,omitempty" gorm:"type:varchar(80)"`
	LikeCount         int64       `json:"likeCount" gorm:"not null;default:0"`
	RepostCount       int64       `json:"repostCount" gorm:"not null;default:0"`
	CommentCount      int64       `json:"commentCount" gorm:"not null;default:0"`

	RepostOfID                string     `json:"repostOfId,omitempty" gorm:"type:varchar(36);index"`
	OriginalAuthorID          string     `json:"originalAuthorId,omitempty" gorm:"type:varchar(66)"`
	OriginalAuthorUsername    string     `json:"originalAuthorUsername,omitempty" gorm:"type:varchar(30)"`
	OriginalAuthorDisplayName string     `json:"originalAuthorDisplayName,omitempty" gorm:"type:varchar(64)"`
	OriginalAuthorAvatar      string     `json:"originalAuthorAvatar,omitempty" gorm:"type:text"`
	OriginalText              string     `json:"originalText,omitempty" gorm:"type:text"`
	OriginalImageURL          string     `json:"originalImageUrl,omitempty" gorm:"type:text"`
	OriginalCreatedAt         *time.Time `json:"originalCreatedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Post) TableName() string { return "posts" }

func (p *Post) IsRepost() bool { return p.RepostOfID != "" }

// SetAuthor 写入冗余作者字段
func (p *Post) SetAuthor(a Author) {
	p.AuthorID = a.ID
	p.AuthorUsername = a.Username
	p.AuthorDisplayName = a.DisplayName
	p.AuthorAvatar = a.Avatar
}

// Engagement 热度：点赞 + 转发
func (p *Post) Engagement() int64 { return p.LikeCount + p.RepostCount }
