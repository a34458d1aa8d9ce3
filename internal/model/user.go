package model

import "time"

// User 用户，主键为钱包地址（小写）
type User struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(66)"`
	DisplayName    string    `json:"displayName" gorm:"type:varchar(64)"`
	Username       string    `json:"username" gorm:"type:varchar(30);not null"`
	UsernameLower  string    `json:"-" gorm:"type:varchar(30);uniqueIndex;not null"`
	Avatar         string    `json:"avatar" gorm:"type:text"`
	Bio            string    `json:"bio" gorm:"type:varchar(280)"`
	FollowerCount  int64     `json:"followerCount" gorm:"not null;default:0"`
	FollowingCount int64     `json:"followingCount" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// Author 帖子/评论里冗余的作者信息
type Author struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
}

func (u *User) Author() Author {
	return Author{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Avatar: u.Avatar}
}
