package service

import "errors"

var (
	ErrFollowSelf = errors.New("cannot follow self")

	ErrInvalidWallet   = errors.New("invalid wallet address")
	ErrInvalidUsername = errors.New("username must be 3-30 letters, digits or underscores")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrUserExists      = errors.New("user already exists")
	ErrUserNotFound    = errors.New("user not found")

	ErrPostNotFound       = errors.New("post not found")
	ErrEmptyPost          = errors.New("post needs text or an image")
	ErrEmptyComment       = errors.New("comment needs text or media")
	ErrTextTooLong        = errors.New("text exceeds 1000 characters")
	ErrInvalidStorageMode = errors.New("invalid storage mode")
	ErrCannotRepostOwn    = errors.New("cannot repost own post")
	ErrCommentNotFound    = errors.New("comment not found")
	ErrInvalidMedia       = errors.New("invalid media")
	ErrForbidden          = errors.New("forbidden")

	ErrNotificationNotFound = errors.New("notification not found")

	ErrChainUnavailable = errors.New("chain gateway not configured")
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrInvalidAmount    = errors.New("amount must be a non-negative decimal")
)

// MaxTextLength 帖子/评论正文上限（按字符计）
const MaxTextLength = 1000
