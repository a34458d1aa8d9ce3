package model

// All 需要迁移的全部模型
func All() []interface{} {
	return []interface{}{
		&User{}, &Follow{}, &Fan{},
		&Post{}, &Comment{}, &Like{}, &Repost{}, &Bookmark{},
		&Notification{},
		&CampaignLike{}, &CampaignFinalAmount{},
		&Outbox{}, &Inbox{},
	}
}
