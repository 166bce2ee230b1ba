package model

import "time"

// User 账号由外部认证服务维护，这里只读，用于发送通知
type User struct {
	ID        uint64 `gorm:"primaryKey"`
	Username  string `gorm:"uniqueIndex;size:32;not null"`
	FirstName string `gorm:"size:64"`
	Email     string `gorm:"uniqueIndex;size:64;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName 优先使用名字，其次用户名
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}

// All 需要自动建表的全部模型
func All() []any {
	return []any{
		&User{},
		&Community{},
		&Membership{},
		&Post{},
		&PostEvent{},
		&EventParticipant{},
		&PostUpvote{},
		&Comment{},
		&CommentUpvote{},
		&CommunityInvitation{},
	}
}
