package model

import "time"

type InvitationStatus string

const InvitationPending InvitationStatus = "pending"

// CommunityInvitation 管理员按邮箱发出的入群邀请；IsSent/SentAt 记录邮件是否真正发出
type CommunityInvitation struct {
	ID           uint64           `gorm:"primaryKey"`
	CommunityID  uint64           `gorm:"not null;index"`
	InviterID    uint64           `gorm:"not null;index"`
	InviteeEmail string           `gorm:"size:64;not null;index"`
	Message      string           `gorm:"type:text"`
	Status       InvitationStatus `gorm:"size:20;not null;default:pending"`
	IsSent       bool             `gorm:"not null;default:false"`
	SentAt       *time.Time
	CreatedAt    time.Time `gorm:"index"`
	UpdatedAt    time.Time
}
