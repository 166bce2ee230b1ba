package model

import "time"

type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Roles 可分配的全部角色，按权限从低到高
var Roles = []Role{RoleMember, RoleModerator, RoleAdmin}

func (r Role) Valid() bool {
	for _, v := range Roles {
		if r == v {
			return true
		}
	}
	return false
}

type MembershipStatus string

const (
	StatusPending  MembershipStatus = "pending"
	StatusApproved MembershipStatus = "approved"
	StatusRejected MembershipStatus = "rejected"
)

type Community struct {
	ID               uint64    `gorm:"primaryKey"`
	Name             string    `gorm:"uniqueIndex;size:100;not null"`
	Slug             string    `gorm:"uniqueIndex;size:120;not null"`
	Description      string    `gorm:"type:text"`
	Category         string    `gorm:"size:20;not null;default:other;index:idx_category_private,priority:1"`
	Tags             string    `gorm:"size:255"`
	IsPrivate        bool      `gorm:"not null;default:false;index:idx_category_private,priority:2"`
	RequiresApproval bool      `gorm:"not null;default:false"`
	CreatorID        uint64    `gorm:"not null;index"`
	MemberCount      int64     `gorm:"not null;default:0"` // 已批准成员数，由计数刷新维护
	CreatedAt        time.Time `gorm:"index"`
	UpdatedAt        time.Time
}

type Membership struct {
	ID          uint64           `gorm:"primaryKey"`
	CommunityID uint64           `gorm:"not null;uniqueIndex:uk_community_user;index:idx_community_role,priority:1"`
	UserID      uint64           `gorm:"not null;uniqueIndex:uk_community_user;index"`
	Role        Role             `gorm:"size:20;not null;default:member;index:idx_community_role,priority:2"`
	Status      MembershipStatus `gorm:"size:20;not null;default:approved;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (m *Membership) IsApprovedAdmin() bool {
	return m.Role == RoleAdmin && m.Status == StatusApproved
}
