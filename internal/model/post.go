package model

import "time"

type PostType string

const (
	TypeDiscussion   PostType = "discussion"
	TypeQuestion     PostType = "question"
	TypeEvent        PostType = "event"
	TypeAnnouncement PostType = "announcement"
	TypeResource     PostType = "resource"
	TypeOther        PostType = "other"
)

var PostTypes = []PostType{TypeDiscussion, TypeQuestion, TypeEvent, TypeAnnouncement, TypeResource, TypeOther}

func (t PostType) Valid() bool {
	for _, v := range PostTypes {
		if t == v {
			return true
		}
	}
	return false
}

type Post struct {
	ID           uint64    `gorm:"primaryKey"`
	CommunityID  uint64    `gorm:"not null;index:idx_community_time,priority:1"`
	AuthorID     uint64    `gorm:"not null;index"`
	Title        string    `gorm:"size:255;not null"`
	Content      string    `gorm:"type:text"`
	PostType     PostType  `gorm:"size:20;not null;default:discussion;index"`
	IsPinned     bool      `gorm:"not null;default:false"`
	UpvoteCount  int64     `gorm:"not null;default:0"`
	CommentCount int64     `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"index:idx_community_time,priority:2,sort:desc"`
	UpdatedAt    time.Time

	// Event 仅在 PostType == TypeEvent 时存在，读取请走 EventDetails
	Event *PostEvent `gorm:"foreignKey:PostID"`
}

// EventDetails 返回活动帖的活动信息；非活动帖一律返回 ok=false，
// 即使意外挂了一条孤儿活动记录也不暴露
func (p *Post) EventDetails() (ev *PostEvent, ok bool) {
	if p.PostType != TypeEvent || p.Event == nil {
		return nil, false
	}
	return p.Event, true
}

// PostEvent 活动帖专属字段，每个活动帖恰好一行，其它类型没有
type PostEvent struct {
	PostID           uint64 `gorm:"primaryKey;autoIncrement:false"`
	EventDate        *time.Time
	Location         string `gorm:"size:255"`
	ParticipantLimit *int64 // nil 表示不限人数
	ParticipantCount int64  `gorm:"not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasCapacity 当前人数下是否还能再加入一人
func (e *PostEvent) HasCapacity(current int64) bool {
	return e.ParticipantLimit == nil || current < *e.ParticipantLimit
}

type EventParticipant struct {
	ID        uint64 `gorm:"primaryKey"`
	PostID    uint64 `gorm:"not null;uniqueIndex:uk_event_user"`
	UserID    uint64 `gorm:"not null;uniqueIndex:uk_event_user;index"`
	CreatedAt time.Time
}
