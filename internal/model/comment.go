package model

import "time"

type Comment struct {
	ID          uint64  `gorm:"primaryKey"`
	PostID      uint64  `gorm:"not null;index"`
	AuthorID    uint64  `gorm:"not null;index"`
	ParentID    *uint64 `gorm:"index"` // 顶层评论为 nil
	Content     string  `gorm:"type:text;not null"`
	UpvoteCount int64   `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
