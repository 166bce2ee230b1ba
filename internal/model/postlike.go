package model

import "time"

type PostUpvote struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	PostID    uint64 `gorm:"not null;uniqueIndex:uk_post_user"`
	UserID    uint64 `gorm:"not null;uniqueIndex:uk_post_user;index"`
	CreatedAt time.Time
}

func (PostUpvote) TableName() string {
	return "post_upvotes"
}

type CommentUpvote struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	CommentID uint64 `gorm:"not null;uniqueIndex:uk_comment_user"`
	UserID    uint64 `gorm:"not null;uniqueIndex:uk_comment_user;index"`
	CreatedAt time.Time
}

func (CommentUpvote) TableName() string {
	return "comment_upvotes"
}
