package sqlstore

import (
	"Uni_Hub/internal/model"

	"gorm.io/gorm"
)

type UpvoteRepository struct {
	DB *gorm.DB
}

// TogglePost 已点赞则取消，否则点赞；返回操作后的状态
func (r *UpvoteRepository) TogglePost(postID, userID uint64) (bool, error) {
	res := r.DB.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&model.PostUpvote{})
	if res.Error != nil {
		return false, res.Error
	}
	// 删掉了说明之前已点赞
	if res.RowsAffected > 0 {
		return false, nil
	}
	if err := r.DB.Create(&model.PostUpvote{PostID: postID, UserID: userID}).Error; err != nil {
		return false, err
	}
	return true, nil
}

// ToggleComment 同 TogglePost，作用于评论
func (r *UpvoteRepository) ToggleComment(commentID, userID uint64) (bool, error) {
	res := r.DB.Where("comment_id = ? AND user_id = ?", commentID, userID).Delete(&model.CommentUpvote{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return false, nil
	}
	if err := r.DB.Create(&model.CommentUpvote{CommentID: commentID, UserID: userID}).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *UpvoteRepository) IsPostUpvoted(postID, userID uint64) (bool, error) {
	var n int64
	err := r.DB.Model(&model.PostUpvote{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&n).Error
	return n > 0, err
}
