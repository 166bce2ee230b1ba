package sqlstore

import (
	"Uni_Hub/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ParticipantRepository struct {
	DB *gorm.DB
}

// Add 幂等报名，已报名返回 false
func (r *ParticipantRepository) Add(postID, userID uint64) (bool, error) {
	tx := r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&model.EventParticipant{PostID: postID, UserID: userID})
	return tx.RowsAffected > 0, tx.Error
}

// Remove 取消报名，未报名返回 false
func (r *ParticipantRepository) Remove(postID, userID uint64) (bool, error) {
	tx := r.DB.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&model.EventParticipant{})
	return tx.RowsAffected > 0, tx.Error
}

func (r *ParticipantRepository) Exists(postID, userID uint64) (bool, error) {
	var n int64
	err := r.DB.Model(&model.EventParticipant{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&n).Error
	return n > 0, err
}

func (r *ParticipantRepository) Count(postID uint64) (int64, error) {
	var n int64
	err := r.DB.Model(&model.EventParticipant{}).Where("post_id = ?", postID).Count(&n).Error
	return n, err
}
