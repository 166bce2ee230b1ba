package sqlstore

import (
	"time"

	"Uni_Hub/internal/model"

	"gorm.io/gorm"
)

type InvitationRepository struct {
	DB *gorm.DB
}

func (r *InvitationRepository) Create(inv *model.CommunityInvitation) error {
	return r.DB.Create(inv).Error
}

// MarkSent 邮件发出后回写发送状态
func (r *InvitationRepository) MarkSent(id uint64, at time.Time) error {
	return r.DB.Model(&model.CommunityInvitation{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_sent": true, "sent_at": at}).Error
}

// ListByCommunity 最新的邀请在前
func (r *InvitationRepository) ListByCommunity(communityID uint64, offset, limit int) ([]model.CommunityInvitation, error) {
	var list []model.CommunityInvitation
	err := r.DB.Where("community_id = ?", communityID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&list).Error
	return list, err
}
