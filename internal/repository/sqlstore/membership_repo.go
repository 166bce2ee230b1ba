package sqlstore

import (
	"Uni_Hub/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MembershipRepository struct {
	DB *gorm.DB
}

// Join 幂等插入：(community_id, user_id) 已存在时不报错，返回 false
func (r *MembershipRepository) Join(m *model.Membership) (bool, error) {
	tx := r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "community_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(m)
	return tx.RowsAffected > 0, tx.Error
}

func (r *MembershipRepository) Find(communityID, userID uint64) (*model.Membership, error) {
	var m model.Membership
	err := r.DB.Where("community_id = ? AND user_id = ?", communityID, userID).First(&m).Error
	return &m, err
}

func (r *MembershipRepository) Delete(id uint64) error {
	return r.DB.Delete(&model.Membership{}, id).Error
}

func (r *MembershipRepository) UpdateRole(id uint64, role model.Role) error {
	return r.DB.Model(&model.Membership{}).Where("id = ?", id).Update("role", role).Error
}

func (r *MembershipRepository) UpdateStatus(id uint64, status model.MembershipStatus) error {
	return r.DB.Model(&model.Membership{}).Where("id = ?", id).Update("status", status).Error
}

func (r *MembershipRepository) CountApprovedAdmins(communityID uint64) (int64, error) {
	var n int64
	err := r.DB.Model(&model.Membership{}).
		Where("community_id = ? AND role = ? AND status = ?", communityID, model.RoleAdmin, model.StatusApproved).
		Count(&n).Error
	return n, err
}

func (r *MembershipRepository) IsApprovedMember(communityID, userID uint64) (bool, error) {
	var n int64
	err := r.DB.Model(&model.Membership{}).
		Where("community_id = ? AND user_id = ? AND status = ?", communityID, userID, model.StatusApproved).
		Count(&n).Error
	return n > 0, err
}

// ListApproved 已批准成员列表，role 为空时不过滤角色
func (r *MembershipRepository) ListApproved(communityID uint64, role model.Role) ([]model.Membership, error) {
	q := r.DB.Where("community_id = ? AND status = ?", communityID, model.StatusApproved)
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var list []model.Membership
	err := q.Order("id ASC").Find(&list).Error
	return list, err
}
