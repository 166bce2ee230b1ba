package service

import (
	"Uni_Hub/internal/model"
	"Uni_Hub/internal/repository/sqlstore"

	"gorm.io/gorm"
)

// AccessPolicy 判断用户能否查看/参与私有社区的内容，由接入方提供。
// tx 为调用方当前事务，实现方应在其中查询以读到一致的状态
type AccessPolicy interface {
	CanAccess(tx *gorm.DB, userID uint64, c *model.Community) (bool, error)
}

// MembershipPolicy 默认策略：公开社区所有人可见；私有社区要求创建者或已批准成员
type MembershipPolicy struct{}

func (MembershipPolicy) CanAccess(tx *gorm.DB, userID uint64, c *model.Community) (bool, error) {
	if !c.IsPrivate || c.CreatorID == userID {
		return true, nil
	}
	if userID == 0 {
		return false, nil
	}
	return (&sqlstore.MembershipRepository{DB: tx}).IsApprovedMember(c.ID, userID)
}
