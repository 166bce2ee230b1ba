package sqlstore

import (
	"strings"

	"Uni_Hub/internal/model"

	"gorm.io/gorm"
)

type CommunityRepository struct {
	DB *gorm.DB
}

// ListFilter 社区列表过滤条件，ViewerID=0 表示匿名
type ListFilter struct {
	ViewerID uint64
	Category string
	Search   string
	Tag      string
	MemberOf bool
	OrderBy  string // recent | name | member_count
	Offset   int
	Limit    int
}

// Create 创建社区并让创建者以管理员身份加入（需在事务内调用）
func (r *CommunityRepository) Create(c *model.Community) error {
	if err := r.DB.Create(c).Error; err != nil {
		return err
	}
	mRepo := &MembershipRepository{DB: r.DB}
	_, err := mRepo.Join(&model.Membership{
		CommunityID: c.ID,
		UserID:      c.CreatorID,
		Role:        model.RoleAdmin,
		Status:      model.StatusApproved,
	})
	return err
}

func (r *CommunityRepository) FindByID(id uint64) (*model.Community, error) {
	var community model.Community
	err := r.DB.First(&community, id).Error
	return &community, err
}

func (r *CommunityRepository) FindBySlug(slug string) (*model.Community, error) {
	var community model.Community
	err := r.DB.Where("slug = ?", slug).First(&community).Error
	return &community, err
}

func (r *CommunityRepository) SlugTaken(slug string) (bool, error) {
	var n int64
	err := r.DB.Model(&model.Community{}).Where("slug = ?", slug).Count(&n).Error
	return n > 0, err
}

// Lock 以 select for update 重新读取社区。
// 所有成员变更都先拿这把锁，管理员计数和成员计数的读写不会交错
func (r *CommunityRepository) Lock(id uint64) (*model.Community, error) {
	var community model.Community
	err := forUpdate(r.DB).First(&community, id).Error
	return &community, err
}

func (r *CommunityRepository) List(f ListFilter) ([]model.Community, error) {
	q := r.DB.Model(&model.Community{})

	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		q = q.Where("name LIKE ? OR description LIKE ? OR tags LIKE ?", like, like, like)
	}
	if t := strings.TrimSpace(f.Tag); t != "" {
		q = q.Where("tags LIKE ?", "%"+t+"%")
	}

	joined := r.DB.Model(&model.Membership{}).
		Select("community_id").
		Where("user_id = ? AND status = ?", f.ViewerID, model.StatusApproved)
	if f.MemberOf && f.ViewerID != 0 {
		q = q.Where("id IN (?)", joined)
	}
	// 匿名只能看到公开社区；登录用户额外可见自己加入或创建的私有社区
	if f.ViewerID == 0 {
		q = q.Where("is_private = ?", false)
	} else {
		q = q.Where("is_private = ? OR creator_id = ? OR id IN (?)", false, f.ViewerID, joined)
	}

	switch f.OrderBy {
	case "name":
		q = q.Order("name ASC")
	case "member_count":
		q = q.Order("member_count DESC").Order("id DESC")
	default:
		q = q.Order("created_at DESC").Order("id DESC")
	}

	var list []model.Community
	err := q.Offset(f.Offset).Limit(f.Limit).Find(&list).Error
	return list, err
}

// Delete 级联删除社区、成员关系、邀请、帖子及其子记录（需在事务内调用）
func (r *CommunityRepository) Delete(id uint64) error {
	var postIDs []uint64
	if err := r.DB.Model(&model.Post{}).Where("community_id = ?", id).Pluck("id", &postIDs).Error; err != nil {
		return err
	}
	pRepo := &PostRepository{DB: r.DB}
	for _, pid := range postIDs {
		if err := pRepo.Delete(pid); err != nil {
			return err
		}
	}
	if err := r.DB.Where("community_id = ?", id).Delete(&model.Membership{}).Error; err != nil {
		return err
	}
	if err := r.DB.Where("community_id = ?", id).Delete(&model.CommunityInvitation{}).Error; err != nil {
		return err
	}
	// 幂等硬删除：不存在也视为成功
	return r.DB.Delete(&model.Community{}, id).Error
}
