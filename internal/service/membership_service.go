package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"Uni_Hub/internal/model"
	"Uni_Hub/internal/pkg"
	"Uni_Hub/internal/repository/sqlstore"

	"gorm.io/gorm"
)

// MembershipService 社区与成员状态机。
// 所有变更先锁社区行，再在同一事务内检查、写入、刷新 member_count
type MembershipService struct {
	db       *gorm.DB
	counters *CounterService
	policy   AccessPolicy
}

func NewMembershipService(db *gorm.DB, counters *CounterService, policy AccessPolicy) *MembershipService {
	if policy == nil {
		policy = MembershipPolicy{}
	}
	return &MembershipService{db: db, counters: counters, policy: policy}
}

type CreateCommunityInput struct {
	Name             string
	Description      string
	Category         string
	Tags             string
	IsPrivate        bool
	RequiresApproval bool
}

// 与 model.Community 的列宽一致
const (
	maxCommunityNameLen = 100
	maxTagsLen          = 255
)

var categories = map[string]bool{
	"academic": true, "social": true, "sports": true, "arts": true, "career": true,
	"technology": true, "health": true, "service": true, "other": true,
}

// CreateCommunity 创建社区，创建者成为已批准的管理员
func (s *MembershipService) CreateCommunity(ctx context.Context, creatorID uint64, in CreateCommunityInput) (*model.Community, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || creatorID == 0 {
		return nil, invalid("community name required")
	}
	if utf8.RuneCountInString(name) > maxCommunityNameLen {
		return nil, invalid(fmt.Sprintf("community name must be at most %d characters", maxCommunityNameLen))
	}
	if utf8.RuneCountInString(in.Tags) > maxTagsLen {
		return nil, invalid(fmt.Sprintf("tags must be at most %d characters", maxTagsLen))
	}
	category := in.Category
	if category == "" {
		category = "other"
	}
	if !categories[category] {
		return nil, invalid(fmt.Sprintf("unknown category %q", in.Category))
	}
	slug := pkg.Slugify(name)
	if slug == "" {
		return nil, invalid("community name must contain letters or digits")
	}

	community := &model.Community{
		Name:             name,
		Slug:             slug,
		Description:      pkg.SanitizeText(in.Description),
		Category:         category,
		Tags:             in.Tags,
		IsPrivate:        in.IsPrivate,
		RequiresApproval: in.RequiresApproval,
		CreatorID:        creatorID,
	}

	var t touched
	err := sqlstore.Tx(ctx, s.db, func(tx *gorm.DB) error {
		repo := &sqlstore.CommunityRepository{DB: tx}
		taken, err := repo.SlugTaken(slug)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateCommunity
		}
		if err = repo.Create(community); err != nil {
			// 并发创建同名社区时由唯一索引兜底
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateCommunity
			}
			return err
		}
		community.MemberCount, err = s.counters.refresh(tx, &t, sqlstore.MemberCount, community.ID)
		return err
	})
	if err != nil {
		return nil, asError(err)
	}
	s.counters.invalidate(ctx, t)
	return community, nil
}

// DeleteCommunity 级联删除社区
func (s *MembershipService) DeleteCommunity(ctx context.Context, communityID uint64) error {
	err := sqlstore.Tx(ctx, s.db, func(tx *gorm.DB) error {
		repo := &sqlstore.CommunityRepository{DB: tx}
		if _, err := repo.Lock(communityID); err != nil {
			return err
		}
		return repo.Delete(communityID)
	})
	return asError(err)
}

func (s *MembershipService) FindBySlug(ctx context.Context, slug string) (*model.Community, error) {
	c, err := (&sqlstore.CommunityRepository{DB: s.db.WithContext(ctx)}).FindBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Community")
		}
		return nil, asError(err)
	}
	return c, nil
}

// Join 加入社区。需要审核的社区进入 pending，否则直接 approved。
// 被拒绝过的用户可以重新申请，沿用原记录回到 pending/approved
func (s *MembershipService) Join(ctx context.Context, userID, communityID uint64) (*model.Membership, string, error) {
	var (
		membership *model.Membership
		msg        string
		t          touched
	)
	err := sqlstore.Tx(ctx, s.db, func(tx *gorm.DB) error {
		community, err := (&sqlstore.CommunityRepository{DB: tx}).Lock(communityID)
		if err != nil {
			return err
		}
		mRepo := &sqlstore.MembershipRepository{DB: tx}

		role, status := model.RoleMember, model.StatusApproved
		msg = "You have successfully joined this community."
		switch {
		case community.CreatorID == userID:
			// 创建者始终视为管理员
			role = model.RoleAdmin
		case community.RequiresApproval:
			status = model.StatusPending
			msg = "Join request submitted. An admin will review your request."
		}

		existing, err := mRepo.Find(communityID, userID)
		switch {
		case err == nil && existing.Status != model.StatusRejected:
			return ErrAlreadyMember
		case err == nil:
			if err = mRepo.UpdateStatus(existing.ID, status); err != nil {
				return err
			}
			existing.Status = status
			membership = existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			membership = &model.Membership{
				CommunityID: communityID,
				UserID:      userID,
				Role:        role,
				Status:      status,
			}
			created, err := mRepo.Join(membership)
			if err != nil {
				return err
			}
			if !created {
				return ErrAlreadyMember
			}
		default:
			return err
		}

		// pending 不计入成员数
		if status != model.StatusApproved {
			return nil
		}
		_, err = s.counters.refresh(tx, &t, sqlstore.MemberCount, communityID)
		return err
	})
	if err != nil {
		return nil, "", asError(err)
	}
	s.counters.invalidate(ctx, t)
	return membership, msg, nil
}

// Leave 退出社区；唯一的已批准管理员不能退出
func (s *MembershipService) Leave(ctx context.Context, userID, communityID uint64) (string, error) {
	var t touched
	err := sqlstore.Tx(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := (&sqlstore.CommunityRepository{DB: tx}).Lock(communityID); err != nil {
			return err
		}
		mRepo := &sqlstore.MembershipRepository{DB: tx}
		m, err := mRepo.Find(communityID, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotAMember
		}
		if err != nil {
			return err
		}
		if err = s.guardLastAdmin(mRepo, m); err != nil {
			return err
		}
		if err = mRepo.Delete(m.ID); err != nil {
			return err
		}
		_, err = s.counters.refresh(tx, &t, sqlstore.MemberCount, communityID)
		return err
	})
	if err != nil {
		return "", asError(err)
	}
	s.counters.invalidate(ctx, t)
	return "You have successfully left this community.", nil
}

// UpdateRole 修改成员角色。把唯一的已批准管理员降级会被拒绝，无论操作者是谁
func (s *MembershipService) UpdateRole(ctx context.Context, communityID, targetUserID uint64, newRole model.Role, actingUserID uint64) (string, error) {
	if !newRole.Valid() {
		return "", ErrInvalidRole
	}
	err := sqlstore.Tx(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := (&sqlstore.CommunityRepository{DB: tx}).Lock(communityID); err != nil {
			return err
		}
		mRepo := &sqlstore.MembershipRepository{DB: tx}
		m, err := mRepo.Find(communityID, targetUserID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotAMember
		}
		if err != nil {
			return err
		}
		if newRole != model.RoleAdmin {
			if err = s.guardLastAdmin(mRepo, m); err != nil {
				if errors.Is(err, ErrSoleAdmin) && m.UserID == actingUserID {
					return newError(KindSoleAdmin, "You cannot change your role as you are the only admin.")
				}
				return err
			}
		}
		if m.Role == newRole {
			return nil
		}
		return mRepo.UpdateRole(m.ID, newRole)
	})
	if err != nil {
		return "", asError(err)
	}
	return fmt.Sprintf("User role updated to %s.", newRole), nil
}

// HandleMembershipRequest 审批 pending 申请
func (s *MembershipService) HandleMembershipRequest(ctx context.Context, communityID, targetUserID uint64, approve bool) (*model.Membership, string, error) {
	var (
		m   *model.Membership
		msg string
		t   touched
	)
	err := sqlstore.Tx(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := (&sqlstore.CommunityRepository{DB: tx}).Lock(communityID); err != nil {
			return err
		}
		mRepo := &sqlstore.MembershipRepository{DB: tx}
		var err error
		m, err = mRepo.Find(communityID, targetUserID)
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && m.Status != model.StatusPending) {
			return ErrNoPendingRequest
		}
		if err != nil {
			return err
		}

		m.Status, msg = model.StatusRejected, "Membership request rejected."
		if approve {
			m.Status, msg = model.StatusApproved, "Membership request approved."
		}
		if err = mRepo.UpdateStatus(m.ID, m.Status); err != nil {
			return err
		}
		if approve {
			_, err = s.counters.refresh(tx, &t, sqlstore.MemberCount, communityID)
		}
		return err
	})
	if err != nil {
		return nil, "", asError(err)
	}
	s.counters.invalidate(ctx, t)
	return m, msg, nil
}

// guardLastAdmin 目标是已批准管理员且是最后一个时拒绝。调用方需持有社区锁
func (s *MembershipService) guardLastAdmin(mRepo *sqlstore.MembershipRepository, m *model.Membership) error {
	if !m.IsApprovedAdmin() {
		return nil
	}
	n, err := mRepo.CountApprovedAdmins(m.CommunityID)
	if err != nil {
		return err
	}
	if n <= 1 {
		return ErrSoleAdmin
	}
	return nil
}

// MembershipStatus 查询成员关系，不是成员时返回 nil, nil
func (s *MembershipService) MembershipStatus(ctx context.Context, userID, communityID uint64) (*model.Membership, error) {
	m, err := (&sqlstore.MembershipRepository{DB: s.db.WithContext(ctx)}).Find(communityID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, asError(err)
	}
	return m, nil
}

// ListMembers 已批准成员；role 非法时忽略过滤。私有社区只对有访问权限的用户可见
func (s *MembershipService) ListMembers(ctx context.Context, viewerID, communityID uint64, role string) ([]model.Membership, error) {
	r := model.Role(role)
	if !r.Valid() {
		r = ""
	}
	db := s.db.WithContext(ctx)
	if err := s.requireAccess(db, viewerID, communityID); err != nil {
		return nil, err
	}
	list, err := (&sqlstore.MembershipRepository{DB: db}).ListApproved(communityID, r)
	return list, asError(err)
}

// requireAccess 访问策略不通过时返回 NotCommunityMember
func (s *MembershipService) requireAccess(db *gorm.DB, viewerID, communityID uint64) error {
	community, err := (&sqlstore.CommunityRepository{DB: db}).FindByID(communityID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("Community")
	}
	if err != nil {
		return asError(err)
	}
	ok, err := s.policy.CanAccess(db, viewerID, community)
	if err != nil {
		return asError(err)
	}
	if !ok {
		return ErrNotCommunityMember
	}
	return nil
}

// ListCommunities 社区列表，page 从 1 开始
func (s *MembershipService) ListCommunities(ctx context.Context, f sqlstore.ListFilter, page, size int) ([]model.Community, error) {
	page, size = pkg.ClampPage(page, size)
	f.Offset = (page - 1) * size
	f.Limit = size
	list, err := (&sqlstore.CommunityRepository{DB: s.db.WithContext(ctx)}).List(f)
	return list, asError(err)
}

// MemberCount 成员数（读缓存）
func (s *MembershipService) MemberCount(ctx context.Context, communityID uint64) (int64, error) {
	return s.counters.Get(ctx, sqlstore.MemberCount, communityID)
}

// IsCommunityAdmin 创建者或已批准管理员
func (s *MembershipService) IsCommunityAdmin(ctx context.Context, userID uint64, c *model.Community) (bool, error) {
	return isModerator(s.db.WithContext(ctx), userID, c, model.RoleAdmin)
}

// isModerator 创建者，或已批准且角色不低于 min 的成员
func isModerator(tx *gorm.DB, userID uint64, c *model.Community, min model.Role) (bool, error) {
	if c.CreatorID == userID {
		return true, nil
	}
	m, err := (&sqlstore.MembershipRepository{DB: tx}).Find(c.ID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if m.Status != model.StatusApproved {
		return false, nil
	}
	return m.Role == model.RoleAdmin || (min == model.RoleModerator && m.Role == model.RoleModerator), nil
}
