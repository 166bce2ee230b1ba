package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"Uni_Hub/internal/model"
	"Uni_Hub/internal/pkg"
	"Uni_Hub/internal/repository/sqlstore"

	"gorm.io/gorm"
)

// PostService 帖子、评论、点赞、置顶。
// 点赞/评论数变更先锁对应的帖子或评论行，再在同一事务内刷新计数
type PostService struct {
	db       *gorm.DB
	counters *CounterService
	policy   AccessPolicy
}

func NewPostService(db *gorm.DB, counters *CounterService, policy AccessPolicy) *PostService {
	if policy == nil {
		policy = MembershipPolicy{}
	}
	return &PostService{db: db, counters: counters, policy: policy}
}

type CreatePostInput struct {
	Title            string
	Content          string
	PostType         model.PostType
	EventDate        *time.Time
	Location         string
	ParticipantLimit *int64
}

// 标题与地点的列宽
const maxTitleLen = 255

func (in *CreatePostInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return invalid("title required")
	}
	if in.PostType == "" {
		in.PostType = model.TypeDiscussion
	}
	if !in.PostType.Valid() {
		return invalid("unknown post type")
	}
	hasEventFields := in.EventDate != nil || in.Location != "" || in.ParticipantLimit != nil
	if in.PostType != model.TypeEvent {
		if hasEventFields {
			return invalid("event fields are only allowed on event posts")
		}
		return nil
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.Location)) > maxTitleLen {
		return invalid(fmt.Sprintf("location must be at most %d characters", maxTitleLen))
	}
	if in.ParticipantLimit != nil && *in.ParticipantLimit <= 0 {
		return invalid("participant limit must be positive")
	}
	return nil
}

// CreatePost 发帖：已批准成员或创建者（创建者缺失成员记录时补建为管理员）
func (s *PostService) CreatePost(ctx context.Context, userID, communityID uint64, in CreatePostInput) (*model.Post, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	post := &model.Post{
		CommunityID: communityID,
		AuthorID:    userID,
		Title:       pkg.SanitizeText(in.Title),
		Content:     pkg.SanitizeText(in.Content),
		PostType:    in.PostType,
	}
	// 转义后的标题按列宽校验
	if utf8.RuneCountInString(post.Title) > maxTitleLen {
		return nil, invalid(fmt.Sprintf("title must be at most %d characters", maxTitleLen))
	}
	var event *model.PostEvent
	if in.PostType == model.TypeEvent {
		event = &model.PostEvent{
			EventDate:        in.EventDate,
			Location:         strings.TrimSpace(in.Location),
			ParticipantLimit: in.ParticipantLimit,
		}
	}

	var t touched
	err := sqlstore.Tx(ctx, s.db, func(tx *gorm.DB) error {
		community, err := (&sqlstore.CommunityRepository{DB: tx}).FindByID(communityID)
		if err != nil {
			return err
		}
		if err = s.requireMember(tx, &t, userID, community); err != nil {
			return err
		}
		return (&sqlstore.PostRepository{DB: tx}).Create(post, event)
	})
	if err != nil {
		return nil, asError(err)
	}
	s.counters.invalidate(ctx, t)
	return post, nil
}

// requireMember 已批准成员或创建者才能发帖/评论/点赞
func (s *PostService) requireMember(tx *gorm.DB, t *touched, userID uint64, c *model.Community) error {
	if c.CreatorID == userID {
		return s.ensureCreatorMembership(tx, t, c)
	}
	ok, err := (&sqlstore.MembershipRepository{DB: tx}).IsApprovedMember(c.ID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotCommunityMember
	}
	return nil
}

// ensureCreatorMembership 创建者的成员记录不存在时补建，并刷新成员数
func (s *PostService) ensureCreatorMembership(tx *gorm.DB, t *touched, c *model.Community) error {
	mRepo := &sqlstore.MembershipRepository{DB: tx}
	if _, err := mRepo.Find(c.ID, c.CreatorID); !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if _, err := (&sqlstore.CommunityRepository{DB: tx}).Lock(c.ID); err != nil {
		return err
	}
	created, err := mRepo.Join(&model.Membership{
		CommunityID: c.ID,
		UserID:      c.CreatorID,
		Role:        model.RoleAdmin,
		Status:      model.StatusApproved,
	})
	if err != nil || !created {
		return err
	}
	_, err = s.counters.refresh(tx, t, sqlstore.MemberCount, c.ID)
	return err
}

// ListPosts 社区帖子列表，置顶优先；search 匹配标题和正文；私有社区需要访问权限
func (s *PostService) ListPosts(ctx context.Context, userID, communityID uint64, postType model.PostType, search string, page, size int) ([]model.Post, error) {
	if postType != "" && !postType.Valid() {
		return nil, invalid("unknown post type")
	}
	page, size = pkg.ClampPage(page, size)
	db := s.db.WithContext(ctx)
	community, err := (&sqlstore.CommunityRepository{DB: db}).FindByID(communityID)
	if err != nil {
		return nil, asError(err)
	}
	ok, err := s.policy.CanAccess(db, userID, community)
	if err != nil {
		return nil, asError(err)
	}
	if !ok {
		return nil, ErrNotCommunityMember
	}
	list, err := (&sqlstore.PostRepository{DB: db}).ListByCommunity(communityID, postType, search, (page-1)*size, size)
	return list, asError(err)
}

func (s *PostService) FindPost(ctx context.Context, postID uint64) (*model.Post, error) {
	post, err := (&sqlstore.PostRepository{DB: s.db.WithContext(ctx)}).FindByID(postID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Post")
	}
	return post, asError(err)
}

// TogglePostUpvote 点赞/取消点赞，返回操作后是否处于点赞状态
func (s *PostService) TogglePostUpvote(ctx context.Context, userID, postID uint64) (bool, string, error) {
	var (
		upvoted bool
		t       touched
	)
	err := sqlstore.Tx(ctx, s.db, func(tx *gorm.DB) error {
		post, err := (&sqlstore.PostRepository{DB: tx}).Lock(postID)
		if err != nil {
			return err
		}
		if err = s.requireMemberOf(tx, &t, userID, post.CommunityID); err != nil {
			return err
		}
		upvoted, err = (&sqlstore.UpvoteRepository{DB: tx}).TogglePost(postID, userID)
		if err != nil {
			return err
		}
		_, err = s.counters.refresh(tx, &t, sqlstore.PostUpvoteCount, postID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotCommunityMember) {
			return false, "", newError(KindNotCommunityMember, "You must be a member of this community to upvote posts.")
		}
		return false, "", asError(err)
	}
	s.counters.invalidate(ctx, t)
	if upvoted {
		return true, "Post upvoted.", nil
	}
	return false, "Upvote removed.", nil
}

// ToggleCommentUpvote 同 TogglePostUpvote，作用于评论
func (s *PostService) ToggleCommentUpvote(ctx context.Context, userID, commentID uint64) (bool, string, error) {
	var (
		upvoted bool
		t       touched
	)
	err := sqlstore.Tx(ctx, s.db, func(tx *gorm.DB) error {
		comment, err := (&sqlstore.CommentRepository{DB: tx}).Lock(commentID)
		if err != nil {
			return err
		}
		post, err := (&sqlstore.PostRepository{DB: tx}).FindByID(comment.PostID)
		if err != nil {
			return err
		}
		if err = s.requireMemberOf(tx, &t, userID, post.CommunityID); err != nil {
			return err
		}
		upvoted, err = (&sqlstore.UpvoteRepository{DB: tx}).ToggleComment(commentID, userID)
		if err != nil {
			return err
		}
		_, err = s.counters.refresh(tx, &t, sqlstore.CommentUpvotes, commentID)
		return err
	})
	if err != nil {
		return false, "", asError(err)
	}
	s.counters.invalidate(ctx, t)
	if upvoted {
		return true, "Comment upvoted.", nil
	}
	return false, "Upvote removed.", nil
}

func (s *PostService) requireMemberOf(tx *gorm.DB, t *touched, userID, communityID uint64) error {
	community, err := (&sqlstore.CommunityRepository{DB: tx}).FindByID(communityID)
	if err != nil {
		return err
	}
	return s.requireMember(tx, t, userID, community)
}

// TogglePin 置顶/取消置顶，仅社区管理员
func (s *PostService) TogglePin(ctx context.Context, userID, postID uint64) (bool, string, error) {
	var pinned bool
	err := sqlstore.Tx(ctx, s.db, func(tx *gorm.DB) error {
		pRepo := &sqlstore.PostRepository{DB: tx}
		post, err := pRepo.Lock(postID)
		if err != nil {
			return err
		}
		community, err := (&sqlstore.CommunityRepository{DB: tx}).FindByID(post.CommunityID)
		if err != nil {
			return err
		}
		ok, err := isModerator(tx, userID, community, model.RoleAdmin)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPermissionDenied
		}
		pinned = !post.IsPinned
		return pRepo.SetPinned(postID, pinned)
	})
	if err != nil {
		return false, "", asError(err)
	}
	if pinned {
		return true, "Post pinned.", nil
	}
	return false, "Post unpinned.", nil
}

// AddComment 评论帖子；parentID 非空时为回复，父评论必须属于同一帖子
func (s *PostService) AddComment(ctx context.Context, userID, postID uint64, parentID *uint64, content string) (*model.Comment, error) {
	content = pkg.SanitizeText(strings.TrimSpace(content))
	if content == "" {
		return nil, invalid("comment content required")
	}
	comment := &model.Comment{PostID: postID, AuthorID: userID, ParentID: parentID, Content: content}

	var t touched
	err := sqlstore.Tx(ctx, s.db, func(tx *gorm.DB) error {
		post, err := (&sqlstore.PostRepository{DB: tx}).Lock(postID)
		if err != nil {
			return err
		}
		if err = s.requireMemberOf(tx, &t, userID, post.CommunityID); err != nil {
			return err
		}
		cRepo := &sqlstore.CommentRepository{DB: tx}
		if parentID != nil {
			parent, err := cRepo.FindByID(*parentID)
			if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && parent.PostID != postID) {
				return notFound("Parent comment")
			}
			if err != nil {
				return err
			}
		}
		if err = cRepo.Create(comment); err != nil {
			return err
		}
		_, err = s.counters.refresh(tx, &t, sqlstore.PostCommentCount, postID)
		return err
	})
	if err != nil {
		return nil, asError(err)
	}
	s.counters.invalidate(ctx, t)
	return comment, nil
}

// DeleteComment 删除评论及其回复：作者本人或社区版主/管理员
func (s *PostService) DeleteComment(ctx context.Context, userID, commentID uint64) error {
	var t touched
	err := sqlstore.Tx(ctx, s.db, func(tx *gorm.DB) error {
		cRepo := &sqlstore.CommentRepository{DB: tx}
		comment, err := cRepo.FindByID(commentID)
		if err != nil {
			return err
		}
		post, err := (&sqlstore.PostRepository{DB: tx}).Lock(comment.PostID)
		if err != nil {
			return err
		}
		if comment.AuthorID != userID {
			if err = s.requireModerator(tx, userID, post.CommunityID); err != nil {
				return err
			}
		}
		if _, err = cRepo.DeleteTree(commentID); err != nil {
			return err
		}
		_, err = s.counters.refresh(tx, &t, sqlstore.PostCommentCount, post.ID)
		return err
	})
	if err != nil {
		return asError(err)
	}
	s.counters.invalidate(ctx, t)
	return nil
}

// DeletePost 删除帖子：作者本人或社区版主/管理员
func (s *PostService) DeletePost(ctx context.Context, userID, postID uint64) error {
	err := sqlstore.Tx(ctx, s.db, func(tx *gorm.DB) error {
		pRepo := &sqlstore.PostRepository{DB: tx}
		post, err := pRepo.Lock(postID)
		if err != nil {
			return err
		}
		if post.AuthorID != userID {
			if err = s.requireModerator(tx, userID, post.CommunityID); err != nil {
				return err
			}
		}
		// 删除帖子会连带删掉它的活动行，先锁住，和正在进行的报名串行
		if post.PostType == model.TypeEvent {
			if _, err = pRepo.LockEvent(postID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		return pRepo.Delete(postID)
	})
	return asError(err)
}

func (s *PostService) requireModerator(tx *gorm.DB, userID, communityID uint64) error {
	community, err := (&sqlstore.CommunityRepository{DB: tx}).FindByID(communityID)
	if err != nil {
		return err
	}
	ok, err := isModerator(tx, userID, community, model.RoleModerator)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}
