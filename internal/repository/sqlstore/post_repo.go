package sqlstore

import (
	"strings"

	"Uni_Hub/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostRepository struct {
	DB *gorm.DB
}

// Create 写入帖子；活动帖同时写入活动信息行（需在事务内调用）
func (r *PostRepository) Create(post *model.Post, event *model.PostEvent) error {
	if err := r.DB.Omit(clause.Associations).Create(post).Error; err != nil {
		return err
	}
	if event == nil {
		return nil
	}
	event.PostID = post.ID
	if err := r.DB.Create(event).Error; err != nil {
		return err
	}
	post.Event = event
	return nil
}

// FindByID 读取帖子，活动帖会带上活动信息
func (r *PostRepository) FindByID(id uint64) (*model.Post, error) {
	var post model.Post
	err := r.DB.Preload("Event").First(&post, id).Error
	return &post, err
}

// Lock 以 select for update 读取帖子行，点赞和评论计数变更先拿这把锁
func (r *PostRepository) Lock(id uint64) (*model.Post, error) {
	var post model.Post
	err := forUpdate(r.DB).First(&post, id).Error
	return &post, err
}

// LockEvent 锁住活动信息行。容量检查与加入在同一把锁下完成，避免超卖
func (r *PostRepository) LockEvent(postID uint64) (*model.PostEvent, error) {
	var ev model.PostEvent
	err := forUpdate(r.DB).Where("post_id = ?", postID).First(&ev).Error
	return &ev, err
}

// ListByCommunity 置顶优先，其次按时间倒序；postType、search 为空不过滤。
// search 在标题和正文里做不区分大小写的子串匹配
func (r *PostRepository) ListByCommunity(communityID uint64, postType model.PostType, search string, offset, limit int) ([]model.Post, error) {
	q := r.DB.Preload("Event").Where("community_id = ?", communityID)
	if postType != "" {
		q = q.Where("post_type = ?", postType)
	}
	if s := strings.ToLower(strings.TrimSpace(search)); s != "" {
		like := "%" + s + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(content) LIKE ?", like, like)
	}
	var list []model.Post
	err := q.Order("is_pinned DESC").
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&list).Error
	return list, err
}

// SetPinned 更新置顶状态
func (r *PostRepository) SetPinned(id uint64, pinned bool) error {
	return r.DB.Model(&model.Post{}).Where("id = ?", id).Update("is_pinned", pinned).Error
}

// Delete 硬删除帖子及其活动、报名、点赞、评论（需在事务内调用）
func (r *PostRepository) Delete(id uint64) error {
	var commentIDs []uint64
	if err := r.DB.Model(&model.Comment{}).Where("post_id = ?", id).Pluck("id", &commentIDs).Error; err != nil {
		return err
	}
	if len(commentIDs) > 0 {
		if err := r.DB.Where("comment_id IN ?", commentIDs).Delete(&model.CommentUpvote{}).Error; err != nil {
			return err
		}
	}
	steps := []struct {
		where string
		model any
	}{
		{"post_id = ?", &model.Comment{}},
		{"post_id = ?", &model.PostUpvote{}},
		{"post_id = ?", &model.EventParticipant{}},
		{"post_id = ?", &model.PostEvent{}},
		{"id = ?", &model.Post{}},
	}
	for _, s := range steps {
		if err := r.DB.Where(s.where, id).Delete(s.model).Error; err != nil {
			return err
		}
	}
	return nil
}
