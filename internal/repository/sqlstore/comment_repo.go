package sqlstore

import (
	"Uni_Hub/internal/model"

	"gorm.io/gorm"
)

type CommentRepository struct {
	DB *gorm.DB
}

func (r *CommentRepository) Create(c *model.Comment) error {
	return r.DB.Create(c).Error
}

func (r *CommentRepository) FindByID(id uint64) (*model.Comment, error) {
	var c model.Comment
	err := r.DB.First(&c, id).Error
	return &c, err
}

// Lock 评论点赞变更前锁住评论行
func (r *CommentRepository) Lock(id uint64) (*model.Comment, error) {
	var c model.Comment
	err := forUpdate(r.DB).First(&c, id).Error
	return &c, err
}

// DeleteTree 删除评论及其全部回复，返回删除的评论数（需在事务内调用）
func (r *CommentRepository) DeleteTree(id uint64) (int64, error) {
	ids := []uint64{id}
	frontier := []uint64{id}
	for len(frontier) > 0 {
		var children []uint64
		if err := r.DB.Model(&model.Comment{}).Where("parent_id IN ?", frontier).Pluck("id", &children).Error; err != nil {
			return 0, err
		}
		ids = append(ids, children...)
		frontier = children
	}
	if err := r.DB.Where("comment_id IN ?", ids).Delete(&model.CommentUpvote{}).Error; err != nil {
		return 0, err
	}
	res := r.DB.Where("id IN ?", ids).Delete(&model.Comment{})
	return res.RowsAffected, res.Error
}
