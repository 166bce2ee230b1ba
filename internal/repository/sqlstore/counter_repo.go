package sqlstore

import (
	"fmt"

	"Uni_Hub/internal/model"

	"gorm.io/gorm"
)

// Counter 冗余计数字段
type Counter string

const (
	MemberCount      Counter = "community.member_count"
	PostUpvoteCount  Counter = "post.upvote_count"
	PostCommentCount Counter = "post.comment_count"
	CommentUpvotes   Counter = "comment.upvote_count"
	ParticipantCount Counter = "event.participant_count"
)

// Counters 对账时的遍历顺序
var Counters = []Counter{MemberCount, PostUpvoteCount, PostCommentCount, CommentUpvotes, ParticipantCount}

type counterDef struct {
	owner  string // 计数字段所在表
	key    string // owner 主键列
	column string // 计数列
	source string // 被计数的关系表
	fk     string // 关系表指向 owner 的外键
	filter map[string]any
}

// 这里直接用表名而不是 Model(&T{})，避免并发时共享同一个模型实例
var counterDefs = map[Counter]counterDef{
	MemberCount: {
		owner: "communities", key: "id", column: "member_count",
		source: "memberships", fk: "community_id",
		filter: map[string]any{"status": string(model.StatusApproved)},
	},
	PostUpvoteCount: {
		owner: "posts", key: "id", column: "upvote_count",
		source: "post_upvotes", fk: "post_id",
	},
	PostCommentCount: {
		owner: "posts", key: "id", column: "comment_count",
		source: "comments", fk: "post_id",
	},
	CommentUpvotes: {
		owner: "comments", key: "id", column: "upvote_count",
		source: "comment_upvotes", fk: "comment_id",
	},
	ParticipantCount: {
		owner: "post_events", key: "post_id", column: "participant_count",
		source: "event_participants", fk: "post_id",
	},
}

type CounterRepository struct {
	DB *gorm.DB
}

func counterOf(c Counter) (counterDef, error) {
	s, ok := counterDefs[c]
	if !ok {
		return s, fmt.Errorf("unknown counter %q", c)
	}
	return s, nil
}

// RealCount 关系表中的真实数量
func (r *CounterRepository) RealCount(c Counter, id uint64) (int64, error) {
	s, err := counterOf(c)
	if err != nil {
		return 0, err
	}
	q := r.DB.Table(s.source).Where(s.fk+" = ?", id)
	if len(s.filter) > 0 {
		q = q.Where(s.filter)
	}
	var n int64
	err = q.Count(&n).Error
	return n, err
}

// Cached 读取当前冗余值
func (r *CounterRepository) Cached(c Counter, id uint64) (int64, error) {
	s, err := counterOf(c)
	if err != nil {
		return 0, err
	}
	var vals []int64
	if err = r.DB.Table(s.owner).Where(s.key+" = ?", id).Pluck(s.column, &vals).Error; err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return vals[0], nil
}

// Refresh 用聚合查询重算并写回。UpdateColumn 不触发钩子，也不更新 updated_at。
// 调用方需已持有 owner 行锁（或处于触发变更的同一事务中）。
func (r *CounterRepository) Refresh(c Counter, id uint64) (int64, error) {
	s, err := counterOf(c)
	if err != nil {
		return 0, err
	}
	n, err := r.RealCount(c, id)
	if err != nil {
		return 0, err
	}
	err = r.DB.Table(s.owner).Where(s.key+" = ?", id).UpdateColumn(s.column, n).Error
	return n, err
}

// Lock 锁住计数所在行，对账时与业务写入串行
func (r *CounterRepository) Lock(c Counter, id uint64) error {
	s, err := counterOf(c)
	if err != nil {
		return err
	}
	var ids []uint64
	if err = forUpdate(r.DB.Table(s.owner)).Where(s.key+" = ?", id).Pluck(s.key, &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IDsAfter 对账批量查询：按主键递增的 keyset 分页
func (r *CounterRepository) IDsAfter(c Counter, lastID uint64, batchSize int) ([]uint64, error) {
	s, err := counterOf(c)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	err = r.DB.Table(s.owner).
		Where(s.key+" > ?", lastID).
		Order(s.key+" ASC").
		Limit(batchSize).
		Pluck(s.key, &ids).Error
	return ids, err
}
