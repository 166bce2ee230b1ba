package sqlstore

import (
	"fmt"

	"Uni_Hub/internal/model"

	"gorm.io/gorm"
)

// Bucket 按月/按天聚合的一行，Period 形如 "2026-10" 或 "2026-10-18"
type Bucket struct {
	Period string `json:"period"`
	Total  int64  `json:"count"`
}

type Contributor struct {
	UserID    uint64 `json:"user_id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	PostCount int64  `json:"post_count"`
}

// AnalyticsRepository 社区统计，全部是只读聚合查询
type AnalyticsRepository struct {
	DB *gorm.DB
}

type granularity int

const (
	byMonth granularity = iota
	byDay
)

// periodExpr 各方言把时间列格式化为分组键
func (r *AnalyticsRepository) periodExpr(column string, g granularity) (string, error) {
	switch r.DB.Dialector.Name() {
	case DriverMySQL:
		if g == byMonth {
			return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m')", column), nil
		}
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d')", column), nil
	case DriverPostgres:
		if g == byMonth {
			return fmt.Sprintf("to_char(%s, 'YYYY-MM')", column), nil
		}
		return fmt.Sprintf("to_char(%s, 'YYYY-MM-DD')", column), nil
	case DriverSQLite:
		if g == byMonth {
			return fmt.Sprintf("strftime('%%Y-%%m', %s)", column), nil
		}
		return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", column), nil
	default:
		return "", fmt.Errorf("analytics: unsupported dialect %q", r.DB.Dialector.Name())
	}
}

func (r *AnalyticsRepository) buckets(m any, where string, communityID uint64, g granularity, extra ...any) ([]Bucket, error) {
	expr, err := r.periodExpr("created_at", g)
	if err != nil {
		return nil, err
	}
	out := []Bucket{}
	err = r.DB.Model(m).
		Select(expr+" AS period, COUNT(*) AS total").
		Where(where, append([]any{communityID}, extra...)...).
		Group("period").
		Order("period").
		Scan(&out).Error
	return out, err
}

// MemberGrowth 每月新增的已批准成员
func (r *AnalyticsRepository) MemberGrowth(communityID uint64) ([]Bucket, error) {
	return r.buckets(&model.Membership{}, "community_id = ? AND status = ?", communityID, byMonth, model.StatusApproved)
}

// PostActivity 每天的发帖数
func (r *AnalyticsRepository) PostActivity(communityID uint64) ([]Bucket, error) {
	return r.buckets(&model.Post{}, "community_id = ?", communityID, byDay)
}

// TopContributors 发帖最多的用户，同数按用户 id 升序
func (r *AnalyticsRepository) TopContributors(communityID uint64, limit int) ([]Contributor, error) {
	out := []Contributor{}
	err := r.DB.Table("posts").
		Select("posts.author_id AS user_id, COALESCE(users.username, '') AS username, "+
			"COALESCE(users.first_name, '') AS first_name, COUNT(posts.id) AS post_count").
		Joins("LEFT JOIN users ON users.id = posts.author_id").
		Where("posts.community_id = ?", communityID).
		Group("posts.author_id, users.username, users.first_name").
		Order("post_count DESC").
		Order("posts.author_id ASC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

func (r *AnalyticsRepository) CountPosts(communityID uint64) (int64, error) {
	var n int64
	err := r.DB.Model(&model.Post{}).Where("community_id = ?", communityID).Count(&n).Error
	return n, err
}

func (r *AnalyticsRepository) CountComments(communityID uint64) (int64, error) {
	var n int64
	err := r.DB.Model(&model.Comment{}).
		Joins("JOIN posts ON posts.id = comments.post_id").
		Where("posts.community_id = ?", communityID).
		Count(&n).Error
	return n, err
}
