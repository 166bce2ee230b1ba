package service

import (
	"context"
	"errors"

	"Uni_Hub/internal/repository/sqlstore"

	"gorm.io/gorm"
)

const topContributorsLimit = 10

// CommunityAnalytics 社区统计看板。总数直接聚合关系表，不读冗余计数
type CommunityAnalytics struct {
	MemberGrowth    []sqlstore.Bucket      `json:"member_growth"`
	PostActivity    []sqlstore.Bucket      `json:"post_activity"`
	TopContributors []sqlstore.Contributor `json:"top_contributors"`
	TotalMembers    int64                  `json:"total_members"`
	TotalPosts      int64                  `json:"total_posts"`
	TotalComments   int64                  `json:"total_comments"`
}

// Analytics 每次实时计算，不做缓存
func (s *MembershipService) Analytics(ctx context.Context, communityID uint64) (*CommunityAnalytics, error) {
	db := s.db.WithContext(ctx)
	if _, err := (&sqlstore.CommunityRepository{DB: db}).FindByID(communityID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Community")
		}
		return nil, asError(err)
	}

	repo := &sqlstore.AnalyticsRepository{DB: db}
	var (
		out CommunityAnalytics
		err error
	)
	if out.MemberGrowth, err = repo.MemberGrowth(communityID); err != nil {
		return nil, asError(err)
	}
	if out.PostActivity, err = repo.PostActivity(communityID); err != nil {
		return nil, asError(err)
	}
	if out.TopContributors, err = repo.TopContributors(communityID, topContributorsLimit); err != nil {
		return nil, asError(err)
	}
	if out.TotalMembers, err = (&sqlstore.CounterRepository{DB: db}).RealCount(sqlstore.MemberCount, communityID); err != nil {
		return nil, asError(err)
	}
	if out.TotalPosts, err = repo.CountPosts(communityID); err != nil {
		return nil, asError(err)
	}
	if out.TotalComments, err = repo.CountComments(communityID); err != nil {
		return nil, asError(err)
	}
	return &out, nil
}
