package service

import (
	"testing"
	"time"

	"Uni_Hub/internal/model"
	"Uni_Hub/internal/repository/sqlstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalytics(t *testing.T) {
	e := newTestEnv(t)
	alice, bob, carol, dave := e.user(t, "alice"), e.user(t, "bob"), e.user(t, "carol"), e.user(t, "dave")
	c := e.community(t, alice, "Chess Club", false, false)
	other := e.community(t, alice, "Go Club", false, false)

	jan := time.Date(2020, 1, 15, 10, 0, 0, 0, time.UTC)
	rows := []any{
		&model.Membership{CommunityID: c.ID, UserID: bob, Role: model.RoleMember, Status: model.StatusApproved, CreatedAt: jan},
		&model.Membership{CommunityID: c.ID, UserID: carol, Role: model.RoleMember, Status: model.StatusApproved, CreatedAt: jan.AddDate(0, 0, 3)},
		&model.Membership{CommunityID: c.ID, UserID: dave, Role: model.RoleMember, Status: model.StatusPending, CreatedAt: jan},
	}
	for _, r := range rows {
		require.NoError(t, e.db.Create(r).Error)
	}

	mar1 := time.Date(2020, 3, 1, 9, 0, 0, 0, time.UTC)
	posts := []*model.Post{
		{CommunityID: c.ID, AuthorID: alice, Title: "a1", PostType: model.TypeDiscussion, CreatedAt: mar1},
		{CommunityID: c.ID, AuthorID: alice, Title: "a2", PostType: model.TypeDiscussion, CreatedAt: mar1.Add(2 * time.Hour)},
		{CommunityID: c.ID, AuthorID: bob, Title: "b1", PostType: model.TypeDiscussion, CreatedAt: mar1.AddDate(0, 0, 1)},
		{CommunityID: c.ID, AuthorID: 999, Title: "ghost", PostType: model.TypeDiscussion, CreatedAt: mar1.AddDate(0, 0, 1)},
		{CommunityID: other.ID, AuthorID: carol, Title: "elsewhere", PostType: model.TypeDiscussion, CreatedAt: mar1},
	}
	for _, p := range posts {
		require.NoError(t, e.db.Create(p).Error)
	}
	for _, cm := range []*model.Comment{
		{PostID: posts[0].ID, AuthorID: bob, Content: "nice"},
		{PostID: posts[2].ID, AuthorID: alice, Content: "agreed"},
		{PostID: posts[4].ID, AuthorID: alice, Content: "other club"},
	} {
		require.NoError(t, e.db.Create(cm).Error)
	}

	got, err := e.memberships.Analytics(e.ctx, c.ID)
	require.NoError(t, err)

	// 创建者的成员记录是刚刚建的
	thisMonth := time.Now().UTC().Format("2006-01")
	assert.Equal(t, []sqlstore.Bucket{{Period: "2020-01", Total: 2}, {Period: thisMonth, Total: 1}}, got.MemberGrowth)
	assert.Equal(t, []sqlstore.Bucket{{Period: "2020-03-01", Total: 2}, {Period: "2020-03-02", Total: 2}}, got.PostActivity)
	assert.Equal(t, []sqlstore.Contributor{
		{UserID: alice, Username: "alice", FirstName: "alice", PostCount: 2},
		{UserID: bob, Username: "bob", FirstName: "bob", PostCount: 1},
		{UserID: 999, PostCount: 1},
	}, got.TopContributors)
	assert.Equal(t, int64(3), got.TotalMembers)
	assert.Equal(t, int64(4), got.TotalPosts)
	assert.Equal(t, int64(2), got.TotalComments)

	_, err = e.memberships.Analytics(e.ctx, c.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnalytics_EmptyCommunity(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	c := e.community(t, alice, "Chess Club", false, false)

	got, err := e.memberships.Analytics(e.ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, got.MemberGrowth, 1)
	assert.Empty(t, got.PostActivity)
	assert.Empty(t, got.TopContributors)
	assert.NotNil(t, got.TopContributors)
	assert.Equal(t, int64(1), got.TotalMembers)
	assert.Zero(t, got.TotalPosts)
	assert.Zero(t, got.TotalComments)
}
