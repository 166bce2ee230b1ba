package service

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"Uni_Hub/internal/model"
	"Uni_Hub/internal/repository/sqlstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreateCommunity(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")

	c := e.community(t, alice, "Chess Club", false, false)
	assert.Equal(t, "chess-club", c.Slug)
	assert.Equal(t, int64(1), c.MemberCount)

	m := e.membership(t, c.ID, alice)
	require.NotNil(t, m)
	assert.True(t, m.IsApprovedAdmin())

	_, err := e.memberships.CreateCommunity(e.ctx, alice, CreateCommunityInput{Name: "chess  club!"})
	assert.ErrorIs(t, err, ErrDuplicateCommunity)

	_, err = e.memberships.CreateCommunity(e.ctx, alice, CreateCommunityInput{Name: "   "})
	assert.Equal(t, KindInvalidInput, KindOf(err))

	_, err = e.memberships.CreateCommunity(e.ctx, alice, CreateCommunityInput{Name: "Quiz", Category: "gaming"})
	assert.Equal(t, KindInvalidInput, KindOf(err))

	// 超过列宽的名称在写库前就拒绝，而不是变成存储故障
	_, err = e.memberships.CreateCommunity(e.ctx, alice, CreateCommunityInput{Name: strings.Repeat("n", 101)})
	assert.Equal(t, KindInvalidInput, KindOf(err))
	long, err := e.memberships.CreateCommunity(e.ctx, alice, CreateCommunityInput{Name: strings.Repeat("n", 100)})
	require.NoError(t, err)
	assert.Len(t, long.Name, 100)
}

func TestJoin_OpenCommunity(t *testing.T) {
	e := newTestEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	c := e.community(t, alice, "Chess Club", false, false)

	m, msg, err := e.memberships.Join(e.ctx, bob, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, m.Status)
	assert.Equal(t, model.RoleMember, m.Role)
	assert.Equal(t, "You have successfully joined this community.", msg)
	assert.Equal(t, int64(2), e.storedCount(t, sqlstore.MemberCount, c.ID))

	n, err := e.memberships.MemberCount(e.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, _, err = e.memberships.Join(e.ctx, bob, c.ID)
	assert.ErrorIs(t, err, ErrAlreadyMember)
	assert.Equal(t, int64(2), e.storedCount(t, sqlstore.MemberCount, c.ID))
}

func TestJoin_RequiresApproval(t *testing.T) {
	e := newTestEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	c := e.community(t, alice, "Debate Society", false, true)

	m, msg, err := e.memberships.Join(e.ctx, bob, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, m.Status)
	assert.Contains(t, msg, "Join request submitted")
	assert.Equal(t, int64(1), e.storedCount(t, sqlstore.MemberCount, c.ID))

	_, _, err = e.memberships.Join(e.ctx, bob, c.ID)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	m, msg, err = e.memberships.HandleMembershipRequest(e.ctx, c.ID, bob, true)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, m.Status)
	assert.Equal(t, "Membership request approved.", msg)
	assert.Equal(t, int64(2), e.storedCount(t, sqlstore.MemberCount, c.ID))

	_, _, err = e.memberships.HandleMembershipRequest(e.ctx, c.ID, bob, true)
	assert.ErrorIs(t, err, ErrNoPendingRequest)
}

func TestJoin_CreatorBecomesAdminEvenWithApproval(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	c := e.community(t, alice, "Private Lab", true, true)

	// 创建者的成员记录被带外删除后重新加入
	require.NoError(t, e.db.Where("community_id = ?", c.ID).Delete(&model.Membership{}).Error)

	m, _, err := e.memberships.Join(e.ctx, alice, c.ID)
	require.NoError(t, err)
	assert.True(t, m.IsApprovedAdmin())
	assert.Equal(t, int64(1), e.storedCount(t, sqlstore.MemberCount, c.ID))
}

func TestRejectedUserCanRequestAgain(t *testing.T) {
	e := newTestEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	c := e.community(t, alice, "Debate Society", false, true)

	_, _, err := e.memberships.Join(e.ctx, bob, c.ID)
	require.NoError(t, err)
	m, msg, err := e.memberships.HandleMembershipRequest(e.ctx, c.ID, bob, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, m.Status)
	assert.Equal(t, "Membership request rejected.", msg)
	assert.Equal(t, int64(1), e.storedCount(t, sqlstore.MemberCount, c.ID))

	m, _, err = e.memberships.Join(e.ctx, bob, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, m.Status)
	assert.Equal(t, model.StatusPending, e.membership(t, c.ID, bob).Status)
}

func TestLeave_SoleAdmin(t *testing.T) {
	e := newTestEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	c := e.community(t, alice, "Chess Club", false, false)
	_, _, err := e.memberships.Join(e.ctx, bob, c.ID)
	require.NoError(t, err)

	_, err = e.memberships.Leave(e.ctx, alice, c.ID)
	require.ErrorIs(t, err, ErrSoleAdmin)
	assert.Equal(t, KindSoleAdmin, KindOf(err))

	m := e.membership(t, c.ID, alice)
	require.NotNil(t, m)
	assert.True(t, m.IsApprovedAdmin())
	assert.Equal(t, int64(2), e.storedCount(t, sqlstore.MemberCount, c.ID))
}

func TestLeave_Idempotence(t *testing.T) {
	e := newTestEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	c := e.community(t, alice, "Chess Club", false, false)
	_, _, err := e.memberships.Join(e.ctx, bob, c.ID)
	require.NoError(t, err)

	msg, err := e.memberships.Leave(e.ctx, bob, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "You have successfully left this community.", msg)
	assert.Equal(t, int64(1), e.storedCount(t, sqlstore.MemberCount, c.ID))

	_, err = e.memberships.Leave(e.ctx, bob, c.ID)
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestLeave_PendingDoesNotChangeCount(t *testing.T) {
	e := newTestEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	c := e.community(t, alice, "Debate Society", false, true)
	_, _, err := e.memberships.Join(e.ctx, bob, c.ID)
	require.NoError(t, err)

	_, err = e.memberships.Leave(e.ctx, bob, c.ID)
	require.NoError(t, err)
	assert.Nil(t, e.membership(t, c.ID, bob))
	assert.Equal(t, int64(1), e.storedCount(t, sqlstore.MemberCount, c.ID))
}

func TestUpdateRole(t *testing.T) {
	e := newTestEnv(t)
	alice, bob, carol := e.user(t, "alice"), e.user(t, "bob"), e.user(t, "carol")
	c := e.community(t, alice, "Chess Club", false, false)
	_, _, err := e.memberships.Join(e.ctx, bob, c.ID)
	require.NoError(t, err)

	_, err = e.memberships.UpdateRole(e.ctx, c.ID, bob, model.Role("owner"), alice)
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = e.memberships.UpdateRole(e.ctx, c.ID, carol, model.RoleModerator, alice)
	assert.ErrorIs(t, err, ErrNotAMember)

	// 唯一管理员给自己降级
	_, err = e.memberships.UpdateRole(e.ctx, c.ID, alice, model.RoleMember, alice)
	require.ErrorIs(t, err, ErrSoleAdmin)
	assert.Equal(t, "You cannot change your role as you are the only admin.", err.Error())

	// 别人把唯一管理员降级同样被拒绝
	_, err = e.memberships.UpdateRole(e.ctx, c.ID, alice, model.RoleMember, bob)
	assert.ErrorIs(t, err, ErrSoleAdmin)

	msg, err := e.memberships.UpdateRole(e.ctx, c.ID, bob, model.RoleAdmin, alice)
	require.NoError(t, err)
	assert.Equal(t, "User role updated to admin.", msg)

	_, err = e.memberships.UpdateRole(e.ctx, c.ID, alice, model.RoleModerator, alice)
	require.NoError(t, err)
	assert.Equal(t, model.RoleModerator, e.membership(t, c.ID, alice).Role)

	admins, err := e.memberships.ListMembers(e.ctx, 0, c.ID, "admin")
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, bob, admins[0].UserID)

	all, err := e.memberships.ListMembers(e.ctx, 0, c.ID, "nonsense")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListMembers_PrivateCommunity(t *testing.T) {
	e := newTestEnv(t)
	alice, bob, carol := e.user(t, "alice"), e.user(t, "bob"), e.user(t, "carol")
	c := e.community(t, alice, "Secret Chess", true, true)
	_, _, err := e.memberships.Join(e.ctx, bob, c.ID)
	require.NoError(t, err)

	for name, viewer := range map[string]uint64{"anonymous": 0, "outsider": carol, "pending": bob} {
		_, err = e.memberships.ListMembers(e.ctx, viewer, c.ID, "")
		assert.ErrorIs(t, err, ErrNotCommunityMember, name)
	}

	list, err := e.memberships.ListMembers(e.ctx, alice, c.ID, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, alice, list[0].UserID)

	_, _, err = e.memberships.HandleMembershipRequest(e.ctx, c.ID, bob, true)
	require.NoError(t, err)
	list, err = e.memberships.ListMembers(e.ctx, bob, c.ID, "")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = e.memberships.ListMembers(e.ctx, alice, c.ID+100, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRole_StoreFailureStaysRetryable(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	c := e.community(t, alice, "Chess Club", false, false)

	// 让管理员计数查询失败
	boom := errors.New("admin count failed")
	require.NoError(t, e.db.Callback().Query().Before("gorm:query").Register("test:fail_admin_count", func(tx *gorm.DB) {
		if _, isCount := tx.Statement.Dest.(*int64); isCount && tx.Statement.Table == "memberships" {
			_ = tx.AddError(boom)
		}
	}))

	_, err := e.memberships.UpdateRole(e.ctx, c.ID, alice, model.RoleMember, alice)
	require.Error(t, err)
	assert.Equal(t, KindStoreUnavailable, KindOf(err))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrSoleAdmin)
	assert.Equal(t, model.RoleAdmin, e.membership(t, c.ID, alice).Role)
}

// SQLite 单连接下事务是串行的；多连接池上的行锁见 TestConcurrentAdminLeaves_Pooled
func TestConcurrentAdminLeaves(t *testing.T) {
	e := newTestEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	c := e.community(t, alice, "Chess Club", false, false)
	_, _, err := e.memberships.Join(e.ctx, bob, c.ID)
	require.NoError(t, err)
	_, err = e.memberships.UpdateRole(e.ctx, c.ID, bob, model.RoleAdmin, alice)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, u := range []uint64{alice, bob} {
		wg.Add(1)
		go func(i int, u uint64) {
			defer wg.Done()
			_, errs[i] = e.memberships.Leave(e.ctx, u, c.ID)
		}(i, u)
	}
	wg.Wait()

	var ok, sole int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrSoleAdmin):
			sole++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, sole)

	n, err := (&sqlstore.MembershipRepository{DB: e.db}).CountApprovedAdmins(c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(1), e.storedCount(t, sqlstore.MemberCount, c.ID))
}

func TestListCommunities_Visibility(t *testing.T) {
	e := newTestEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	e.community(t, alice, "Open Chess", false, false)
	secret := e.community(t, alice, "Secret Chess", true, false)

	anon, err := e.memberships.ListCommunities(e.ctx, sqlstore.ListFilter{}, 1, 10)
	require.NoError(t, err)
	require.Len(t, anon, 1)
	assert.Equal(t, "Open Chess", anon[0].Name)

	owner, err := e.memberships.ListCommunities(e.ctx, sqlstore.ListFilter{ViewerID: alice, OrderBy: "name"}, 1, 10)
	require.NoError(t, err)
	assert.Len(t, owner, 2)

	_, _, err = e.memberships.Join(e.ctx, bob, secret.ID)
	require.NoError(t, err)
	mine, err := e.memberships.ListCommunities(e.ctx, sqlstore.ListFilter{ViewerID: bob, MemberOf: true}, 1, 10)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, secret.ID, mine[0].ID)

	found, err := e.memberships.ListCommunities(e.ctx, sqlstore.ListFilter{Search: "open"}, 1, 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestDeleteCommunity(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	c := e.community(t, alice, "Chess Club", false, false)
	post := e.eventPost(t, alice, c.ID, int64p(5))
	_, err := e.events.JoinEvent(e.ctx, alice, post.ID)
	require.NoError(t, err)

	require.NoError(t, e.memberships.DeleteCommunity(e.ctx, c.ID))

	_, err = e.memberships.FindBySlug(e.ctx, c.Slug)
	assert.ErrorIs(t, err, ErrNotFound)
	var left int64
	require.NoError(t, e.db.Model(&model.EventParticipant{}).Count(&left).Error)
	assert.Zero(t, left)

	err = e.memberships.DeleteCommunity(e.ctx, c.ID)
	assert.Equal(t, KindEntityNotFound, KindOf(err))
}
