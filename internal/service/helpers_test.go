package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"Uni_Hub/internal/model"
	"Uni_Hub/internal/notify"
	"Uni_Hub/internal/repository/redis"
	"Uni_Hub/internal/repository/sqlstore"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	ctx         context.Context
	db          *gorm.DB
	mr          *miniredis.Miniredis
	rdb         *goredis.Client
	counters    *CounterService
	memberships *MembershipService
	posts       *PostService
	events      *EventService
	reconciler  *Reconciler
	notifier    *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlstore.Open(sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "unihub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlstore.Close(db) })

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	counters := NewCounterService(db, redis.NewCountCache(rdb))
	rec := &recordingNotifier{}
	return &testEnv{
		ctx:         context.Background(),
		db:          db,
		mr:          mr,
		rdb:         rdb,
		counters:    counters,
		memberships: NewMembershipService(db, counters, nil),
		posts:       NewPostService(db, counters, nil),
		events:      NewEventService(db, counters, rec, nil, "http://front.test/"),
		reconciler:  NewReconciler(counters, &redis.DistLock{RDB: rdb}, 2, 0),
		notifier:    rec,
	}
}

func (e *testEnv) user(t *testing.T, name string) uint64 {
	t.Helper()
	u := &model.User{Username: name, FirstName: name, Email: name + "@uni.test"}
	require.NoError(t, (&sqlstore.UserRepository{DB: e.db}).Create(u))
	return u.ID
}

func (e *testEnv) community(t *testing.T, creator uint64, name string, private, approval bool) *model.Community {
	t.Helper()
	c, err := e.memberships.CreateCommunity(e.ctx, creator, CreateCommunityInput{
		Name:             name,
		Category:         "social",
		IsPrivate:        private,
		RequiresApproval: approval,
	})
	require.NoError(t, err)
	return c
}

func (e *testEnv) eventPost(t *testing.T, author, communityID uint64, limit *int64) *model.Post {
	t.Helper()
	post, err := e.posts.CreatePost(e.ctx, author, communityID, CreatePostInput{
		Title:            "Board game night",
		PostType:         model.TypeEvent,
		Location:         "Library",
		ParticipantLimit: limit,
	})
	require.NoError(t, err)
	return post
}

// storedCount 直接读库里的冗余字段
func (e *testEnv) storedCount(t *testing.T, c sqlstore.Counter, id uint64) int64 {
	t.Helper()
	n, err := (&sqlstore.CounterRepository{DB: e.db}).Cached(c, id)
	require.NoError(t, err)
	return n
}

func (e *testEnv) realCount(t *testing.T, c sqlstore.Counter, id uint64) int64 {
	t.Helper()
	n, err := (&sqlstore.CounterRepository{DB: e.db}).RealCount(c, id)
	require.NoError(t, err)
	return n
}

func (e *testEnv) membership(t *testing.T, communityID, userID uint64) *model.Membership {
	t.Helper()
	m, err := e.memberships.MembershipStatus(e.ctx, userID, communityID)
	require.NoError(t, err)
	return m
}

func int64p(v int64) *int64 { return &v }

// recordingNotifier 记录收到的通知，fail=true 时模拟投递端 panic
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	fail bool
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		panic(fmt.Sprintf("notifier down: user=%d", n.UserID))
	}
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.sent...)
}
