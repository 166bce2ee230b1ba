package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncDispatcher_DeliversToAllSenders(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	record := func(name string) Sender {
		return SenderFunc(func(_ context.Context, n Notification) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, name+":"+n.Context["title"])
			return nil
		})
	}
	failing := SenderFunc(func(context.Context, Notification) error { return errors.New("smtp down") })

	d := NewAsyncDispatcher(4, 1, failing, record("email"), record("kafka"))
	d.Notify(context.Background(), Notification{Template: TemplateEventJoined, UserID: 1, Context: map[string]string{"title": "Blitz"}})
	d.Close()

	assert.ElementsMatch(t, []string{"email:Blitz", "kafka:Blitz"}, got)
}

func TestAsyncDispatcher_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	var delivered atomic.Int32
	slow := SenderFunc(func(context.Context, Notification) error {
		<-release
		delivered.Add(1)
		return nil
	})

	d := NewAsyncDispatcher(1, 1, slow)
	start := time.Now()
	for i := 0; i < 10; i++ {
		d.Notify(context.Background(), Notification{UserID: uint64(i)})
	}
	assert.Less(t, time.Since(start), time.Second, "Notify must not block")

	close(release)
	d.Close()
	assert.GreaterOrEqual(t, delivered.Load(), int32(1))
	assert.LessOrEqual(t, delivered.Load(), int32(2))
}

func TestAsyncDispatcher_SenderPanicIsContained(t *testing.T) {
	var ok atomic.Int32
	boom := SenderFunc(func(context.Context, Notification) error { panic("boom") })
	fine := SenderFunc(func(context.Context, Notification) error {
		ok.Add(1)
		return nil
	})

	d := NewAsyncDispatcher(4, 1, boom, fine)
	d.Notify(context.Background(), Notification{UserID: 1})
	d.Notify(context.Background(), Notification{UserID: 2})
	d.Close()
	assert.Equal(t, int32(2), ok.Load())
}

func TestSafeSend_PanicBecomesError(t *testing.T) {
	boom := SenderFunc(func(context.Context, Notification) error { panic("smtp exploded") })
	err := SafeSend(context.Background(), boom, Notification{UserID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp exploded")

	fine := SenderFunc(func(context.Context, Notification) error { return nil })
	assert.NoError(t, SafeSend(context.Background(), fine, Notification{UserID: 1}))
}

func TestAsyncDispatcher_NotifyAfterClose(t *testing.T) {
	d := NewAsyncDispatcher(0, 0)
	d.Close()
	d.Close()
	assert.NotPanics(t, func() { d.Notify(context.Background(), Notification{UserID: 1}) })
}

func TestRender_EventJoined(t *testing.T) {
	subject, body, err := Render(TemplateEventJoined, map[string]string{
		"name":      "Bob",
		"title":     "Blitz tournament",
		"date":      "Friday, 06 November 2026 at 07:30 PM",
		"community": "Chess Club",
		"link":      "http://front.test/communities/chess-club/posts/3",
	})
	require.NoError(t, err)
	assert.Equal(t, "You're Confirmed for Blitz tournament 🎉", subject)
	assert.Contains(t, body, "Hi Bob,")
	assert.Contains(t, body, "📍 Location: Not specified")
	assert.Contains(t, body, "http://front.test/communities/chess-club/posts/3")

	_, _, err = Render("weekly_digest", nil)
	assert.Error(t, err)
}

func TestRender_CommunityInvite(t *testing.T) {
	subject, body, err := Render(TemplateCommunityInvite, map[string]string{
		"inviter":   "Alice",
		"community": "Chess Club",
		"message":   "We meet on Fridays.",
		"link":      "http://front.test/communities/chess-club",
	})
	require.NoError(t, err)
	assert.Equal(t, "Invitation to join Chess Club on Uni Hub", subject)
	assert.Contains(t, body, "Alice has invited you to join the Chess Club community on Uni Hub.")
	assert.Contains(t, body, "We meet on Fridays.\n\nYou can join")
	assert.Contains(t, body, "http://front.test/communities/chess-club")

	_, body, err = Render(TemplateCommunityInvite, map[string]string{"inviter": "Alice", "community": "Chess Club"})
	require.NoError(t, err)
	assert.Contains(t, body, "Uni Hub.\n\nYou can join")
}

func TestNop(t *testing.T) {
	var d Dispatcher = Nop{}
	assert.NotPanics(t, func() { d.Notify(context.Background(), Notification{}) })
}
