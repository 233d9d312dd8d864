package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketchat/internal/app/policies"
)

type recordingSink struct {
	mu   sync.Mutex
	got  []policies.Notification
	fail error
}

func (s *recordingSink) Send(_ context.Context, n policies.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.got = append(s.got, n)
	return nil
}

type fakeClock struct{ at time.Time }

func (c *fakeClock) Now() time.Time          { return c.at }
func (c *fakeClock) Advance(d time.Duration) { c.at = c.at.Add(d) }

func TestNewMessageFormatsNotification(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, time.Second, nil)

	d.NewMessage(context.Background(), "Ana", "Salut", "")

	require.Len(t, sink.got, 1)
	n := sink.got[0]
	require.Equal(t, "Mesaj nou de la Ana", n.Title)
	require.Equal(t, "Salut", n.Body)
	require.Equal(t, TagNewMessage, n.Tag)
	require.Equal(t, DefaultTargetURL, n.URL)
	require.False(t, n.CreatedAt.IsZero())
}

func TestDispatchSuppressesRepeatsWithinWindow(t *testing.T) {
	sink := &recordingSink{}
	clock := &fakeClock{at: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	d := &Dispatcher{Sink: sink, Window: 2 * time.Second, Now: clock.Now}

	d.NewMessage(context.Background(), "Ana", "one", "/messages?conversation=c1")
	clock.Advance(time.Second)
	d.NewMessage(context.Background(), "Ana", "two", "/messages?conversation=c1")
	d.NewMessage(context.Background(), "Dan", "other thread", "/messages?conversation=c2")
	clock.Advance(1500 * time.Millisecond)
	d.NewMessage(context.Background(), "Ana", "three", "/messages?conversation=c1")

	require.Len(t, sink.got, 3)
	require.Equal(t, "one", sink.got[0].Body)
	require.Equal(t, "other thread", sink.got[1].Body)
	require.Equal(t, "three", sink.got[2].Body)
}

func TestDispatchBoundsCategoryMap(t *testing.T) {
	sink := &recordingSink{}
	clock := &fakeClock{at: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	d := &Dispatcher{Sink: sink, Window: time.Hour, MaxEntries: 2, Now: clock.Now}

	for _, cat := range []string{"a", "b", "c"} {
		clock.Advance(time.Millisecond)
		require.True(t, d.Dispatch(context.Background(), policies.Notification{Category: cat}))
	}
	require.Len(t, d.lastFired, 2)
	// "a" was evicted as the oldest entry, so it may fire again.
	require.True(t, d.Dispatch(context.Background(), policies.Notification{Category: "a"}))
	require.False(t, d.Dispatch(context.Background(), policies.Notification{Category: "c"}))
}

func TestDispatchSwallowsSinkErrors(t *testing.T) {
	sink := &recordingSink{fail: errors.New("permission not granted")}
	d := NewDispatcher(sink, time.Second, nil)
	require.False(t, d.Dispatch(context.Background(), policies.Notification{Tag: TagNewMessage}))
}

func TestDispatchFailureDoesNotSuppressNextAlert(t *testing.T) {
	sink := &recordingSink{fail: errors.New("sink down")}
	clock := &fakeClock{at: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	d := &Dispatcher{Sink: sink, Window: 2 * time.Second, Now: clock.Now}

	n := policies.Notification{Tag: TagNewMessage, Category: "new-message:/messages?conversation=c1", Title: "t"}
	require.False(t, d.Dispatch(context.Background(), n))

	sink.mu.Lock()
	sink.fail = nil
	sink.mu.Unlock()
	clock.Advance(100 * time.Millisecond)
	require.True(t, d.Dispatch(context.Background(), n))
	require.Len(t, sink.got, 1)

	clock.Advance(100 * time.Millisecond)
	require.False(t, d.Dispatch(context.Background(), n))
}

func TestPreviewTruncatesLongBodies(t *testing.T) {
	require.Equal(t, "scurt", Preview("  scurt "))
	long := strings.Repeat("ă", 120)
	got := Preview(long)
	require.True(t, strings.HasSuffix(got, "..."))
	require.Equal(t, 103, len([]rune(got)))
}
