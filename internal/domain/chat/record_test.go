package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordAppendTracksUnreadPerParticipant(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec, err := OpenRecord("c1", "ad123", "Bicicletă", "buyer", "seller", now)
	require.NoError(t, err)

	_, err = rec.Append("m1", "buyer", "  Bună!  ", now.Add(time.Minute))
	require.NoError(t, err)
	_, err = rec.Append("m2", "buyer", "Mai e disponibil?", now.Add(2*time.Minute))
	require.NoError(t, err)

	require.Equal(t, 2, rec.Unread["seller"])
	require.Zero(t, rec.Unread["buyer"])
	require.Equal(t, "Bună!", rec.Messages[0].Content)

	view := rec.View("seller", OtherUser{ID: "buyer", Name: "Ana"})
	require.Equal(t, 2, view.UnreadCount)
	require.Equal(t, 2, view.MessageCount)
	require.Equal(t, "Mai e disponibil?", view.LastMessage)
	require.Equal(t, now.Add(2*time.Minute), view.LastMessageAt)

	require.NoError(t, rec.MarkRead("seller"))
	require.Zero(t, rec.View("seller", OtherUser{}).UnreadCount)

	names := make([]string, 0)
	for _, ev := range rec.PendingEvents() {
		names = append(names, ev.EventName())
	}
	require.Equal(t, []string{"chat.conversation_opened", "chat.message_sent", "chat.message_sent"}, names)
	sent := rec.PendingEvents()[1].(MessageSent)
	require.Equal(t, "seller", sent.ReceiverID)
}

func TestRecordRejectsInvalidInput(t *testing.T) {
	now := time.Now()
	_, err := OpenRecord("c1", "ad", "", "u1", "u1", now)
	require.ErrorIs(t, err, ErrSelfConversation)

	rec, err := OpenRecord("c1", "ad", "", "u1", "u2", now)
	require.NoError(t, err)
	_, err = rec.Append("m1", "intruder", "hi", now)
	require.ErrorIs(t, err, ErrNotParticipant)
	_, err = rec.Append("m1", "u1", "   ", now)
	require.ErrorIs(t, err, ErrEmptyContent)
	require.ErrorIs(t, rec.MarkRead("intruder"), ErrNotParticipant)
	require.Equal(t, "u2", rec.Counterpart("u1"))
}
