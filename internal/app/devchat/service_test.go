package devchat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketchat/internal/domain/chat"
	"marketchat/internal/domain/shared/events"
	"marketchat/internal/infra/storage/memory"
)

type capturePublisher struct {
	names []string
	err   error
}

func (p *capturePublisher) Publish(_ context.Context, evts []events.DomainEvent) error {
	for _, ev := range evts {
		p.names = append(p.names, ev.EventName())
	}
	return p.err
}

func newService(pub Publisher) *Service {
	seq := 0
	clock := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	return &Service{
		Repo: memory.NewConversationRepository(),
		Users: StaticDirectory{
			"buyer":  {ID: "buyer", Name: "Ana"},
			"seller": {ID: "seller", Name: "Mihai"},
		},
		Publisher: pub,
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
		NewID: func() string {
			seq++
			return fmt.Sprintf("id%d", seq)
		},
	}
}

func TestSendCreatesConversationOnFirstContact(t *testing.T) {
	ctx := context.Background()
	pub := &capturePublisher{}
	svc := newService(pub)

	msg, err := svc.Send(ctx, "buyer", "ad123", "seller", "Bună! Sunt interesat de anunțul tău.")
	require.NoError(t, err)
	require.Equal(t, "buyer", msg.SenderID)
	require.NotEmpty(t, msg.ConversationID)

	again, err := svc.Send(ctx, "buyer", "ad123", "seller", "Mai e disponibil?")
	require.NoError(t, err)
	require.Equal(t, msg.ConversationID, again.ConversationID)
	require.Equal(t, []string{"chat.conversation_opened", "chat.message_sent", "chat.message_sent"}, pub.names)

	sellerView, err := svc.Conversations(ctx, "seller")
	require.NoError(t, err)
	require.Len(t, sellerView, 1)
	require.Equal(t, 2, sellerView[0].UnreadCount)
	require.Equal(t, 2, sellerView[0].MessageCount)
	require.Equal(t, "Ana", sellerView[0].OtherUser.Name)
	require.Equal(t, "Anunț ad123", sellerView[0].AdTitle)

	total, err := svc.UnreadTotal(ctx, "seller")
	require.NoError(t, err)
	require.Equal(t, 2, total)
}

func TestOpenMarksRead(t *testing.T) {
	ctx := context.Background()
	svc := newService(nil)
	msg, err := svc.Send(ctx, "buyer", "ad1", "seller", "salut")
	require.NoError(t, err)

	msgs, other, err := svc.Open(ctx, "seller", msg.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "Ana", other.Name)

	total, err := svc.UnreadTotal(ctx, "seller")
	require.NoError(t, err)
	require.Zero(t, total)

	_, _, err = svc.Open(ctx, "stranger", msg.ConversationID)
	require.ErrorIs(t, err, chat.ErrNotParticipant)
	_, _, err = svc.Open(ctx, "seller", "missing")
	require.ErrorIs(t, err, chat.ErrConversationNotFound)
}

func TestSendValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService(&capturePublisher{err: errors.New("broker down")})

	_, err := svc.Send(ctx, "buyer", "", "seller", "hi")
	require.ErrorIs(t, err, ErrInvalidRequest)
	_, err = svc.Send(ctx, "buyer", "ad1", "buyer", "hi")
	require.ErrorIs(t, err, chat.ErrSelfConversation)
	_, err = svc.Send(ctx, "buyer", "ad1", "seller", "  ")
	require.ErrorIs(t, err, chat.ErrEmptyContent)

	// publish failures do not fail the send
	_, err = svc.Send(ctx, "buyer", "ad1", "seller", "hi")
	require.NoError(t, err)
}

func TestConversationsOrderedByActivity(t *testing.T) {
	ctx := context.Background()
	svc := newService(nil)
	first, err := svc.Send(ctx, "buyer", "ad1", "seller", "one")
	require.NoError(t, err)
	second, err := svc.Send(ctx, "buyer", "ad2", "seller", "two")
	require.NoError(t, err)
	_, err = svc.Send(ctx, "seller", "ad1", "buyer", "reply")
	require.NoError(t, err)

	convs, err := svc.Conversations(ctx, "buyer")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	require.Equal(t, first.ConversationID, convs[0].ID)
	require.Equal(t, second.ConversationID, convs[1].ID)
}
