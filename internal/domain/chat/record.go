package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"marketchat/internal/domain/shared/events"
)

var (
	ErrConversationNotFound = errors.New("chat: conversation not found")
	ErrNotParticipant       = errors.New("chat: user is not a participant")
	ErrSelfConversation     = errors.New("chat: cannot open a conversation with yourself")
	ErrEmptyContent         = errors.New("chat: message content is empty")
)

// Record is the backend-side conversation aggregate: the full message log plus
// one unread counter per participant.
type Record struct {
	events.EventRecorder

	ID           string
	AdID         string
	AdTitle      string
	Participants []string
	Messages     []Message
	Unread       map[string]int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository persists conversation records for the dev backend.
type Repository interface {
	ByID(ctx context.Context, id string) (*Record, error)
	ByAdAndParticipants(ctx context.Context, adID, a, b string) (*Record, error)
	ListByParticipant(ctx context.Context, userID string) ([]*Record, error)
	Save(ctx context.Context, rec *Record) error
}

// OpenRecord starts a conversation between buyer and seller about adID.
func OpenRecord(id, adID, adTitle, buyer, seller string, now time.Time) (*Record, error) {
	if buyer == seller {
		return nil, ErrSelfConversation
	}
	rec := &Record{
		ID:           id,
		AdID:         adID,
		AdTitle:      adTitle,
		Participants: []string{buyer, seller},
		Unread:       map[string]int{buyer: 0, seller: 0},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	rec.Record(ConversationOpened{ConversationID: id, AdID: adID, Participants: rec.Participants, At: now})
	return rec, nil
}

func (r *Record) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Append adds a message from sender and bumps every other participant's unread counter.
func (r *Record) Append(id, sender, content string, now time.Time) (Message, error) {
	if !r.HasParticipant(sender) {
		return Message{}, ErrNotParticipant
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, ErrEmptyContent
	}
	msg := Message{
		ID:             id,
		ConversationID: r.ID,
		SenderID:       sender,
		Content:        content,
		CreatedAt:      now,
		Delivery:       DeliveryConfirmed,
	}
	r.Messages = append(r.Messages, msg)
	if r.Unread == nil {
		r.Unread = make(map[string]int)
	}
	receiver := ""
	for _, p := range r.Participants {
		if p != sender {
			r.Unread[p]++
			receiver = p
		}
	}
	r.UpdatedAt = now
	r.Record(MessageSent{
		ConversationID: r.ID,
		MessageID:      id,
		AdID:           r.AdID,
		SenderID:       sender,
		ReceiverID:     receiver,
		Content:        content,
		At:             now,
	})
	return msg, nil
}

// MarkRead clears userID's unread counter.
func (r *Record) MarkRead(userID string) error {
	if !r.HasParticipant(userID) {
		return ErrNotParticipant
	}
	if r.Unread == nil {
		r.Unread = make(map[string]int)
	}
	r.Unread[userID] = 0
	return nil
}

// View renders the record as seen by self. other describes the counterpart.
func (r *Record) View(self string, other OtherUser) Conversation {
	conv := Conversation{
		ID:           r.ID,
		AdID:         r.AdID,
		AdTitle:      r.AdTitle,
		Participants: append([]string(nil), r.Participants...),
		OtherUser:    other,
		UnreadCount:  r.Unread[self],
		MessageCount: len(r.Messages),
	}
	if n := len(r.Messages); n > 0 {
		last := r.Messages[n-1]
		conv.LastMessage = last.Content
		conv.LastMessageAt = last.CreatedAt
	} else {
		conv.LastMessageAt = r.UpdatedAt
	}
	return conv
}

// Counterpart returns the participant that is not self.
func (r *Record) Counterpart(self string) string {
	for _, p := range r.Participants {
		if p != self {
			return p
		}
	}
	return ""
}
