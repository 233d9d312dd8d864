package devchat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketchat/internal/domain/chat"
	"marketchat/internal/domain/shared/events"
)

var ErrInvalidRequest = errors.New("devchat: invalid request")

// Directory resolves user ids to display data.
type Directory interface {
	Lookup(userID string) chat.OtherUser
}

// Publisher forwards recorded domain events, e.g. to Kafka.
type Publisher interface {
	Publish(ctx context.Context, evts []events.DomainEvent) error
}

// Service implements the conversation endpoints the client polls.
type Service struct {
	Repo      chat.Repository
	Users     Directory
	Publisher Publisher
	Logger    *slog.Logger
	Now       func() time.Time
	NewID     func() string

	// serializes read-modify-write cycles on records
	mu sync.Mutex
}

// Conversations lists userID's threads, most recent activity first.
func (s *Service) Conversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	records, err := s.Repo.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out := make([]chat.Conversation, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.View(userID, s.lookup(rec.Counterpart(userID))))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out, nil
}

// Open returns the thread and marks it read for userID.
func (s *Service) Open(ctx context.Context, userID, conversationID string) ([]chat.Message, chat.OtherUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.Repo.ByID(ctx, conversationID)
	if err != nil {
		return nil, chat.OtherUser{}, err
	}
	if err := rec.MarkRead(userID); err != nil {
		return nil, chat.OtherUser{}, err
	}
	if err := s.Repo.Save(ctx, rec); err != nil {
		return nil, chat.OtherUser{}, fmt.Errorf("save conversation: %w", err)
	}
	return chat.CloneMessages(rec.Messages), s.lookup(rec.Counterpart(userID)), nil
}

// Send appends a message from sender to the conversation about adID with
// receiverID, creating the conversation on first contact.
func (s *Service) Send(ctx context.Context, sender, adID, receiverID, content string) (chat.Message, error) {
	adID = strings.TrimSpace(adID)
	receiverID = strings.TrimSpace(receiverID)
	if adID == "" || receiverID == "" {
		return chat.Message{}, fmt.Errorf("%w: ad_id and receiver_id are required", ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	rec, err := s.Repo.ByAdAndParticipants(ctx, adID, sender, receiverID)
	switch {
	case errors.Is(err, chat.ErrConversationNotFound):
		rec, err = chat.OpenRecord(s.newID(), adID, adTitle(adID), sender, receiverID, now)
		if err != nil {
			return chat.Message{}, err
		}
	case err != nil:
		return chat.Message{}, fmt.Errorf("find conversation: %w", err)
	}
	msg, err := rec.Append(s.newID(), sender, content, now)
	if err != nil {
		return chat.Message{}, err
	}
	if err := s.Repo.Save(ctx, rec); err != nil {
		return chat.Message{}, fmt.Errorf("save conversation: %w", err)
	}
	s.publish(ctx, rec)
	return msg, nil
}

// UnreadTotal sums userID's unread counters.
func (s *Service) UnreadTotal(ctx context.Context, userID string) (int, error) {
	convs, err := s.Conversations(ctx, userID)
	if err != nil {
		return 0, err
	}
	return chat.TotalUnread(convs), nil
}

func (s *Service) publish(ctx context.Context, rec *chat.Record) {
	pending := rec.PendingEvents()
	rec.ClearEvents()
	if s.Publisher == nil || len(pending) == 0 {
		return
	}
	if err := s.Publisher.Publish(ctx, pending); err != nil && s.Logger != nil {
		s.Logger.Warn("publish chat events failed", "conversation_id", rec.ID, "error", err)
	}
}

func (s *Service) lookup(userID string) chat.OtherUser {
	if s.Users == nil {
		return chat.OtherUser{ID: userID, Name: userID}
	}
	u := s.Users.Lookup(userID)
	if u.ID == "" {
		u.ID = userID
	}
	return u
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// adTitle stands in for the listing catalog the dev backend does not have.
func adTitle(adID string) string {
	return "Anunț " + adID
}

// StaticDirectory is a fixed id to name table.
type StaticDirectory map[string]chat.OtherUser

func (d StaticDirectory) Lookup(userID string) chat.OtherUser {
	if u, ok := d[userID]; ok {
		return u
	}
	return chat.OtherUser{ID: userID, Name: userID}
}
