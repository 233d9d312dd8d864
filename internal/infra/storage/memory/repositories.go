package memory

import (
	"context"
	"sort"
	"sync"

	"marketchat/internal/domain/chat"
)

// ConversationRepository is an in-memory implementation for local runs and tests.
type ConversationRepository struct {
	mu    sync.RWMutex
	items map[string]*chat.Record
}

// NewConversationRepository builds an empty repository.
func NewConversationRepository() *ConversationRepository {
	return &ConversationRepository{
		items: make(map[string]*chat.Record),
	}
}

// ByID returns a copy of the record or chat.ErrConversationNotFound.
func (r *ConversationRepository) ByID(ctx context.Context, id string) (*chat.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.items[id]
	if !ok {
		return nil, chat.ErrConversationNotFound
	}
	return cloneRecord(rec), nil
}

// ByAdAndParticipants finds the thread about adID between a and b in either role.
func (r *ConversationRepository) ByAdAndParticipants(ctx context.Context, adID, a, b string) (*chat.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.items {
		if rec.AdID == adID && rec.HasParticipant(a) && rec.HasParticipant(b) {
			return cloneRecord(rec), nil
		}
	}
	return nil, chat.ErrConversationNotFound
}

// ListByParticipant returns userID's records ordered by creation.
func (r *ConversationRepository) ListByParticipant(ctx context.Context, userID string) ([]*chat.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*chat.Record
	for _, rec := range r.items {
		if rec.HasParticipant(userID) {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Save stores/updates a record entry.
func (r *ConversationRepository) Save(ctx context.Context, rec *chat.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[rec.ID] = cloneRecord(rec)
	return nil
}

// Ping satisfies readiness checks.
func (r *ConversationRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func cloneRecord(rec *chat.Record) *chat.Record {
	out := &chat.Record{
		ID:           rec.ID,
		AdID:         rec.AdID,
		AdTitle:      rec.AdTitle,
		Participants: append([]string(nil), rec.Participants...),
		Messages:     chat.CloneMessages(rec.Messages),
		Unread:       make(map[string]int, len(rec.Unread)),
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
	for k, v := range rec.Unread {
		out.Unread[k] = v
	}
	return out
}

var _ chat.Repository = (*ConversationRepository)(nil)
