package chat

import (
	"errors"
	"strings"
	"time"
)

var ErrNoCounterpart = errors.New("chat: conversation has no other participant")

// OtherUser is the denormalized counterpart shown next to a thread.
type OtherUser struct {
	ID      string
	Name    string
	Picture string
}

// Conversation is a thread scoped to one listing and one pair of participants.
// Clients only ever read and refresh it; the backend owns its lifecycle.
type Conversation struct {
	ID            string
	AdID          string
	AdTitle       string
	Participants  []string
	OtherUser     OtherUser
	LastMessage   string
	LastMessageAt time.Time
	UnreadCount   int
	MessageCount  int
}

// Counterpart returns the participant that is not self.
func (c Conversation) Counterpart(self string) (string, error) {
	for _, p := range c.Participants {
		if p != "" && p != self {
			return p, nil
		}
	}
	if c.OtherUser.ID != "" && c.OtherUser.ID != self {
		return c.OtherUser.ID, nil
	}
	return "", ErrNoCounterpart
}

// DisplayName falls back to fallback when the backend sent no name.
func (c Conversation) DisplayName(fallback string) string {
	if name := strings.TrimSpace(c.OtherUser.Name); name != "" {
		return name
	}
	return fallback
}

// Clone copies the participant slice so callers cannot alias store state.
func (c Conversation) Clone() Conversation {
	c.Participants = append([]string(nil), c.Participants...)
	return c
}

// TotalUnread sums unread counters across conversations.
func TotalUnread(convs []Conversation) int {
	total := 0
	for _, c := range convs {
		if c.UnreadCount > 0 {
			total += c.UnreadCount
		}
	}
	return total
}
