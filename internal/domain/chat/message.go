package chat

import (
	"strings"
	"time"
)

// TempIDPrefix marks identifiers assigned locally to optimistic messages.
const TempIDPrefix = "temp_"

// DeliveryState tracks an optimistic message until the backend confirms it.
type DeliveryState string

const (
	DeliveryConfirmed DeliveryState = "confirmed"
	DeliveryPending   DeliveryState = "pending"
	DeliveryFailed    DeliveryState = "failed"
)

// Message is a single chat entry. Server messages are immutable once created.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	CreatedAt      time.Time
	Delivery       DeliveryState
}

// Temporary reports whether the message carries a locally assigned id.
func (m Message) Temporary() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}

// Settled reports whether the backend is known to hold the message.
func (m Message) Settled() bool {
	return m.Delivery == "" || m.Delivery == DeliveryConfirmed
}

// CloneMessages returns a copy safe to hand out of a locked structure.
func CloneMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in))
	copy(out, in)
	return out
}
