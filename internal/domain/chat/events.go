package chat

import "time"

// MessageSent is recorded by a Record when a message is appended.
type MessageSent struct {
	ConversationID string
	MessageID      string
	AdID           string
	SenderID       string
	ReceiverID     string
	Content        string
	At             time.Time
}

func (e MessageSent) EventName() string     { return "chat.message_sent" }
func (e MessageSent) AggregateID() string   { return e.ConversationID }
func (e MessageSent) OccurredAt() time.Time { return e.At }

// ConversationOpened is recorded when a listing's first message creates a thread.
type ConversationOpened struct {
	ConversationID string
	AdID           string
	Participants   []string
	At             time.Time
}

func (e ConversationOpened) EventName() string     { return "chat.conversation_opened" }
func (e ConversationOpened) AggregateID() string   { return e.ConversationID }
func (e ConversationOpened) OccurredAt() time.Time { return e.At }
