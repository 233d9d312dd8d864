package chatsync

import (
	"context"
	"errors"
	"time"

	"marketchat/internal/domain/chat"
)

// SeedMessage opens a conversation from a listing's "message seller" action.
const SeedMessage = "Bună! Sunt interesat de anunțul tău."

var (
	ErrEmptyMessage        = errors.New("chatsync: message text is empty")
	ErrNotSelected         = errors.New("chatsync: conversation is not the active thread")
	ErrUnknownConversation = errors.New("chatsync: conversation not loaded")
	ErrNoReceiver          = errors.New("chatsync: cannot resolve receiver")
	ErrNotFailed           = errors.New("chatsync: message is not in failed state")
	ErrNoConversationID    = errors.New("chatsync: backend returned no conversation id")
)

// Session identifies the authenticated user. It is passed in explicitly rather
// than read from ambient state.
type Session struct {
	UserID string
	Name   string
}

// Thread is the payload of a conversation fetch.
type Thread struct {
	Messages  []chat.Message
	OtherUser chat.OtherUser
}

// SendRequest mirrors the POST /messages body.
type SendRequest struct {
	AdID       string
	ReceiverID string
	Content    string
}

// SendResult is the created message descriptor.
type SendResult struct {
	MessageID      string
	ConversationID string
	CreatedAt      time.Time
}

// Gateway is the REST backend as seen by the store.
type Gateway interface {
	ListConversations(ctx context.Context) ([]chat.Conversation, error)
	GetThread(ctx context.Context, conversationID string) (Thread, error)
	SendMessage(ctx context.Context, req SendRequest) (SendResult, error)
}
