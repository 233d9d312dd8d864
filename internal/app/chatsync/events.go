package chatsync

import "marketchat/internal/domain/chat"

type EventKind int

const (
	// EventConversations fires after the conversation list changed.
	EventConversations EventKind = iota + 1
	// EventSelection fires when the active thread changes, including deselection.
	EventSelection
	// EventThread fires when the active thread's messages changed.
	EventThread
	// EventMessageAppended fires synchronously with an optimistic append; the UI
	// clears its input and scrolls to the bottom on it.
	EventMessageAppended
	// EventSendFailed carries a user-visible send error.
	EventSendFailed
)

func (k EventKind) String() string {
	switch k {
	case EventConversations:
		return "conversations"
	case EventSelection:
		return "selection"
	case EventThread:
		return "thread"
	case EventMessageAppended:
		return "message_appended"
	case EventSendFailed:
		return "send_failed"
	default:
		return "unknown"
	}
}

// Event describes a store change. Listeners run on the goroutine that caused it
// and must not block.
type Event struct {
	Kind           EventKind
	ConversationID string
	Message        chat.Message
	Err            error
}

type Listener func(Event)
