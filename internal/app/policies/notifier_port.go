package policies

import (
	"context"
	"time"
)

// Notification is a platform-level alert surfaced to the user.
type Notification struct {
	Tag       string
	Category  string
	Title     string
	Body      string
	URL       string
	CreatedAt time.Time
}

// Notifier delivers notifications to one sink (log, broker, terminal).
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// MessageNotifier is what the sync client consumes. Dispatch is fire-and-forget:
// failures belong to the implementation.
type MessageNotifier interface {
	NewMessage(ctx context.Context, senderName, preview, targetURL string)
}
