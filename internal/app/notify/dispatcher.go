package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"marketchat/internal/app/policies"
)

const (
	TagNewMessage     = "new-message"
	DefaultTargetURL  = "/messages"
	DefaultWindow     = 2 * time.Second
	DefaultMaxEntries = 256
	previewLimit      = 100
)

// Dispatcher formats new-message alerts and drops repeats of the same category
// fired within Window.
type Dispatcher struct {
	Sink       policies.Notifier
	Window     time.Duration
	MaxEntries int
	Logger     *slog.Logger
	Now        func() time.Time

	mu        sync.Mutex
	lastFired map[string]time.Time
}

// NewDispatcher builds a dispatcher with default dedup settings.
func NewDispatcher(sink policies.Notifier, window time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{Sink: sink, Window: window, Logger: logger}
}

// NewMessage surfaces a message alert. Delivery errors are logged.
func (d *Dispatcher) NewMessage(ctx context.Context, senderName, preview, targetURL string) {
	if targetURL == "" {
		targetURL = DefaultTargetURL
	}
	n := policies.Notification{
		Tag:      TagNewMessage,
		Category: TagNewMessage + ":" + targetURL,
		Title:    "Mesaj nou de la " + senderName,
		Body:     Preview(preview),
		URL:      targetURL,
	}
	d.Dispatch(ctx, n)
}

// Dispatch sends n unless its category fired within the window.
func (d *Dispatcher) Dispatch(ctx context.Context, n policies.Notification) bool {
	if d == nil || d.Sink == nil {
		return false
	}
	now := d.now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	category := n.Category
	if category == "" {
		category = n.Tag
	}
	if !d.admit(category, now) {
		if d.Logger != nil {
			d.Logger.Debug("notification suppressed", "category", category)
		}
		return false
	}
	if err := d.Sink.Send(ctx, n); err != nil {
		d.release(category, now)
		if d.Logger != nil {
			d.Logger.Warn("notification delivery failed", "category", category, "error", err)
		}
		return false
	}
	return true
}

func (d *Dispatcher) admit(category string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastFired == nil {
		d.lastFired = make(map[string]time.Time)
	}
	if last, ok := d.lastFired[category]; ok && now.Sub(last) < d.window() {
		return false
	}
	d.lastFired[category] = now
	if len(d.lastFired) > d.maxEntries() {
		d.evictOldest()
	}
	return true
}

// release forgets a slot taken by a delivery that failed, so the next alert
// of the category is not suppressed.
func (d *Dispatcher) release(category string, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lastFired[category]; ok && last.Equal(at) {
		delete(d.lastFired, category)
	}
}

// evictOldest keeps the map bounded; callers hold mu.
func (d *Dispatcher) evictOldest() {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, at := range d.lastFired {
		if !found || at.Before(oldestAt) {
			oldestKey, oldestAt, found = k, at, true
		}
	}
	if found {
		delete(d.lastFired, oldestKey)
	}
}

func (d *Dispatcher) window() time.Duration {
	if d.Window < 0 {
		return 0
	}
	if d.Window == 0 {
		return DefaultWindow
	}
	return d.Window
}

func (d *Dispatcher) maxEntries() int {
	if d.MaxEntries <= 0 {
		return DefaultMaxEntries
	}
	return d.MaxEntries
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Preview trims a message body to the notification preview length.
func Preview(body string) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= previewLimit {
		return body
	}
	return string(runes[:previewLimit]) + "..."
}
