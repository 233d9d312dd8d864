package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Publisher is satisfied by *Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Envelope wraps data in a CloudEvents 1.0 structured JSON event.
func Envelope(eventType, source string, at time.Time, data any) ([]byte, map[string]string, error) {
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              uuid.NewString(),
		"type":            eventType,
		"source":          source,
		"time":            at.UTC(),
		"datacontenttype": "application/json",
		"data":            data,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
		"ce_type":      eventType,
	}
	return payload, headers, nil
}

// TopicFor maps an event name such as "chat.message_sent" onto the
// "<prefix>chat.events.v1" topic of its family.
func TopicFor(prefix, name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return prefix + base + ".events.v1"
}
