package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"marketchat/internal/app/policies"
	"marketchat/internal/infra/broker/kafka"
)

// LogSink writes notifications to the structured log.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Send(ctx context.Context, n policies.Notification) error {
	if s.Logger == nil {
		return nil
	}
	s.Logger.InfoContext(ctx, "notification",
		"tag", n.Tag,
		"title", n.Title,
		"body", n.Body,
		"url", n.URL,
	)
	return nil
}

// Fanout delivers to every sink and joins their errors.
type Fanout []policies.Notifier

func (f Fanout) Send(ctx context.Context, n policies.Notification) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var ErrSinkFull = errors.New("notify: channel sink full")

// ChannelSink hands notifications to a UI loop. It never blocks; a full
// buffer drops the notification.
type ChannelSink struct {
	C chan policies.Notification
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 16
	}
	return &ChannelSink{C: make(chan policies.Notification, buffer)}
}

func (s *ChannelSink) Send(_ context.Context, n policies.Notification) error {
	select {
	case s.C <- n:
		return nil
	default:
		return ErrSinkFull
	}
}

const newMessageEvent = "notifications.new_message"

// KafkaSink publishes notifications as CloudEvents to
// <prefix>notifications.events.v1, keyed by recipient.
type KafkaSink struct {
	Producer    kafka.Publisher
	TopicPrefix string
	Source      string
	UserID      string
}

func (s KafkaSink) Send(ctx context.Context, n policies.Notification) error {
	if s.Producer == nil {
		return kafka.ErrPublisherNotConfigured
	}
	at := n.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	data := map[string]any{
		"user_id":  s.UserID,
		"tag":      n.Tag,
		"category": n.Category,
		"title":    n.Title,
		"body":     n.Body,
		"url":      n.URL,
	}
	source := s.Source
	if source == "" {
		source = "app://marketchat"
	}
	payload, headers, err := kafka.Envelope(newMessageEvent+".v1", source, at, data)
	if err != nil {
		return err
	}
	return s.Producer.Publish(ctx, kafka.TopicFor(s.TopicPrefix, newMessageEvent), s.UserID, payload, headers)
}

var (
	_ policies.Notifier = LogSink{}
	_ policies.Notifier = Fanout(nil)
	_ policies.Notifier = (*ChannelSink)(nil)
	_ policies.Notifier = KafkaSink{}
)
