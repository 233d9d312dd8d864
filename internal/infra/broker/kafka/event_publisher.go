package kafka

import (
	"context"
	"errors"
	"fmt"

	"marketchat/internal/domain/chat"
	"marketchat/internal/domain/shared/events"
)

var ErrPublisherNotConfigured = errors.New("kafka: publisher missing producer")

// EventPublisher forwards domain events recorded by the dev backend.
type EventPublisher struct {
	Producer    Publisher
	TopicPrefix string
	Source      string
}

func (p *EventPublisher) Publish(ctx context.Context, evts []events.DomainEvent) error {
	if p == nil || p.Producer == nil {
		return ErrPublisherNotConfigured
	}
	var errs []error
	for _, evt := range evts {
		payload, headers, err := Envelope(evt.EventName()+".v1", p.source(), evt.OccurredAt(), eventData(evt))
		if err != nil {
			errs = append(errs, fmt.Errorf("encode %s: %w", evt.EventName(), err))
			continue
		}
		topic := TopicFor(p.TopicPrefix, evt.EventName())
		if err := p.Producer.Publish(ctx, topic, evt.AggregateID(), payload, headers); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", evt.EventName(), err))
		}
	}
	return errors.Join(errs...)
}

func (p *EventPublisher) source() string {
	if p.Source != "" {
		return p.Source
	}
	return "app://marketchat-dev"
}

func eventData(evt events.DomainEvent) map[string]any {
	switch e := evt.(type) {
	case chat.MessageSent:
		return map[string]any{
			"conversation_id": e.ConversationID,
			"message_id":      e.MessageID,
			"ad_id":           e.AdID,
			"sender_id":       e.SenderID,
			"receiver_id":     e.ReceiverID,
			"content":         e.Content,
		}
	case chat.ConversationOpened:
		return map[string]any{
			"conversation_id": e.ConversationID,
			"ad_id":           e.AdID,
			"participants":    e.Participants,
		}
	default:
		return map[string]any{"aggregate_id": evt.AggregateID()}
	}
}
