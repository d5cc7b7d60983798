package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/turrn3r/walletlink/core"
	"github.com/turrn3r/walletlink/ports"
)

// LinkedTopic is the topic link events are published on
const LinkedTopic = "walletlink.linked"

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     LinkedTopic,
	}
}

// PublishLinked publishes a link event
func (p *WatermillPublisher) PublishLinked(ctx context.Context, event core.LinkedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// DecodeLinked unmarshals a link event from a message payload
func DecodeLinked(msg *message.Message) (core.LinkedEvent, error) {
	var event core.LinkedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return core.LinkedEvent{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return event, nil
}
