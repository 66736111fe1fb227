package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/stevehere/ethdrop-relay/ports"
)

// BroadcastEvent records a completed broadcast fan-out
type BroadcastEvent struct {
	Address    string `json:"address"`
	Recipients int    `json:"recipients"`
}

// EvictionEvent records a session leaving the registry
type EvictionEvent struct {
	Address string `json:"address"`
	Reason  string `json:"reason"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher      message.Publisher
	broadcastTopic string
	evictionTopic  string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher:      publisher,
		broadcastTopic: "relay.broadcast",
		evictionTopic:  "relay.eviction",
	}
}

// PublishBroadcast publishes a broadcast event
func (p *WatermillPublisher) PublishBroadcast(ctx context.Context, address string, recipients int) error {
	return p.publish(p.broadcastTopic, BroadcastEvent{
		Address:    address,
		Recipients: recipients,
	})
}

// PublishEviction publishes an eviction event
func (p *WatermillPublisher) PublishEviction(ctx context.Context, address string, reason string) error {
	return p.publish(p.evictionTopic, EvictionEvent{
		Address: address,
		Reason:  reason,
	})
}

func (p *WatermillPublisher) publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
