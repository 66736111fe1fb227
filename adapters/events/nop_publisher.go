package events

import (
	"context"

	"github.com/stevehere/ethdrop-relay/ports"
)

// NopPublisher drops all events. Used when no broker is configured.
type NopPublisher struct{}

// NewNopPublisher creates a publisher that discards everything
func NewNopPublisher() ports.EventPublisher {
	return NopPublisher{}
}

func (NopPublisher) PublishBroadcast(ctx context.Context, address string, recipients int) error {
	return nil
}

func (NopPublisher) PublishEviction(ctx context.Context, address string, reason string) error {
	return nil
}
