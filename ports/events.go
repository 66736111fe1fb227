package ports

import "context"

// EventPublisher notifies other instances and external consumers about relay
// activity. Publishing is best-effort; failures never affect the session.
type EventPublisher interface {
	PublishBroadcast(ctx context.Context, address string, recipients int) error
	PublishEviction(ctx context.Context, address string, reason string) error
}
