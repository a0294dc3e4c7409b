package messaging

import (
	"context"
	"errors"
)

// ErrBrokerUnavailable is returned when publishing is short-circuited.
var ErrBrokerUnavailable = errors.New("message broker unavailable")

// Handler processes a single message payload.
type Handler func(ctx context.Context, payload []byte) error

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Channel returns the pub/sub channel an event type is published on.
func Channel(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + ":" + eventType
}
