// Package eventbus provides in-process pub/sub for pipeline lifecycle events.
package eventbus

import (
	"context"

	"github.com/recflow/recflow/pkg/events"
)

// Event is anything publishable on the bus.
type Event interface {
	GetType() events.EventType
}

// EventHandler consumes one decoded event.
type EventHandler func(ctx context.Context, event any) error

// EventBus publishes and dispatches pipeline lifecycle events.
type EventBus interface {
	Publish(ctx context.Context, key string, event Event) error
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
	Close() error
	GenerateID() string
}
