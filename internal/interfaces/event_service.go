package interfaces

import (
	"context"
)

// EventPublisher publishes run lifecycle events to the shared stream.
type EventPublisher interface {
	// Publish appends an event's flattened fields to the stream.
	Publish(ctx context.Context, fields map[string]interface{}) error
}
