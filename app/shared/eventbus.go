package shared

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

// EventBus is the transport boundary between ingestion and processing.
type EventBus interface {
	// Publish sends a message on the named stream.
	Publish(ctx context.Context, streamName string, msg *message.Message) error

	// Subscriber exposes the underlying watermill subscriber for router
	// handler registration.
	Subscriber() message.Subscriber

	// CreateStream ensures the JetStream stream backing a subject exists.
	CreateStream(ctx context.Context, streamName string, subjects []string) error

	// HealthCheck verifies connectivity to the broker.
	HealthCheck(ctx context.Context) error

	Close() error
}

// Stream and subject names for the activity pipeline.
const (
	ActivityStream          = "gamify_activity"
	ActivityAcceptedSubject = "gamify.activity.accepted"
)
