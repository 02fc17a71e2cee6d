package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/SaveSquad-App/gamify-engine/app/shared"
)

// eventBus implements shared.EventBus over NATS JetStream with watermill
// publisher/subscriber plumbing.
type eventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	js         jetstream.JetStream
	natsConn   *nc.Conn
	logger     *slog.Logger

	streamMu       sync.Mutex
	createdStreams map[string]bool
}

// NewEventBus connects to NATS and wires the watermill publisher and
// subscriber around one JetStream context.
func NewEventBus(ctx context.Context, natsURL string, logger *slog.Logger) (shared.EventBus, error) {
	natsConn, err := nc.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect to NATS: %w", err)
	}

	js, err := jetstream.New(natsConn)
	if err != nil {
		natsConn.Close()
		return nil, fmt.Errorf("eventbus: initialize JetStream: %w", err)
	}

	watermillLogger := watermill.NewSlogLogger(logger)
	marshaller := &nats.NATSMarshaler{}

	publisher, err := nats.NewPublisher(
		nats.PublisherConfig{
			URL:       natsURL,
			Marshaler: marshaller,
			NatsOptions: []nc.Option{
				nc.RetryOnFailedConnect(true),
			},
			JetStream: nats.JetStreamConfig{AutoProvision: false},
		},
		watermillLogger,
	)
	if err != nil {
		natsConn.Close()
		return nil, fmt.Errorf("eventbus: create publisher: %w", err)
	}

	subscriber, err := nats.NewSubscriber(
		nats.SubscriberConfig{
			URL:         natsURL,
			Unmarshaler: marshaller,
			NatsOptions: []nc.Option{
				nc.RetryOnFailedConnect(true),
			},
			JetStream: nats.JetStreamConfig{AutoProvision: false},
		},
		watermillLogger,
	)
	if err != nil {
		publisher.Close()
		natsConn.Close()
		return nil, fmt.Errorf("eventbus: create subscriber: %w", err)
	}

	return &eventBus{
		publisher:      publisher,
		subscriber:     subscriber,
		js:             js,
		natsConn:       natsConn,
		logger:         logger,
		createdStreams: make(map[string]bool),
	}, nil
}

func (eb *eventBus) Publish(ctx context.Context, streamName string, msg *message.Message) error {
	if msg.UUID == "" {
		msg.UUID = watermill.NewUUID()
	}
	subject := msg.Metadata.Get("subject")
	if subject == "" {
		return fmt.Errorf("eventbus: message %s has no subject metadata", msg.UUID)
	}

	ack, err := eb.js.Publish(ctx, subject, msg.Payload)
	if err != nil {
		eb.logger.ErrorContext(ctx, "failed to publish message",
			slog.String("stream_name", streamName),
			slog.String("subject", subject),
			slog.Any("error", err),
		)
		return fmt.Errorf("eventbus: publish to %s: %w", subject, err)
	}

	eb.logger.DebugContext(ctx, "message published",
		slog.String("stream_name", streamName),
		slog.String("subject", subject),
		slog.Uint64("sequence", ack.Sequence),
	)
	return nil
}

func (eb *eventBus) Subscriber() message.Subscriber {
	return eb.subscriber
}

// CreateStream provisions the JetStream stream backing the given subjects.
// Repeated calls for the same stream are cheap no-ops.
func (eb *eventBus) CreateStream(ctx context.Context, streamName string, subjects []string) error {
	eb.streamMu.Lock()
	defer eb.streamMu.Unlock()

	if eb.createdStreams[streamName] {
		return nil
	}

	_, err := eb.js.Stream(ctx, streamName)
	switch {
	case err == nil:
	case err == jetstream.ErrStreamNotFound:
		_, err = eb.js.CreateStream(ctx, jetstream.StreamConfig{
			Name:     streamName,
			Subjects: subjects,
		})
		if err != nil {
			return fmt.Errorf("eventbus: create stream %s: %w", streamName, err)
		}
		eb.logger.InfoContext(ctx, "created JetStream stream",
			slog.String("stream", streamName),
			slog.Any("subjects", subjects),
		)
	default:
		return fmt.Errorf("eventbus: check stream %s: %w", streamName, err)
	}

	eb.createdStreams[streamName] = true
	return nil
}

func (eb *eventBus) HealthCheck(ctx context.Context) error {
	if !eb.natsConn.IsConnected() {
		return fmt.Errorf("eventbus: NATS connection is down")
	}
	return nil
}

func (eb *eventBus) Close() error {
	var firstErr error
	if err := eb.publisher.Close(); err != nil {
		firstErr = err
	}
	if err := eb.subscriber.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	eb.natsConn.Close()
	return firstErr
}
