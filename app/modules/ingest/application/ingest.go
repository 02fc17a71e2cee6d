package ingestservice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	scoringdomain "github.com/SaveSquad-App/gamify-engine/app/modules/scoring/domain"
	"github.com/SaveSquad-App/gamify-engine/app/observability"
	"github.com/SaveSquad-App/gamify-engine/app/shared"
)

// EventLog is the slice of the aggregation store ingestion needs: the
// fast-path duplicate check before a submission hits the stream.
type EventLog interface {
	HasProcessedEvent(ctx context.Context, db bun.IDB, eventID string) (bool, error)
}

// Service validates and normalizes raw activity submissions, then hands
// accepted ones to the activity stream. It never touches user scores.
type Service struct {
	bus     shared.EventBus
	log     EventLog
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer

	now func() time.Time
}

// NewService wires the ingestion service.
func NewService(bus shared.EventBus, log EventLog, logger *slog.Logger, metrics *observability.Metrics, tracer trace.Tracer) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("ingest")
	}
	return &Service{
		bus:     bus,
		log:     log,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		now:     time.Now,
	}
}

// SubmitResult acknowledges an accepted submission.
type SubmitResult struct {
	EventID string `json:"eventId"`
	// Duplicate marks a resubmission of an already-processed event; the
	// call succeeded but changed nothing.
	Duplicate bool `json:"duplicate"`
}

// Submit validates one activity event and publishes it to the accepted
// stream. Malformed events return a ValidationError; resubmitting a
// processed event ID succeeds as a no-op.
func (s *Service) Submit(ctx context.Context, ev scoringdomain.ActivityEvent) (*SubmitResult, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.Submit", trace.WithAttributes(
		attribute.String("event.type", string(ev.Type)),
		attribute.String("user.id", ev.UserID),
	))
	defer span.End()

	normalized, err := s.normalize(ev)
	if err != nil {
		s.metrics.EventRejected()
		return nil, err
	}

	processed, err := s.log.HasProcessedEvent(ctx, nil, normalized.EventID)
	if err != nil {
		return nil, fmt.Errorf("ingestservice.Submit: %w", err)
	}
	if processed {
		s.metrics.EventDuplicate()
		return &SubmitResult{EventID: normalized.EventID, Duplicate: true}, nil
	}

	payload, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("ingestservice.Submit: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("subject", shared.ActivityAcceptedSubject)
	middleware.SetCorrelationID(normalized.EventID, msg)

	if err := s.bus.Publish(ctx, shared.ActivityStream, msg); err != nil {
		return nil, fmt.Errorf("ingestservice.Submit: %w", err)
	}

	s.metrics.EventAccepted()
	s.logger.InfoContext(ctx, "activity event accepted",
		slog.String("event_id", normalized.EventID),
		slog.String("user_id", normalized.UserID),
		slog.String("type", string(normalized.Type)),
	)
	return &SubmitResult{EventID: normalized.EventID}, nil
}

func (s *Service) normalize(ev scoringdomain.ActivityEvent) (scoringdomain.ActivityEvent, error) {
	if ev.UserID == "" {
		return ev, shared.NewValidationError("userId is required")
	}
	if !scoringdomain.KnownEventType(ev.Type) {
		return ev, shared.NewValidationError("unknown event type %q", ev.Type)
	}
	if scoringdomain.RequiresMagnitude(ev.Type) && ev.Magnitude <= 0 {
		return ev, shared.NewValidationError("event type %q requires a positive magnitude", ev.Type)
	}
	if ev.Magnitude < 0 {
		return ev, shared.NewValidationError("magnitude must not be negative")
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now().UTC()
	}
	ev.CountryCode = scoringdomain.NormalizeCountry(ev.CountryCode)
	return ev, nil
}
