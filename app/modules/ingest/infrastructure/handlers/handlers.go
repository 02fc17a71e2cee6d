package ingesthandlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	leaderboardservice "github.com/SaveSquad-App/gamify-engine/app/modules/leaderboard/application"
	scoringdomain "github.com/SaveSquad-App/gamify-engine/app/modules/scoring/domain"
	"github.com/SaveSquad-App/gamify-engine/app/shared"
)

// Applier folds accepted events into the aggregation store.
type Applier interface {
	Apply(ctx context.Context, ev scoringdomain.ActivityEvent) (*leaderboardservice.ApplyResult, error)
}

// Handlers consumes the accepted-activity stream.
type Handlers struct {
	applier Applier
	logger  *slog.Logger
}

// New creates the stream handlers.
func New(applier Applier, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{applier: applier, logger: logger}
}

// HandleActivityAccepted applies one accepted event. Poison payloads and
// invalid events are dropped with a log line; transient failures propagate
// so the router's retry middleware redelivers.
func (h *Handlers) HandleActivityAccepted(msg *message.Message) error {
	ctx := msg.Context()

	var ev scoringdomain.ActivityEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		h.logger.ErrorContext(ctx, "dropping malformed activity payload",
			slog.String("message_uuid", msg.UUID),
			slog.Any("error", err),
		)
		return nil
	}

	res, err := h.applier.Apply(ctx, ev)
	if err != nil {
		if shared.IsValidation(err) {
			h.logger.ErrorContext(ctx, "dropping invalid activity event",
				slog.String("event_id", ev.EventID),
				slog.Any("error", err),
			)
			return nil
		}
		return err
	}

	if res.Duplicate {
		h.logger.DebugContext(ctx, "skipped duplicate activity event",
			slog.String("event_id", ev.EventID),
		)
		return nil
	}
	h.logger.DebugContext(ctx, "applied activity event",
		slog.String("event_id", ev.EventID),
		slog.String("user_id", ev.UserID),
		slog.Any("new_badges", res.NewBadges),
	)
	return nil
}
