package leaderboardservice

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	badgedomain "github.com/SaveSquad-App/gamify-engine/app/modules/badges/domain"
	scoringdomain "github.com/SaveSquad-App/gamify-engine/app/modules/scoring/domain"
)

// AuditReport is the outcome of replaying one user's accepted event log
// against their stored aggregation record.
type AuditReport struct {
	UserID      string   `json:"userId"`
	Events      int      `json:"events"`
	Consistent  bool     `json:"consistent"`
	Differences []string `json:"differences,omitempty"`
	Flagged     bool     `json:"flagged"`
}

const auditTolerance = 1e-6

// VerifyUser replays the user's processed events in occurredAt order plus
// their currently held badge bonuses, and compares the result with the
// stored totals and counters. A mismatch flags the record for manual
// reconciliation; the stored values are never silently corrected.
func (s *Service) VerifyUser(ctx context.Context, userID string) (*AuditReport, error) {
	rec, err := s.repo.GetUserScore(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.ListProcessedEventsForUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	awards, err := s.badges.ListAwardsForUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	replay := scoringdomain.NewAggregate()
	for i := range events {
		ev := events[i].Event()
		d := scoringdomain.Score(ev, replay.CounterValues(), replay.LastStreakDayAt)
		replay.Apply(d, ev.OccurredAt)
	}
	// Held awards carry their bonus; revoked competitive awards were
	// deleted and their points already clawed back from the totals.
	for _, a := range awards {
		def, ok := badgedomain.ByID(a.BadgeID)
		if !ok {
			continue
		}
		replay.Apply(scoringdomain.BadgeBonus(def.Points), a.AwardedAt)
	}

	var diffs []string
	diffs = append(diffs, compareMaps("totals", rec.Totals, replay.Totals)...)
	diffs = append(diffs, compareMaps("counters", rec.Counters, replay.Counters)...)

	report := &AuditReport{
		UserID:      userID,
		Events:      len(events),
		Consistent:  len(diffs) == 0,
		Differences: diffs,
	}
	if !report.Consistent {
		s.logger.ErrorContext(ctx, "event log replay does not match stored record",
			slog.String("user_id", userID),
			slog.Any("differences", diffs),
		)
		if err := s.repo.FlagUserScore(ctx, nil, userID); err != nil {
			return nil, err
		}
		report.Flagged = true
	}
	return report, nil
}

func compareMaps(label string, stored, replayed map[string]float64) []string {
	keys := map[string]bool{}
	for k := range stored {
		keys[k] = true
	}
	for k := range replayed {
		keys[k] = true
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var diffs []string
	for _, k := range sorted {
		a, b := stored[k], replayed[k]
		if math.Abs(a-b) > auditTolerance {
			diffs = append(diffs, fmt.Sprintf("%s[%s]: stored %.4f, replayed %.4f", label, k, a, b))
		}
	}
	return diffs
}
