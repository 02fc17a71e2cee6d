package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's Prometheus instruments. A nil *Metrics is
// valid and records nothing, which keeps unit tests quiet.
type Metrics struct {
	eventsAccepted  prometheus.Counter
	eventsRejected  prometheus.Counter
	eventsDuplicate prometheus.Counter
	eventsApplied   prometheus.Counter
	applyRetries    prometheus.Counter
	badgesAwarded   *prometheus.CounterVec
	badgesRevoked   *prometheus.CounterVec
	recomputeRuns   prometheus.Counter
	recomputeErrors prometheus.Counter
}

// NewMetrics registers the engine metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamify_events_accepted_total",
			Help: "Activity events accepted by ingestion.",
		}),
		eventsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamify_events_rejected_total",
			Help: "Activity events rejected by validation.",
		}),
		eventsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamify_events_duplicate_total",
			Help: "Idempotent replays of already-processed events.",
		}),
		eventsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamify_events_applied_total",
			Help: "Events applied to the aggregation store.",
		}),
		applyRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamify_apply_retries_total",
			Help: "Apply transaction retries due to contention.",
		}),
		badgesAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamify_badges_awarded_total",
			Help: "Badge awards created.",
		}, []string{"badge_id"}),
		badgesRevoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamify_badges_revoked_total",
			Help: "Competitive badge awards revoked by recomputation.",
		}, []string{"badge_id"}),
		recomputeRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamify_badge_recompute_runs_total",
			Help: "Competitive badge recomputation runs.",
		}),
		recomputeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamify_badge_recompute_errors_total",
			Help: "Failed competitive badge recomputation runs.",
		}),
	}
	reg.MustRegister(
		m.eventsAccepted, m.eventsRejected, m.eventsDuplicate,
		m.eventsApplied, m.applyRetries,
		m.badgesAwarded, m.badgesRevoked,
		m.recomputeRuns, m.recomputeErrors,
	)
	return m
}

func (m *Metrics) EventAccepted() {
	if m != nil {
		m.eventsAccepted.Inc()
	}
}

func (m *Metrics) EventRejected() {
	if m != nil {
		m.eventsRejected.Inc()
	}
}

func (m *Metrics) EventDuplicate() {
	if m != nil {
		m.eventsDuplicate.Inc()
	}
}

func (m *Metrics) EventApplied() {
	if m != nil {
		m.eventsApplied.Inc()
	}
}

func (m *Metrics) ApplyRetry() {
	if m != nil {
		m.applyRetries.Inc()
	}
}

func (m *Metrics) BadgeAwarded(badgeID string) {
	if m != nil {
		m.badgesAwarded.WithLabelValues(badgeID).Inc()
	}
}

func (m *Metrics) BadgeRevoked(badgeID string) {
	if m != nil {
		m.badgesRevoked.WithLabelValues(badgeID).Inc()
	}
}

func (m *Metrics) RecomputeRun() {
	if m != nil {
		m.recomputeRuns.Inc()
	}
}

func (m *Metrics) RecomputeError() {
	if m != nil {
		m.recomputeErrors.Inc()
	}
}
