package auth

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignup           ActivityEventType = "auth.signup"
	ActivityEventLoginSuccess     ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure     ActivityEventType = "auth.login.failure"
	ActivityEventSocialLogin      ActivityEventType = "auth.social.login"
	ActivityEventSocialSignup     ActivityEventType = "auth.social.signup"
	ActivityEventSignupRequired   ActivityEventType = "auth.social.signup_required"
	ActivityEventProviderLinked   ActivityEventType = "auth.provider.linked"
	ActivityEventProviderUnlinked ActivityEventType = "auth.provider.unlinked"
	ActivityEventAccountDeleted   ActivityEventType = "auth.account.deleted"
)

// ActorRef identifies who triggered an event
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType   ActivityEventType
	Actor       ActorRef
	OrganizerID string
	Provider    string
	Metadata    map[string]any
	OccurredAt  time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// MultiActivitySink fans out events to every sink and returns the first error.
type MultiActivitySink []ActivitySink

// Record implements ActivitySink.
func (m MultiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// MetricsActivitySink counts activity events by type and provider.
type MetricsActivitySink struct {
	events *prometheus.CounterVec
}

// NewMetricsActivitySink registers the counters with reg.
func NewMetricsActivitySink(reg prometheus.Registerer) (*MetricsActivitySink, error) {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waitrush",
		Subsystem: "auth",
		Name:      "activity_events_total",
		Help:      "Identity events by type and provider.",
	}, []string{"event", "provider"})

	if reg != nil {
		if err := reg.Register(events); err != nil {
			return nil, err
		}
	}
	return &MetricsActivitySink{events: events}, nil
}

// Record implements ActivitySink.
func (m *MetricsActivitySink) Record(_ context.Context, event ActivityEvent) error {
	provider := event.Provider
	if provider == "" {
		provider = "none"
	}
	m.events.WithLabelValues(string(event.EventType), provider).Inc()
	return nil
}

// Collector exposes the underlying counter, mostly for tests.
func (m *MetricsActivitySink) Collector() *prometheus.CounterVec {
	return m.events
}

// LoggerActivitySink writes events to a Logger.
type LoggerActivitySink struct {
	Logger Logger
}

// Record implements ActivitySink.
func (l LoggerActivitySink) Record(_ context.Context, event ActivityEvent) error {
	args := []any{
		"event", string(event.EventType),
		"organizer_id", event.OrganizerID,
		"actor", event.Actor.Type,
	}
	if event.Provider != "" {
		args = append(args, "provider", event.Provider)
	}
	for k, v := range event.Metadata {
		args = append(args, k, v)
	}
	normalizeLogger(l.Logger).Info("activity", args...)
	return nil
}

// EmitActivity records an event and logs sink failures instead of returning them.
func EmitActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		normalizeLogger(logger).Warn("activity sink record error", "error", err, "event", string(event.EventType))
	}
}

// OrganizerActor builds an actor reference for an organizer
func OrganizerActor(id string) ActorRef {
	if id == "" {
		return ActorRef{Type: "anonymous"}
	}
	return ActorRef{ID: id, Type: "organizer"}
}
