// Package anomaly flags suspicious actor behavior using rule-based
// heuristics over recent audit events. No ML, no state of its own: every
// check re-reads the event buffer, and every positive check is itself
// audited.
package anomaly

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"caseguard/internal/audit"
	"caseguard/internal/platform/metrics"
	dErrors "caseguard/pkg/domain-errors"
)

// Thresholds tune the heuristics. The defaults mirror common abuse
// patterns but are not calibrated for any particular traffic profile;
// operators should adjust them per deployment.
type Thresholds struct {
	Lookback         time.Duration
	MaxEvents        int
	MaxLoginFailures int
	MaxBulkMutations int
	MaxExports       int
}

// DefaultThresholds returns the stock tuning: 50 events, 5 failed logins,
// 3 bulk mutations, or 2 exports inside a 60 second lookback.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Lookback:         60 * time.Second,
		MaxEvents:        50,
		MaxLoginFailures: 5,
		MaxBulkMutations: 3,
		MaxExports:       2,
	}
}

// Result is the outcome of a detection pass. Each triggered heuristic
// contributes one human-readable reason.
type Result struct {
	Suspicious bool     `json:"suspicious"`
	Reasons    []string `json:"reasons"`
}

// EventSource is the detector's read path into recent events.
type EventSource interface {
	RecentByActor(actorID string, since time.Time) []audit.Event
}

// AuditRecorder is the slice of the audit recorder the detector needs.
type AuditRecorder interface {
	Record(ctx context.Context, eventType audit.EventType, opts ...audit.RecordOption) (audit.Event, error)
}

type Detector struct {
	events     EventSource
	recorder   AuditRecorder
	thresholds Thresholds
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

type Option func(*Detector)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) { d.logger = logger }
}

func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(d *Detector) { d.recorder = recorder }
}

func WithThresholds(t Thresholds) Option {
	return func(d *Detector) { d.thresholds = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Detector) { d.metrics = m }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

func New(events EventSource, opts ...Option) (*Detector, error) {
	if events == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "event source is required")
	}

	d := &Detector{
		events:     events,
		thresholds: DefaultThresholds(),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Detect evaluates the heuristics for one actor. Any non-empty reason set
// marks the actor suspicious and records a suspicious_activity event, so
// the detector's own verdicts show up in the trail.
func (d *Detector) Detect(ctx context.Context, actorID, activity string) (Result, error) {
	if actorID == "" {
		return Result{}, dErrors.New(dErrors.CodeInvalidInput, "actor id cannot be empty")
	}

	since := d.now().Add(-d.thresholds.Lookback)
	recent := d.events.RecentByActor(actorID, since)

	var loginFailures, bulkMutations, exports int
	for _, e := range recent {
		switch e.Type {
		case audit.EventLoginFailure:
			loginFailures++
		case audit.EventBulkOperation, audit.EventRecordDeleted:
			bulkMutations++
		case audit.EventDataExport:
			exports++
		}
	}

	var reasons []string
	if len(recent) > d.thresholds.MaxEvents {
		reasons = append(reasons, fmt.Sprintf("high request rate: %d events in the last %s", len(recent), d.thresholds.Lookback))
	}
	if loginFailures > d.thresholds.MaxLoginFailures {
		reasons = append(reasons, fmt.Sprintf("%d failed login attempts in the last %s", loginFailures, d.thresholds.Lookback))
	}
	if bulkMutations > d.thresholds.MaxBulkMutations {
		reasons = append(reasons, fmt.Sprintf("%d bulk mutations in the last %s", bulkMutations, d.thresholds.Lookback))
	}
	if exports > d.thresholds.MaxExports {
		reasons = append(reasons, fmt.Sprintf("%d data exports in the last %s", exports, d.thresholds.Lookback))
	}

	if len(reasons) == 0 {
		return Result{Suspicious: false}, nil
	}

	if d.metrics != nil {
		d.metrics.AnomalyFlags.Inc()
	}
	d.logger.WarnContext(ctx, "suspicious activity detected",
		"actor_id", actorID, "activity", activity, "reasons", reasons, "log_type", "audit")

	if d.recorder != nil {
		_, _ = d.recorder.Record(ctx, audit.EventSuspiciousActivity,
			audit.FromContext(ctx),
			audit.WithActor(actorID),
			audit.WithDetails(map[string]any{
				"activity": activity,
				"reasons":  reasons,
			}),
		)
	}

	return Result{Suspicious: true, Reasons: reasons}, nil
}
