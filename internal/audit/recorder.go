package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"caseguard/internal/platform/metrics"
	"caseguard/internal/signer"
	dErrors "caseguard/pkg/domain-errors"
	"caseguard/pkg/requestcontext"
)

const defaultQueueSize = 1024

// Recorder builds, signs, and captures audit events. Events land in the
// bounded ring synchronously; durable persistence happens through a queue
// drained by a Worker so the recording call never blocks on I/O.
type Recorder struct {
	signer  *signer.Signer
	ring    *Ring
	queue   chan Event
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithCapacity overrides the ring buffer capacity.
func WithCapacity(capacity int) Option {
	return func(r *Recorder) { r.ring = NewRing(capacity) }
}

// WithQueueSize overrides the durable write queue depth.
func WithQueueSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan Event, n)
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a Recorder. The signer is required: unsigned events
// would be indistinguishable from forgeries.
func NewRecorder(sig *signer.Signer, opts ...Option) (*Recorder, error) {
	if sig == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "signer is required")
	}

	r := &Recorder{
		signer: sig,
		ring:   NewRing(DefaultCapacity),
		queue:  make(chan Event, defaultQueueSize),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RecordOption attaches optional fields to an event under construction.
type RecordOption func(*Event)

// WithActor sets the initiating principal.
func WithActor(actorID string) RecordOption {
	return func(e *Event) { e.ActorID = actorID }
}

// WithNetwork sets the client network context.
func WithNetwork(n Network) RecordOption {
	return func(e *Event) { e.Network = n }
}

// WithResource names the affected entity and verb.
func WithResource(resource, action string) RecordOption {
	return func(e *Event) {
		e.Resource = resource
		e.Action = action
	}
}

// WithDetails attaches the caller's opaque payload. The engine never
// interprets it beyond signing and the resource-id match in trail queries.
func WithDetails(details map[string]any) RecordOption {
	return func(e *Event) { e.Details = details }
}

// FromContext fills actor and network context from request-scoped values
// set by the HTTP middleware. Explicit WithActor/WithNetwork options win if
// applied after this one.
func FromContext(ctx context.Context) RecordOption {
	return func(e *Event) {
		if actor := requestcontext.ActorID(ctx); actor != "" {
			e.ActorID = actor
		}
		if ip := requestcontext.ClientIP(ctx); ip != "" {
			e.Network.IP = ip
		}
		if ua := requestcontext.UserAgent(ctx); ua != "" {
			e.Network.UserAgent = ua
		}
	}
}

// Record constructs a signed event, appends it to the ring, and enqueues a
// durable write. The returned error covers validation and signing only;
// persistence failures never surface here (fail-open for the business
// operation, fail-safe through logs and metrics).
func (r *Recorder) Record(ctx context.Context, eventType EventType, opts ...RecordOption) (Event, error) {
	if !eventType.IsValid() {
		return Event{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown event type %q", eventType)
	}

	event := Event{
		ID:        uuid.NewString(),
		Timestamp: r.now().UTC(),
		Type:      eventType,
	}
	for _, opt := range opts {
		opt(&event)
	}

	sig, err := r.signer.Sign(event.Digest())
	if err != nil {
		return Event{}, dErrors.Wrap(err, dErrors.CodeInternal, "sign audit event")
	}
	event.Signature = sig

	if evicted := r.ring.Append(event); evicted && r.metrics != nil {
		r.metrics.RingEvictions.Inc()
	}
	if r.metrics != nil {
		r.metrics.EventsRecorded.WithLabelValues(string(eventType)).Inc()
	}

	select {
	case r.queue <- event:
	default:
		if r.metrics != nil {
			r.metrics.DurableWriteDropped.Inc()
		}
		r.logger.WarnContext(ctx, "durable write queue full, event kept in ring only",
			"event_id", event.ID, "event_type", eventType)
	}

	r.logger.InfoContext(ctx, "audit event",
		"event_id", event.ID,
		"event_type", eventType,
		"actor_id", event.ActorID,
		"resource", event.Resource,
		"action", event.Action,
		"request_id", requestcontext.RequestID(ctx),
		"log_type", "audit")

	return event, nil
}

// Verify recomputes the event signature. False is a tamper signal.
func (r *Recorder) Verify(event Event) bool {
	return r.signer.Verify(event.Digest(), event.Signature)
}

// Queue exposes the durable write queue for the Worker.
func (r *Recorder) Queue() <-chan Event {
	return r.queue
}

// Snapshot returns the buffered events oldest first.
func (r *Recorder) Snapshot() []Event {
	return r.ring.Snapshot()
}

// RecentByActor returns buffered events for one actor at or after since,
// oldest first. This is the anomaly detector's read path.
func (r *Recorder) RecentByActor(actorID string, since time.Time) []Event {
	if actorID == "" {
		return nil
	}
	var out []Event
	for _, e := range r.ring.Snapshot() {
		if e.ActorID == actorID && !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out
}

// Evicted reports how many events aged out of the ring.
func (r *Recorder) Evicted() int64 {
	return r.ring.Evicted()
}
