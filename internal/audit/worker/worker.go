// Package worker drains the recorder's durable write queue into a Store.
// It runs as a background goroutine so recording never blocks on I/O.
package worker

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"caseguard/internal/audit"
	"caseguard/internal/platform/metrics"
)

const defaultWriteTimeout = 2 * time.Second

// Worker consumes audit events from the recorder's queue and persists them.
// Persistence failures are logged and counted, never re-raised: the event
// already lives in the ring and the business operation has moved on.
type Worker struct {
	store   audit.Store
	inbox   <-chan audit.Event
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	tracer  trace.Tracer
}

// Option configures a Worker.
type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithWriteTimeout bounds each durable append so a slow store cannot back
// up the queue indefinitely.
func WithWriteTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// New creates a Worker over the given store and inbox.
func New(store audit.Store, inbox <-chan audit.Event, opts ...Option) *Worker {
	w := &Worker{
		store:   store,
		inbox:   inbox,
		logger:  slog.Default(),
		timeout: defaultWriteTimeout,
		tracer:  otel.Tracer("caseguard/audit/worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes events until ctx is cancelled, then drains whatever is
// already queued before returning.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.append(ctx, event)
		}
	}
}

func (w *Worker) append(ctx context.Context, event audit.Event) {
	ctx, span := w.tracer.Start(ctx, "audit.durable_append")
	defer span.End()

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	if err := w.store.Append(writeCtx, event); err != nil {
		if w.metrics != nil {
			w.metrics.DurableWriteFailures.Inc()
		}
		w.logger.Error("durable audit write failed",
			"error", err, "event_id", event.ID, "event_type", event.Type)
	}
}

func (w *Worker) drain() {
	for {
		select {
		case event := <-w.inbox:
			w.append(context.Background(), event)
		default:
			return
		}
	}
}
