package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine. Construct once in
// main; services accept a nil *Metrics and skip instrumentation, so tests
// never fight over the default registry.
type Metrics struct {
	EventsRecorded       *prometheus.CounterVec
	DurableWriteFailures prometheus.Counter
	DurableWriteDropped  prometheus.Counter
	RingEvictions        prometheus.Counter
	RateLimitRejections  prometheus.Counter
	SanitizerHits        *prometheus.CounterVec
	AnomalyFlags         prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		EventsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caseguard_audit_events_total",
			Help: "Total number of audit events recorded, by event type",
		}, []string{"event_type"}),
		DurableWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseguard_audit_durable_write_failures_total",
			Help: "Total number of failed durable audit writes",
		}),
		DurableWriteDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseguard_audit_durable_write_dropped_total",
			Help: "Total number of audit events dropped because the durable write queue was full",
		}),
		RingEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseguard_audit_ring_evictions_total",
			Help: "Total number of events evicted from the in-memory buffer",
		}),
		RateLimitRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseguard_ratelimit_rejections_total",
			Help: "Total number of rejected rate limit checks",
		}),
		SanitizerHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caseguard_sanitizer_hits_total",
			Help: "Total number of sanitizer matches, by sanitizer kind",
		}, []string{"kind"}),
		AnomalyFlags: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseguard_anomaly_flags_total",
			Help: "Total number of actors flagged as suspicious",
		}),
	}
}
