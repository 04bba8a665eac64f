// Package service implements fixed-window rate limiting over an atomic
// counter store. Fixed windows allow bursting across a window boundary (up
// to 2x the limit); that is an accepted tradeoff for abuse deterrence, and
// the CounterStore contract lets a sliding-window store replace the fixed
// one without changing this service.
package service

import (
	"context"
	"errors"
	"log/slog"

	"caseguard/internal/audit"
	"caseguard/internal/platform/metrics"
	"caseguard/internal/ratelimit/models"
	"caseguard/internal/ratelimit/observability"
	"caseguard/internal/ratelimit/ports"
	dErrors "caseguard/pkg/domain-errors"
)

type Service struct {
	counters ports.CounterStore
	recorder ports.AuditRecorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditRecorder(recorder ports.AuditRecorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(counters ports.CounterStore, opts ...Option) (*Service, error) {
	if counters == nil {
		return nil, errors.New("counter store is required")
	}

	svc := &Service{
		counters: counters,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Check counts one request for the identifier against cfg. The first
// MaxRequests calls in a window are allowed with a decreasing Remaining;
// every further call in the same window is rejected and recorded as a
// rate_limit_exceeded audit event.
func (s *Service) Check(ctx context.Context, identifier string, cfg models.Config) (*models.Result, error) {
	if identifier == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "identifier cannot be empty")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	count, resetAt, err := s.counters.Incr(ctx, identifier, cfg.Window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limit store unavailable")
	}

	if count <= cfg.MaxRequests {
		return &models.Result{
			Allowed:   true,
			Remaining: cfg.MaxRequests - count,
			ResetAt:   resetAt,
		}, nil
	}

	if s.metrics != nil {
		s.metrics.RateLimitRejections.Inc()
	}
	observability.LogAudit(ctx, s.logger, s.recorder, audit.EventRateLimitExceeded,
		"identifier", identifier,
		"limit", cfg.MaxRequests,
		"window_ms", cfg.Window.Milliseconds(),
	)

	return &models.Result{
		Allowed:   false,
		Remaining: 0,
		ResetAt:   resetAt,
	}, nil
}
