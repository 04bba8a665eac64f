package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"caseguard/internal/ratelimit/models"
	"caseguard/pkg/requestcontext"
)

// Limiter is the slice of the rate limit service the middleware needs.
type Limiter interface {
	Check(ctx context.Context, identifier string, cfg models.Config) (*models.Result, error)
}

type Middleware struct {
	limiter  Limiter
	cfg      models.Config
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) { m.disabled = disabled }
}

func New(limiter Limiter, cfg models.Config, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit applies the configured budget per caller. Authenticated requests
// are counted by actor id, anonymous ones by client IP. Store errors fail
// open: an unavailable limiter must not take the API down with it.
func (m *Middleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		identifier := requestcontext.ActorID(ctx)
		if identifier == "" {
			identifier = requestcontext.ClientIP(ctx)
		}
		if identifier == "" {
			identifier = "unknown"
		}

		result, err := m.limiter.Check(ctx, identifier, m.cfg)
		if err != nil {
			m.logger.Error("rate limit check failed", "error", err, "identifier", identifier)
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, m.cfg, result)

		if !result.Allowed {
			writeRateLimitExceeded(w, result)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func addRateLimitHeaders(w http.ResponseWriter, cfg models.Config, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":    "rate_limit_exceeded",
		"reset_at": result.ResetAt,
	})
}
