package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"caseguard/pkg/platform/middleware/auth"
	"caseguard/pkg/platform/middleware/metadata"
)

// NewRouter wires all endpoints. Health and metrics stay open; everything
// touching audit data requires an operator token and passes through the
// engine's own rate limiter.
func NewRouter(h *Handler, validator auth.TokenValidator, limit func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", h.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireBearer(validator, h.logger))
		r.Use(limit)

		r.Post("/audit/events", h.handleRecord)
		r.Post("/audit/verify", h.handleVerify)
		r.Get("/audit/trail", h.handleAuditTrail)
		r.Get("/audit/security-events", h.handleSecurityEvents)
		r.Get("/audit/users/{actorID}/activity", h.handleUserActivity)
		r.Get("/audit/report", h.handleSecurityReport)

		r.Post("/sanitize/input", h.handleSanitizeInput)
		r.Post("/sanitize/html", h.handleSanitizeHTML)

		r.Post("/anomaly/check", h.handleAnomalyCheck)

		r.Post("/csrf/token", h.handleCSRFToken)
		r.Post("/csrf/validate", h.handleCSRFValidate)

		r.Post("/ratelimit/check", h.handleRateLimitCheck)
	})

	return r
}
