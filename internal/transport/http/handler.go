// Package httptransport is the thin HTTP layer over the engine services.
// Handlers parse, delegate, and encode; security decisions live in the
// services so transport concerns remain isolated.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"caseguard/internal/anomaly"
	"caseguard/internal/audit"
	"caseguard/internal/csrf"
	"caseguard/internal/guard"
	rlmodels "caseguard/internal/ratelimit/models"
	"caseguard/internal/report"
	dErrors "caseguard/pkg/domain-errors"
)

type Handler struct {
	recorder *audit.Recorder
	limiter  Limiter
	guard    *guard.Guard
	detector *anomaly.Detector
	csrf     *csrf.Service
	reports  *report.Service
	logger   *slog.Logger
}

// Limiter is re-declared here so the handler can expose rate limit checks
// without binding to the service's concrete type.
type Limiter interface {
	Check(ctx context.Context, identifier string, cfg rlmodels.Config) (*rlmodels.Result, error)
}

func NewHandler(
	recorder *audit.Recorder,
	limiter Limiter,
	g *guard.Guard,
	detector *anomaly.Detector,
	csrfSvc *csrf.Service,
	reports *report.Service,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		recorder: recorder,
		limiter:  limiter,
		guard:    g,
		detector: detector,
		csrf:     csrfSvc,
		reports:  reports,
		logger:   logger,
	}
}

// -----------------------------------------------------------------------------
// Recording
// -----------------------------------------------------------------------------

type recordRequest struct {
	EventType string         `json:"event_type"`
	ActorID   string         `json:"actor_id,omitempty"`
	Resource  string         `json:"resource,omitempty"`
	Action    string         `json:"action,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed JSON body"))
		return
	}

	ctx := r.Context()
	opts := []audit.RecordOption{audit.FromContext(ctx)}
	if req.ActorID != "" {
		opts = append(opts, audit.WithActor(req.ActorID))
	}
	if req.Resource != "" || req.Action != "" {
		opts = append(opts, audit.WithResource(req.Resource, req.Action))
	}
	if req.Details != nil {
		opts = append(opts, audit.WithDetails(req.Details))
	}

	event, err := h.recorder.Record(ctx, audit.EventType(req.EventType), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"event_id": event.ID})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var event audit.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed JSON body"))
		return
	}

	valid := h.recorder.Verify(event)
	writeJSON(w, http.StatusOK, map[string]bool{
		"valid":    valid,
		"tampered": !valid,
	})
}

// -----------------------------------------------------------------------------
// Reporting
// -----------------------------------------------------------------------------

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	events, err := h.reports.AuditTrail(
		r.URL.Query().Get("resource_type"),
		r.URL.Query().Get("resource_id"),
		limit,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) handleSecurityEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	events, err := h.reports.SecurityEvents(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) handleUserActivity(w http.ResponseWriter, r *http.Request) {
	hours, err := queryInt(r, "hours")
	if err != nil {
		writeError(w, err)
		return
	}

	activity, err := h.reports.UserActivity(chi.URLParam(r, "actorID"), hours)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

func (h *Handler) handleSecurityReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reports.SecurityReport(r.Context()))
}

// -----------------------------------------------------------------------------
// Sanitizers
// -----------------------------------------------------------------------------

func (h *Handler) handleSanitizeInput(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed JSON body"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"sanitized": h.guard.SanitizeInput(r.Context(), req.Text),
	})
}

func (h *Handler) handleSanitizeHTML(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Markup string `json:"markup"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed JSON body"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"sanitized": h.guard.SanitizeHTML(r.Context(), req.Markup),
	})
}

// -----------------------------------------------------------------------------
// Anomaly detection
// -----------------------------------------------------------------------------

func (h *Handler) handleAnomalyCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActorID  string `json:"actor_id"`
		Activity string `json:"activity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed JSON body"))
		return
	}

	result, err := h.detector.Detect(r.Context(), req.ActorID, req.Activity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// -----------------------------------------------------------------------------
// CSRF
// -----------------------------------------------------------------------------

func (h *Handler) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionToken string `json:"session_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed JSON body"))
		return
	}

	token, err := h.csrf.Generate(req.SessionToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) handleCSRFValidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token        string `json:"token"`
		SessionToken string `json:"session_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed JSON body"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{
		"valid": h.csrf.Validate(r.Context(), req.Token, req.SessionToken),
	})
}

// -----------------------------------------------------------------------------
// Rate limit checks on behalf of the surrounding application
// -----------------------------------------------------------------------------

func (h *Handler) handleRateLimitCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier  string `json:"identifier"`
		WindowMs    int64  `json:"window_ms"`
		MaxRequests int    `json:"max_requests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed JSON body"))
		return
	}

	result, err := h.limiter.Check(r.Context(), req.Identifier, rlmodels.Config{
		Window:      time.Duration(req.WindowMs) * time.Millisecond,
		MaxRequests: req.MaxRequests,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be an integer", key)
	}
	return n, nil
}
