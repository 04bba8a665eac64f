// Package csrf derives request-forgery tokens from session identifiers
// using the engine's keyed-MAC primitive. Tokens are deterministic per
// session; rotation is the caller's responsibility (e.g. on session
// renewal).
package csrf

import (
	"context"
	"log/slog"

	"caseguard/internal/audit"
	"caseguard/internal/signer"
	dErrors "caseguard/pkg/domain-errors"
)

// AuditRecorder is the slice of the audit recorder the service needs to
// log validation failures.
type AuditRecorder interface {
	Record(ctx context.Context, eventType audit.EventType, opts ...audit.RecordOption) (audit.Event, error)
}

type Service struct {
	signer   *signer.Signer
	recorder AuditRecorder
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

func New(sig *signer.Signer, opts ...Option) (*Service, error) {
	if sig == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "signer is required")
	}

	svc := &Service{
		signer: sig,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Generate derives the CSRF token for a session.
func (s *Service) Generate(sessionToken string) (string, error) {
	if sessionToken == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "session token cannot be empty")
	}
	return s.signer.TokenMAC(sessionToken), nil
}

// Validate checks a presented token against the session it claims to
// belong to. A mismatch records a csrf_failure event and returns false;
// it is a security decision, not an error.
func (s *Service) Validate(ctx context.Context, token, sessionToken string) bool {
	if token == "" || sessionToken == "" {
		return false
	}
	if s.signer.VerifyTokenMAC(token, sessionToken) {
		return true
	}

	s.logger.WarnContext(ctx, "csrf token mismatch", "log_type", "audit")
	if s.recorder != nil {
		_, _ = s.recorder.Record(ctx, audit.EventCSRFFailure, audit.FromContext(ctx))
	}
	return false
}
