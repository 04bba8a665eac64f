// Package observability provides audit logging helpers for the ratelimit
// module.
package observability

import (
	"context"
	"log/slog"

	"caseguard/internal/audit"
	"caseguard/internal/ratelimit/ports"
	"caseguard/pkg/attrs"
	"caseguard/pkg/requestcontext"
)

// LogAudit logs a violation to both the structured logger and the audit
// recorder. It enriches events with the request ID and lifts the identifier
// out of attrList so the event is attributable.
func LogAudit(ctx context.Context, logger *slog.Logger, recorder ports.AuditRecorder, eventType audit.EventType, attrList ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}

	args := append(attrList, "event", string(eventType), "log_type", "audit")
	if logger != nil {
		logger.WarnContext(ctx, string(eventType), args...)
	}

	if recorder == nil {
		return
	}

	details := make(map[string]any, len(attrList)/2)
	for i := 0; i < len(attrList)-1; i += 2 {
		if key, ok := attrList[i].(string); ok {
			details[key] = attrList[i+1]
		}
	}

	opts := []audit.RecordOption{audit.FromContext(ctx), audit.WithDetails(details)}
	if identifier := attrs.ExtractString(attrList, "identifier"); identifier != "" {
		opts = append(opts, audit.WithActor(identifier))
	}

	// Recording failures are already logged by the recorder; a violation
	// log must never fail the check that produced it.
	_, _ = recorder.Record(ctx, eventType, opts...)
}
