// Package audit is the tamper-evident event log at the center of the
// security engine. Every sensitive operation in the surrounding application
// records an event here; rate limiting, input sanitization, and anomaly
// detection record their violations as sub-events.
package audit

import (
	"time"

	"caseguard/internal/signer"
)

// EventType classifies audit events. The set is closed: recording an
// unknown type is a validation error, not a silent pass-through.
type EventType string

const (
	// Authentication events
	EventLoginSuccess EventType = "login_success"
	EventLoginFailure EventType = "login_failure"
	EventLogout       EventType = "logout"

	// Record lifecycle events
	EventRecordCreated EventType = "record_created"
	EventRecordUpdated EventType = "record_updated"
	EventRecordDeleted EventType = "record_deleted"

	// Bulk and export events
	EventBulkOperation EventType = "bulk_operation"
	EventDataExport    EventType = "data_export"

	// Security violation events
	EventPermissionDenied    EventType = "permission_denied"
	EventRateLimitExceeded   EventType = "rate_limit_exceeded"
	EventSQLInjectionAttempt EventType = "sql_injection_attempt"
	EventXSSAttempt          EventType = "xss_attempt"
	EventCSRFFailure         EventType = "csrf_failure"
	EventSuspiciousActivity  EventType = "suspicious_activity"
)

var validTypes = map[EventType]bool{
	EventLoginSuccess:        true,
	EventLoginFailure:        true,
	EventLogout:              true,
	EventRecordCreated:       true,
	EventRecordUpdated:       true,
	EventRecordDeleted:       true,
	EventBulkOperation:       true,
	EventDataExport:          true,
	EventPermissionDenied:    true,
	EventRateLimitExceeded:   true,
	EventSQLInjectionAttempt: true,
	EventXSSAttempt:          true,
	EventCSRFFailure:         true,
	EventSuspiciousActivity:  true,
}

// IsValid checks if the event type is one of the supported enum values.
func (t EventType) IsValid() bool {
	return validTypes[t]
}

var securityTypes = map[EventType]bool{
	EventPermissionDenied:    true,
	EventRateLimitExceeded:   true,
	EventSQLInjectionAttempt: true,
	EventXSSAttempt:          true,
	EventCSRFFailure:         true,
	EventSuspiciousActivity:  true,
}

// IsSecurity reports whether the event type belongs to the security
// violation subset surfaced by the security-event feed.
func (t EventType) IsSecurity() bool {
	return securityTypes[t]
}

// SecurityTypes returns the security violation subset.
func SecurityTypes() []EventType {
	out := make([]EventType, 0, len(securityTypes))
	for t := range securityTypes {
		out = append(out, t)
	}
	return out
}

// Network captures the client-side context of the request that caused the
// event. Both fields are optional.
type Network struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Event is an immutable record of a notable action. Fields are set at
// creation and never mutated; the only lifecycle transition is eviction
// from the bounded buffer.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"event_type"`
	ActorID   string         `json:"actor_id,omitempty"`
	Network   Network        `json:"network,omitempty"`
	Resource  string         `json:"resource,omitempty"`
	Action    string         `json:"action,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Signature []byte         `json:"signature"`
}

// Digest returns the canonical signed fields of the event.
func (e Event) Digest() signer.Digest {
	return signer.Digest{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		EventType: string(e.Type),
		ActorID:   e.ActorID,
		Details:   e.Details,
	}
}
