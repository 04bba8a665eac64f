// Package ports defines the interfaces the rate limit service depends on,
// so stores and the audit recorder can be swapped without touching service
// logic.
package ports

import (
	"context"
	"time"

	"caseguard/internal/audit"
)

// CounterStore is an atomic fixed-window counter. Incr creates the window
// on first use, lazily resets it once expired (a call at exactly the reset
// instant belongs to the new window), and returns the post-increment count
// together with the window's reset time. The increment-and-read must be a
// single atomic step: two concurrent calls must never observe the same
// count.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
}

// AuditRecorder is the slice of the audit recorder the limiter needs to
// log violations.
type AuditRecorder interface {
	Record(ctx context.Context, eventType audit.EventType, opts ...audit.RecordOption) (audit.Event, error)
}
