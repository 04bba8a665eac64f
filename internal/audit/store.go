package audit

import "context"

// Store is the durable sink for audit events. The ring buffer answers
// recent-activity queries; a Store implementation (postgres, kafka) is the
// authoritative trail. Appends are best-effort from the recorder's point of
// view: failures are logged, never propagated to the business operation.
type Store interface {
	Append(ctx context.Context, event Event) error
}
