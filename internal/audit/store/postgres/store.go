package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"caseguard/internal/audit"
	"caseguard/pkg/platform/sentinel"
)

// Store persists audit events to an append-only audit_events table. The
// table is the authoritative trail; the in-memory ring only answers
// recent-activity queries. Schema ownership lives with the surrounding
// application's storage layer.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a PostgreSQL-backed audit store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Append inserts one event. Inserts are idempotent on event id so a retried
// write cannot duplicate the trail.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	query := `
		INSERT INTO audit_events (
			id, event_type, actor_id, resource, action,
			ip, user_agent, details, signature, occurred_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.pool.Exec(ctx, query,
		event.ID,
		string(event.Type),
		nullable(event.ActorID),
		nullable(event.Resource),
		nullable(event.Action),
		nullable(event.Network.IP),
		nullable(event.Network.UserAgent),
		details,
		event.Signature,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
