package models

import (
	"time"

	dErrors "caseguard/pkg/domain-errors"
)

// Config is the per-call limit: MaxRequests per fixed Window. Limits are
// call parameters, not global state, so different endpoints can apply
// different budgets to the same identifier.
type Config struct {
	Window      time.Duration `json:"window"`
	MaxRequests int           `json:"max_requests"`
}

// Validate enforces the config invariants.
func (c Config) Validate() error {
	if c.Window <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "window must be positive")
	}
	if c.MaxRequests <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "max_requests must be positive")
	}
	return nil
}

// Result is the outcome of a rate limit check. Rejection is a value, not an
// error: callers branch on Allowed without exception overhead on the hot
// path.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}
