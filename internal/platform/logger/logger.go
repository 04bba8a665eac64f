package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. JSON output so log collectors can filter
// on the log_type=audit attribute audit lines carry.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
