package observability

import (
	"log/slog"
	"os"
)

// NewLogger returns the process-wide JSON logger. Components derive their
// own with logger.With("component", ...).
func NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
