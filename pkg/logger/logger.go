package logger

import (
	"log"
	"log/slog"
)

// New returns a *log.Logger for libraries that only speak Printf. Lines are
// forwarded to base at level, tagged with component.
func New(component string, base *slog.Logger, level slog.Level) *log.Logger {
	if base == nil {
		base = slog.Default()
	}
	return slog.NewLogLogger(base.With("component", component).Handler(), level)
}
