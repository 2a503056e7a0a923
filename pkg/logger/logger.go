package logger

import (
	"log"
	"log/slog"
)

// New returns a stdlib logger that forwards to base at the given level,
// tagged with a component attribute. net/http wants a *log.Logger for ErrorLog.
func New(base *slog.Logger, component string, level slog.Level) *log.Logger {
	if base == nil {
		base = slog.Default()
	}
	return slog.NewLogLogger(base.With("component", component).Handler(), level)
}
