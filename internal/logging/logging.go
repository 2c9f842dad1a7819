// Package logging builds the service's structured logger.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// New returns a JSON logger at info level, or a text logger at debug level
// when env is "development".
func New(env string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("service", "offernexus")
}
