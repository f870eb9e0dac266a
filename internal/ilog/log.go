// Package ilog wires the ambient structured logger: log/slog configured
// from a LOG_LEVEL environment variable, with every line tagged by the
// query or save operation it belongs to.
//
// Grounded on sqldef's util/logutil.go (InitSlog), generalized from a
// bare global initializer to one that also returns a per-operation
// child logger.
package ilog

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the default slog logger from LOG_LEVEL. Supported
// values: debug, info, warn, error; anything else (including unset)
// falls back to info.
func Init() {
	level := slog.LevelInfo
	if raw, ok := os.LookupEnv("LOG_LEVEL"); ok {
		switch strings.ToLower(raw) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// For returns a logger tagged with the operation name (e.g. "query",
// "save", "group") so every line it emits can be filtered by stage.
func For(operation string) *slog.Logger {
	return slog.Default().With(slog.String("op", operation))
}
