package config

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger creates the application logger: text to stderr and JSON to the
// configured log file. With quiet set, stderr is skipped so a full-screen
// terminal UI is not overdrawn.
// Returns the logger and a cleanup function to close the file.
func SetupLogger(cfg Config, quiet bool) (*slog.Logger, func() error) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handlers []slog.Handler
	if !quiet {
		handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
	}

	noop := func() error { return nil }

	if cfg.LogFile == "" {
		return newLogger(handlers), noop
	}

	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger := newLogger(handlers)
		logger.Error("failed to open log file, file logging disabled", "error", err, "file", cfg.LogFile)
		return logger, noop
	}

	handlers = append(handlers, slog.NewJSONHandler(file, opts))
	return newLogger(handlers), file.Close
}

func newLogger(handlers []slog.Handler) *slog.Logger {
	if len(handlers) == 0 {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

// SetupLoggerWithWriters creates a logger with custom writers (for testing).
func SetupLoggerWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
}
