package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance. It discards everything until Init.
	Logger = zerolog.Nop()
)

// Init initializes the global logger.
//
// Output defaults to stderr: stdout is reserved for the status line read by
// the monitoring supervisor.
func Init(level, format string, output io.Writer) {
	// Parse log level
	logLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		logLevel = zerolog.WarnLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	if output == nil {
		output = os.Stderr
	}

	// Pretty console logging for interactive runs
	if strings.EqualFold(strings.TrimSpace(format), "console") || os.Getenv("ENV") == "development" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	Logger = zerolog.New(output).
		With().
		Timestamp().
		Logger()

	Logger.Debug().
		Str("level", logLevel.String()).
		Msg("logger initialized")
}

// WithComponent returns a logger with a component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithRunID returns a logger tagged with the probe run ID
func WithRunID(runID string) zerolog.Logger {
	return Logger.With().Str("run_id", runID).Logger()
}

// WithError returns a logger with an error field
func WithError(err error) zerolog.Logger {
	return Logger.With().Err(err).Logger()
}
