package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig contains logger configuration options.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string

	// Format is the output format (json, console).
	Format string

	// Output is the output destination (stdout, stderr).
	Output string

	// TimeFormat is the time format for timestamps.
	TimeFormat string
}

// DefaultLoggingConfig returns a LoggingConfig with sensible defaults for a
// CLI run: console output on stderr so pipeline output stays on stdout.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.RFC3339,
	}
}

// NewLogger creates a new zerolog logger based on configuration.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	default:
		output = os.Stderr
	}

	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	if strings.ToLower(cfg.Format) == "console" || strings.ToLower(cfg.Format) == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05",
		}
	}

	level := parseLevel(cfg.Level)
	return zerolog.New(output).With().Timestamp().Logger().Level(level)
}

// parseLevel converts a string log level to zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithRunContext adds the per-run fields to a logger.
func WithRunContext(logger zerolog.Logger, runID, tier string) zerolog.Logger {
	return logger.With().
		Str("run_id", runID).
		Str("tier", tier).
		Logger()
}

// WithRecordContext adds record identity fields to a logger.
func WithRecordContext(logger zerolog.Logger, pmid, dedupeKey string) zerolog.Logger {
	return logger.With().
		Str("pmid", pmid).
		Str("dedupe_key", dedupeKey).
		Logger()
}

// WithSourceContext adds upstream source fields to a logger.
func WithSourceContext(logger zerolog.Logger, source, endpoint string) zerolog.Logger {
	return logger.With().
		Str("source", source).
		Str("endpoint", endpoint).
		Logger()
}
