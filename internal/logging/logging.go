// Package logging provides structured logging for the simulation engine
// using Go's standard library slog package. It supports multiple output
// formats, log levels, and per-context correlation fields.
//
// Usage:
//
//	logger := logging.New(logging.Config{
//	    Level:  slog.LevelInfo,
//	    Format: logging.FormatJSON,
//	})
//
//	logger.Info("simulation starting", slog.Int("startYear", 2025))
//
//	// With context
//	ctx := logging.WithRunID(ctx, "run-123")
//	logging.FromContext(ctx).Info("running scenario")
package logging

import (
	"context"
	"io"
	"os"
	"log/slog"
	"strings"
	"time"
)

// =============================================================================
// Log Format Constants
// =============================================================================

// Format specifies the log output format.
type Format string

const (
	// FormatJSON outputs structured JSON logs, ideal for batch runs and log aggregation.
	FormatJSON Format = "json"

	// FormatText outputs human-readable text logs, ideal for interactive CLI use.
	FormatText Format = "text"
)

// =============================================================================
// Context Keys
// =============================================================================

type contextKey string

const (
	// loggerKey is the context key for storing the logger.
	loggerKey contextKey = "kigalisim_logger"

	// runIDKey is the context key for correlating log lines to one simulation run.
	runIDKey contextKey = "kigalisim_run_id"

	// scenarioKey is the context key for the scenario name being simulated.
	scenarioKey contextKey = "kigalisim_scenario"
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	// Defaults to slog.LevelInfo if zero.
	Level slog.Level

	// Format specifies the output format (json or text).
	// Defaults to FormatJSON if empty.
	Format Format

	// Output is the destination for log output.
	// Defaults to os.Stdout if nil.
	Output io.Writer

	// AddSource includes source file and line number in log output.
	AddSource bool

	// TimeFormat specifies the time format for text output.
	// Defaults to time.RFC3339 if empty. Ignored for JSON format.
	TimeFormat string

	// AppName is included in every log entry.
	AppName string
}

// applyDefaults fills in default values for unset fields.
func (c *Config) applyDefaults() {
	if c.Format == "" {
		c.Format = FormatJSON
	}
	if c.Output == nil {
		c.Output = os.Stdout
	}
	if c.TimeFormat == "" {
		c.TimeFormat = time.RFC3339
	}
	if c.AppName == "" {
		c.AppName = "kigalisim"
	}
}

// =============================================================================
// Logger Construction
// =============================================================================

// New creates a new structured logger with the given configuration.
func New(cfg Config) *slog.Logger {
	cfg.applyDefaults()

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && cfg.Format == FormatText {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(a.Key, t.Format(cfg.TimeFormat))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatText:
		handler = slog.NewTextHandler(cfg.Output, opts)
	default:
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}

	if cfg.AppName != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("app", cfg.AppName)})
	}

	return slog.New(handler)
}

// NewFromEnv creates a logger configured from environment variables.
//
// Environment variables:
//   - KIGALISIM_LOG_LEVEL: debug, info, warn, error (default: info)
//   - KIGALISIM_LOG_FORMAT: json, text (default: json)
//   - KIGALISIM_LOG_SOURCE: true, false (default: false)
func NewFromEnv() *slog.Logger {
	return New(Config{
		Level:     parseLogLevel(os.Getenv("KIGALISIM_LOG_LEVEL")),
		Format:    parseLogFormat(os.Getenv("KIGALISIM_LOG_FORMAT")),
		AddSource: parseBool(os.Getenv("KIGALISIM_LOG_SOURCE")),
	})
}

// Default returns the default logger for the application: a production-ready
// JSON logger at info level.
func Default() *slog.Logger {
	return New(Config{Level: slog.LevelInfo, Format: FormatJSON})
}

// Development returns a development-friendly logger with text output and debug level.
func Development() *slog.Logger {
	return New(Config{Level: slog.LevelDebug, Format: FormatText, AddSource: true})
}

// Nop returns a logger that discards all output, for use where no sink was
// injected (the engine core treats logging as opt-in).
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Context Integration
// =============================================================================

// NewContext returns a new context with the logger attached.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context.
// Returns the default logger if none is found.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// WithRunID adds a run ID to the context and returns a context whose logger carries it.
func WithRunID(ctx context.Context, runID string) context.Context {
	ctx = context.WithValue(ctx, runIDKey, runID)
	logger := FromContext(ctx).With(slog.String("run_id", runID))
	return NewContext(ctx, logger)
}

// WithScenario adds a scenario name to the context and returns a context whose logger carries it.
func WithScenario(ctx context.Context, scenario string) context.Context {
	ctx = context.WithValue(ctx, scenarioKey, scenario)
	logger := FromContext(ctx).With(slog.String("scenario", scenario))
	return NewContext(ctx, logger)
}

// RunIDFromContext retrieves the run ID from context.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// =============================================================================
// Helper Functions
// =============================================================================

// parseLogLevel parses a log level string to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseLogFormat parses a format string to Format.
func parseLogFormat(format string) Format {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text", "console":
		return FormatText
	default:
		return FormatJSON
	}
}

// parseBool parses a boolean string.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
