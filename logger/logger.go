package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hako/durafmt"
)

var defaultLogger = slog.Default()

// LogLevel represents log levels
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

var slogLevels = map[LogLevel]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// Level maps l to its slog level. Unknown levels log at info.
func (l LogLevel) Level() slog.Level {
	if level, ok := slogLevels[l]; ok {
		return level
	}
	return slog.LevelInfo
}

// Config holds logger configuration
type Config struct {
	Level  LogLevel `toml:"level" validate:"required,oneof=debug info warn error"`
	Format string   `toml:"format" validate:"required,oneof=text json"`
}

func (c *Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}

// New builds a logger writing to w in the configured format.
func New(config Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: config.Level.Level()}
	if config.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Init replaces the package logger. Nodes run inside the host process, so
// output goes to stderr and stdout stays with the host.
func Init(config Config) {
	if err := config.Validate(); err != nil {
		slog.Error("Invalid logger configuration", "error", err)
	}
	defaultLogger = New(config, os.Stderr)
	slog.SetDefault(defaultLogger)
}

func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// With returns a logger with additional context
func With(args ...any) *slog.Logger {
	return defaultLogger.With(args...)
}

// Fatal logs an error and exits the program
func Fatal(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
	os.Exit(1)
}

// Node creates a logger with node context
func Node(name string) *slog.Logger {
	return defaultLogger.With("node", name)
}

// Service creates a logger with service context
func Service(service string) *slog.Logger {
	return defaultLogger.With("service", service)
}

// Elapsed renders the time since start in a human readable form for log lines.
func Elapsed(start time.Time) string {
	return durafmt.Parse(time.Since(start)).LimitFirstN(2).String()
}
