package extpoint

import "log/slog"

// Logger defines the interface for orchestration logging.
// The orchestrator uses structured logging with key-value pairs so the
// container embedding it controls how bootstrap logs appear.
//
// The Logger interface uses variadic arguments in key-value pairs:
//
//	logger.Debug("Invoking hook", "phase", "registry", "hook", name)
//
// This is compatible with slog, zap, logrus and similar libraries.
// NewSlogLogger adapts a *slog.Logger.
type Logger interface {
	// Info logs an informational message with optional key-value pairs.
	// Used for phase boundaries such as "instance processors installed".
	Info(msg string, args ...any)

	// Error logs an error message with optional key-value pairs.
	// Used when an observer or listener fails; hook failures are returned, not logged.
	Error(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs.
	// Used by the ineligible-component checker.
	Warn(msg string, args ...any)

	// Debug logs a debug message with optional key-value pairs.
	// Used for round boundaries, individual hook invocations and swallowed
	// type resolution failures.
	Debug(msg string, args ...any)
}

// SlogLogger adapts a *slog.Logger to Logger.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps the given slog logger. A nil logger uses slog.Default().
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

func (l *SlogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *SlogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *SlogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return noopLogger{} }
