package tutorapi

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
)

// Logger receives key/value structured log lines from the client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DebugConfig selects which parts of the request lifecycle are logged.
type DebugConfig struct {
	Enabled     bool
	LogRequests bool
	LogRetries  bool
	LogCache    bool
	LogAuth     bool
	// RequestIDGen produces the X-Request-ID for each logical request.
	RequestIDGen func() string
}

// DefaultDebugConfig logs nothing but still tags requests with IDs.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		RequestIDGen: uuid.NewString,
	}
}

// VerboseDebugConfig turns every log category on.
func VerboseDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      true,
		LogRequests:  true,
		LogRetries:   true,
		LogCache:     true,
		LogAuth:      true,
		RequestIDGen: uuid.NewString,
	}
}

// SimpleLogger writes structured lines through pterm.
type SimpleLogger struct {
	logger *pterm.Logger
}

// NewSimpleLogger logs at debug level to stderr.
func NewSimpleLogger() *SimpleLogger {
	return NewSimpleLoggerTo(os.Stderr)
}

// NewSimpleLoggerTo logs at debug level to w.
func NewSimpleLoggerTo(w io.Writer) *SimpleLogger {
	l := pterm.DefaultLogger.WithLevel(pterm.LogLevelDebug).WithWriter(w)
	return &SimpleLogger{logger: l}
}

func (l *SimpleLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, l.logger.Args(args...))
}

func (l *SimpleLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, l.logger.Args(args...))
}

func (l *SimpleLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, l.logger.Args(args...))
}

func (l *SimpleLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, l.logger.Args(args...))
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
