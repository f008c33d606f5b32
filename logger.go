package eduapi

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger is the minimal structured logging interface the client emits to.
// Arguments after the message are alternating key/value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// DebugConfig gates which lifecycle events are logged. All gates default to
// on; Enabled is the master switch and defaults to off.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogRetries   bool
	LogCircuit   bool
	LogRefresh   bool
	LogRateLimit bool
	// RequestIDGen produces per-request correlation IDs for log lines and
	// error diagnostics.
	RequestIDGen func() string
}

// DefaultDebugConfig returns a config with all event gates on and UUID
// request IDs.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogRetries:   true,
		LogCircuit:   true,
		LogRefresh:   true,
		LogRateLimit: true,
		RequestIDGen: uuid.NewString,
	}
}

// SimpleLogger writes key=value lines to stderr via the standard log
// package. Intended for examples and tests.
type SimpleLogger struct {
	logger *log.Logger
}

// NewSimpleLogger creates a stderr logger.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{logger: log.New(os.Stderr, "eduapi ", log.LstdFlags)}
}

func (l *SimpleLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.print("DEBUG", msg, keysAndValues)
}

func (l *SimpleLogger) Info(msg string, keysAndValues ...interface{}) {
	l.print("INFO", msg, keysAndValues)
}

func (l *SimpleLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.print("WARN", msg, keysAndValues)
}

func (l *SimpleLogger) Error(msg string, keysAndValues ...interface{}) {
	l.print("ERROR", msg, keysAndValues)
}

func (l *SimpleLogger) print(level, msg string, keysAndValues []interface{}) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(" ")
	b.WriteString(msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	l.logger.Println(b.String())
}

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog.Logger.
func NewZerologLogger(zl zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{zl: zl}
}

func (l *ZerologLogger) Debug(msg string, keysAndValues ...interface{}) {
	emit(l.zl.Debug(), msg, keysAndValues)
}

func (l *ZerologLogger) Info(msg string, keysAndValues ...interface{}) {
	emit(l.zl.Info(), msg, keysAndValues)
}

func (l *ZerologLogger) Warn(msg string, keysAndValues ...interface{}) {
	emit(l.zl.Warn(), msg, keysAndValues)
}

func (l *ZerologLogger) Error(msg string, keysAndValues ...interface{}) {
	emit(l.zl.Error(), msg, keysAndValues)
}

func emit(e *zerolog.Event, msg string, keysAndValues []interface{}) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		e = e.Interface(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1])
	}
	e.Msg(msg)
}
