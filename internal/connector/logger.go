package connector

import "context"

// Logger receives statement level diagnostics from a Connector.
// Implementations must be safe to call with a nil keyvals slice.
type Logger interface {
	// Debug logs statement text, bound parameter counts and timings.
	Debug(ctx context.Context, msg string, keyvals ...interface{})

	// Info logs connection lifecycle and transaction boundaries.
	Info(ctx context.Context, msg string, keyvals ...interface{})

	// Error logs failed statements.
	Error(ctx context.Context, msg string, keyvals ...interface{})
}

// NoOpLogger discards everything. It is used when Options.Logger is nil.
type NoOpLogger struct{}

// Debug implements Logger.
func (NoOpLogger) Debug(_ context.Context, _ string, _ ...interface{}) {}

// Info implements Logger.
func (NoOpLogger) Info(_ context.Context, _ string, _ ...interface{}) {}

// Error implements Logger.
func (NoOpLogger) Error(_ context.Context, _ string, _ ...interface{}) {}
