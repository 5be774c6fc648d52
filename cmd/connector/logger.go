package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/vibesql/connector/internal/connector"
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelError
)

func parseLevel(s string) (level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return levelDebug, nil
	case "", "info":
		return levelInfo, nil
	case "error":
		return levelError, nil
	default:
		return levelInfo, fmt.Errorf("invalid CONNECTOR_LOG_LEVEL %q, expected debug, info or error", s)
	}
}

// stdLogger writes connector diagnostics through the standard logger in the
// same "[LEVEL] message" form as the rest of the binary.
type stdLogger struct {
	min    level
	logger *log.Logger
}

var _ connector.Logger = (*stdLogger)(nil)

func newStdLogger(min level) *stdLogger {
	return &stdLogger{min: min, logger: log.Default()}
}

func (l *stdLogger) Debug(_ context.Context, msg string, keyvals ...interface{}) {
	l.write(levelDebug, "DEBUG", msg, keyvals)
}

func (l *stdLogger) Info(_ context.Context, msg string, keyvals ...interface{}) {
	l.write(levelInfo, "INFO", msg, keyvals)
}

func (l *stdLogger) Error(_ context.Context, msg string, keyvals ...interface{}) {
	l.write(levelError, "ERROR", msg, keyvals)
}

func (l *stdLogger) write(lvl level, tag, msg string, keyvals []interface{}) {
	if lvl < l.min {
		return
	}
	l.logger.Printf("[%s] %s%s", tag, msg, formatKeyvals(keyvals))
}

// formatKeyvals renders key/value pairs as " k=v k=v". A trailing key without
// a value is printed as k=MISSING.
func formatKeyvals(keyvals []interface{}) string {
	var b strings.Builder
	for i := 0; i < len(keyvals); i += 2 {
		b.WriteByte(' ')
		fmt.Fprint(&b, keyvals[i])
		b.WriteByte('=')
		if i+1 < len(keyvals) {
			fmt.Fprintf(&b, "%v", keyvals[i+1])
		} else {
			b.WriteString("MISSING")
		}
	}
	return b.String()
}
