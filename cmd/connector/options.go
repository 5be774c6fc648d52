package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/vibesql/connector/internal/connector"
)

// optionsFromEnv reads CONNECTOR_QUERY_TIMEOUT, CONNECTOR_MAX_ROWS and
// CONNECTOR_LOG_LEVEL.
func optionsFromEnv() (connector.Options, error) {
	var opts connector.Options

	if raw := os.Getenv("CONNECTOR_QUERY_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil || timeout < 0 {
			return opts, fmt.Errorf("invalid CONNECTOR_QUERY_TIMEOUT %q", raw)
		}
		opts.QueryTimeout = timeout
	}

	if raw := os.Getenv("CONNECTOR_MAX_ROWS"); raw != "" {
		maxRows, err := strconv.Atoi(raw)
		if err != nil || maxRows < 0 {
			return opts, fmt.Errorf("invalid CONNECTOR_MAX_ROWS %q", raw)
		}
		opts.MaxRows = maxRows
	}

	level, err := parseLevel(os.Getenv("CONNECTOR_LOG_LEVEL"))
	if err != nil {
		return opts, err
	}
	opts.Logger = newStdLogger(level)

	return opts, nil
}
