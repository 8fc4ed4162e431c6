package testevents

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/attackmap/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging sends structured logs to stdout and, if logFile is set, to
// that file as well.
func SetupLogging(logFile string, verbose bool) error {
	var w io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
	}
	if err := logger.InitWithWriter(w); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the load test tool.
func ShowHelp() {
	os.Stdout.WriteString(`Attack Map Load Test
====================

Posts random attacks to a running attack map, waits for them to be
processed and checks the attack log.

Usage:
  go run ./cmd/test-events [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -events int
        Number of attacks to generate and submit (default 1000)
  -teams int
        Number of teams attacking each other (default 12)
  -duplicates float
        Share of attacks resent with an earlier id (default 0.05)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -drain duration
        How long to wait for the service to drain (default 2m)
  -output string
        Write the generated attacks to this JSON file
  -log string
        Also write logs to this file
  -verbose
        Enable debug logging
  -help
        Show this help message

Examples:
  # Burst 5000 attacks at a local service
  go run ./cmd/test-events -events 5000 -workers 16

  # No duplicates, keep the attacks for replay
  go run ./cmd/test-events -duplicates 0 -output attacks.json
`)
}
