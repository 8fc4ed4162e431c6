package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/attackmap/internal/testevents"
)

// Default configuration constants.
const (
	defaultNumEvents     = 1000
	defaultTeams         = 12
	defaultDuplicateRate = 0.05
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultDrainTimeout  = 2 * time.Minute
	defaultTestTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numEvents  = flag.Int("events", defaultNumEvents, "Number of attacks to generate and submit")
		teams      = flag.Int("teams", defaultTeams, "Number of teams attacking each other")
		duplicates = flag.Float64("duplicates", defaultDuplicateRate, "Share of attacks resent with an earlier id")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		drain      = flag.Duration("drain", defaultDrainTimeout, "How long to wait for the service to drain")
		outputFile = flag.String("output", "", "Write the generated attacks to this JSON file")
		logFile    = flag.String("log", "", "Also write logs to this file")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testevents.ShowHelp()
		return
	}

	if err := testevents.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &testevents.Config{
		BaseURL:       *baseURL,
		NumEvents:     *numEvents,
		Teams:         *teams,
		DuplicateRate: *duplicates,
		Workers:       *workers,
		Timeout:       *timeout,
		DrainTimeout:  *drain,
		OutputFile:    *outputFile,
		LogFile:       *logFile,
		Verbose:       *verbose,
	}

	if _, err := testevents.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // cancel called above
	}
}
