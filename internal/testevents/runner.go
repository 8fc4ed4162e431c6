package testevents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/attackmap/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// ErrDrainTimeout is returned when the service did not drain in time.
var ErrDrainTimeout = errors.New("service did not drain in time")

// serviceStats is the subset of GET /stats the runner watches.
type serviceStats struct {
	Started     bool `json:"started"`
	QueueLength int  `json:"queueLength"`
	Enqueued    int  `json:"enqueued"`
	Processed   int  `json:"processed"`
	Markers     int  `json:"markers"`
	Buffered    int  `json:"buffered"`
}

// Run executes the complete attack load test.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting attack map load test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("events", config.NumEvents),
		logger.Int("teams", config.Teams),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Float64("duplicateRate", config.DuplicateRate))

	client := newHTTPClient(config.Timeout)

	if err := checkServiceHealth(ctx, client, config); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	events, err := generateEvents(ctx, config, stats)
	if err != nil {
		return nil, fmt.Errorf("event generation failed: %w", err)
	}

	if err := submitEvents(ctx, config, events, stats); err != nil {
		return nil, fmt.Errorf("event submission failed: %w", err)
	}

	if err := waitForDrain(ctx, client, config); err != nil {
		return nil, fmt.Errorf("waiting for processing failed: %w", err)
	}

	entries, err := fetchLog(ctx, client, config)
	if err != nil {
		return nil, fmt.Errorf("log retrieval failed: %w", err)
	}
	stats.LogEntries = len(entries)

	if err := verifyLog(entries, events, stats); err != nil {
		return nil, fmt.Errorf("log verification failed: %w", err)
	}

	if config.OutputFile != "" {
		if err := saveEventsToFile(ctx, config.OutputFile, events); err != nil {
			logger.Get().Warn(ctx, "failed to save events to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "test completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, config *Config) error {
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	// The health endpoint serves Prometheus metrics; any 200 is healthy.
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// waitForDrain polls /stats until every accepted attack left the queue and
// the debounce window closed.
func waitForDrain(ctx context.Context, client *HTTPClient, config *Config) error {
	ctx, cancel := context.WithTimeout(ctx, config.DrainTimeout)
	defer cancel()

	ticker := time.NewTicker(DrainPollInterval)
	defer ticker.Stop()

	for {
		var st serviceStats
		if err := client.getJSON(ctx, config.BaseURL+"/stats", &st); err == nil {
			if st.QueueLength == 0 && st.Processed >= st.Enqueued && st.Buffered == 0 {
				logger.Get().Info(ctx, "service drained",
					logger.Int("processed", st.Processed), logger.Int("markers", st.Markers))
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ErrDrainTimeout
		case <-ticker.C:
		}
	}
}

func fetchLog(ctx context.Context, client *HTTPClient, config *Config) ([]LogEntry, error) {
	var entries []LogEntry
	url := fmt.Sprintf("%s/log?limit=%d", config.BaseURL, LogFetchLimit)
	if err := client.getJSON(ctx, url, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// verifyLog checks that the log only holds attacks we sent, each once,
// newest first.
func verifyLog(entries []LogEntry, events []Event, stats *Stats) error {
	sent := make(map[string]Event, len(events))
	for _, ev := range events {
		sent[ev.EventID] = ev
	}

	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		ev, ok := sent[e.EventID]
		if !ok {
			return fmt.Errorf("entry %d: unknown event id %q", i, e.EventID)
		}
		if _, dup := seen[e.EventID]; dup {
			return fmt.Errorf("entry %d: event %q logged twice", i, e.EventID)
		}
		seen[e.EventID] = struct{}{}
		if e.Attacker.ID != ev.Attacker.ID || e.Defender.ID != ev.Defender.ID {
			return fmt.Errorf("entry %d: event %q has %d>%d, sent %d>%d", i, e.EventID,
				e.Attacker.ID, e.Defender.ID, ev.Attacker.ID, ev.Defender.ID)
		}
		if i > 0 && e.ReceivedAt.After(entries[i-1].ReceivedAt) {
			return fmt.Errorf("entry %d: log is not newest first", i)
		}
	}

	// The service may keep fewer rows than were accepted.
	if want := min(stats.EventsAccepted, LogFetchLimit); len(entries) < want {
		logger.Get().Warn(context.Background(), "log shorter than accepted attacks",
			logger.Int("entries", len(entries)), logger.Int("accepted", stats.EventsAccepted))
	}
	return nil
}

// saveEventsToFile saves the generated events to a JSON file.
func saveEventsToFile(ctx context.Context, filename string, events []Event) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "events saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(stats *Stats) {
	var successRate, eventsPerSecond float64

	if stats.EventsSubmitted > 0 {
		successRate = float64(stats.EventsAccepted) / float64(stats.EventsSubmitted) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("eventsGenerated", stats.EventsGenerated),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsAccepted", stats.EventsAccepted),
		logger.Int("eventsDuplicate", stats.EventsDuplicate),
		logger.Int("eventsThrottled", stats.EventsThrottled),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("logEntries", stats.LogEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
