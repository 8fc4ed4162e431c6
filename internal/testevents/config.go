package testevents

import (
	"time"

	"github.com/okian/attackmap/internal/domain/model"
)

// Config holds configuration for the attack load test
type Config struct {
	BaseURL       string        // Base URL of the service
	NumEvents     int           // Number of attacks to generate
	Teams         int           // Number of distinct teams attacking each other
	DuplicateRate float64       // Share of attacks resent with an earlier id, 0..1
	Workers       int           // Number of concurrent workers
	Timeout       time.Duration // HTTP request timeout
	DrainTimeout  time.Duration // How long to wait for the queue to empty
	OutputFile    string        // Output file for events
	LogFile       string        // Log file for test output
	Verbose       bool          // Enable verbose logging
}

// Event is the attack body posted to /events
type Event = model.AttackEvent

// LogEntry represents a row of GET /log
type LogEntry struct {
	EventID    string       `json:"event_id"`
	Attacker   model.Entity `json:"attacker"`
	Defender   model.Entity `json:"defender"`
	ReceivedAt time.Time    `json:"received_at"`
}

// AckResponse represents the response from event submission
type AckResponse struct {
	Status     string `json:"status"`
	Accepted   int    `json:"accepted"`
	Duplicates int    `json:"duplicates"`
}

// Stats holds test statistics
type Stats struct {
	EventsGenerated int
	EventsSubmitted int
	EventsAccepted  int
	EventsDuplicate int
	EventsThrottled int
	EventsFailed    int
	LogEntries      int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
