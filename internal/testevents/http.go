package testevents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/attackmap/pkg/logger"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// getJSON decodes the body of a successful GET into v.
func (c *HTTPClient) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

type submitResult int

const (
	resultAccepted submitResult = iota
	resultDuplicate
	resultThrottled
	resultFailed
)

// submitEvents posts events concurrently using a worker pool
func submitEvents(ctx context.Context, config *Config, events []Event, stats *Stats) error {
	logger.Get().Info(ctx, "submitting events",
		logger.Int("events", len(events)), logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/events"

	var counts [resultFailed + 1]atomic.Int64
	var submitted atomic.Int64

	eventChan := make(chan Event, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for event := range eventChan {
				if ctx.Err() != nil {
					continue
				}
				result := submitSingleEvent(ctx, client, url, event)
				counts[result].Add(1)
				n := submitted.Add(1)
				if config.Verbose && n%1000 == 0 {
					logger.Get().Debug(ctx, "progress",
						logger.Int("submitted", int(n)), logger.Int("total", len(events)))
				}
			}
		}()
	}

	func() {
		defer close(eventChan)
		for _, event := range events {
			select {
			case <-ctx.Done():
				return
			case eventChan <- event:
			}
		}
	}()
	wg.Wait()

	stats.EventsSubmitted = int(submitted.Load())
	stats.EventsAccepted = int(counts[resultAccepted].Load())
	stats.EventsDuplicate = int(counts[resultDuplicate].Load())
	stats.EventsThrottled = int(counts[resultThrottled].Load())
	stats.EventsFailed = int(counts[resultFailed].Load())

	logger.Get().Info(ctx, "event submission completed",
		logger.Int("accepted", stats.EventsAccepted),
		logger.Int("duplicate", stats.EventsDuplicate),
		logger.Int("throttled", stats.EventsThrottled),
		logger.Int("failed", stats.EventsFailed))

	return ctx.Err()
}

// submitSingleEvent posts one attack and classifies the response
func submitSingleEvent(ctx context.Context, client *HTTPClient, url string, event Event) submitResult { //nolint:gocritic // hugeParam
	resp, err := client.Post(ctx, url, event)
	if err != nil {
		return resultFailed
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case StatusAccepted:
		return resultAccepted
	case StatusOK:
		return resultDuplicate
	case StatusTooManyRequests:
		return resultThrottled
	default:
		return resultFailed
	}
}
