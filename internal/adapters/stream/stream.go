// Package stream holds what the push-based attack sources share: the
// payload decoder and the handler they deliver to.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/okian/attackmap/internal/domain/model"
)

// ErrDecode is returned for payloads that are not attack events.
var ErrDecode = errors.New("decode attack payload")

// Handler receives every decoded attack, in the order the source saw them.
type Handler func(ctx context.Context, event model.AttackEvent)

// Source is a long-running push feed of attack events.
type Source interface {
	Name() string
	// Run delivers events to h until ctx is cancelled or the source gives up.
	Run(ctx context.Context, h Handler) error
}

// Decode accepts a single attack object or an array of them.
func Decode(data []byte) ([]model.AttackEvent, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	var events []model.AttackEvent
	if data[0] == '[' {
		if err := json.Unmarshal(data, &events); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
	} else {
		var ev model.AttackEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		events = append(events, ev)
	}

	for i := range events {
		if err := events[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: event %d: %w", ErrDecode, i, err)
		}
	}
	return events, nil
}
