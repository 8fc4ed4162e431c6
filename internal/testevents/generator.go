package testevents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"lukechampine.com/frand"

	"github.com/okian/attackmap/internal/domain/model"
	"github.com/okian/attackmap/pkg/logger"
)

// generateEvents creates config.NumEvents attacks between config.Teams
// teams. A share of them reuse an earlier event id to exercise dedupe.
func generateEvents(ctx context.Context, config *Config, stats *Stats) ([]Event, error) {
	if config.Teams < 2 {
		return nil, fmt.Errorf("need at least 2 teams, got %d", config.Teams)
	}
	logger.Get().Info(ctx, "generating attacks",
		logger.Int("numEvents", config.NumEvents), logger.Int("teams", config.Teams))

	events := make([]Event, 0, config.NumEvents)
	for i := 0; i < config.NumEvents; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during event generation: %w", err)
		}
		if len(events) > 0 && frand.Float64() < config.DuplicateRate {
			events = append(events, events[frand.Intn(len(events))])
			continue
		}
		events = append(events, generateSingleEvent(config.Teams))
	}

	stats.EventsGenerated = len(events)
	logger.Get().Info(ctx, "generated events successfully", logger.Int("count", len(events)))
	return events, nil
}

// generateSingleEvent picks two distinct teams.
func generateSingleEvent(teams int) Event {
	attacker := frand.Intn(teams) + 1
	defender := frand.Intn(teams-1) + 1
	if defender >= attacker {
		defender++
	}
	solved := time.Now().UTC()

	return Event{
		EventID:  uuid.NewString(),
		Attacker: model.Entity{ID: attacker, Name: teamName(attacker)},
		Defender: model.Entity{ID: defender, Name: teamName(defender)},
		SolvedAt: &solved,
	}
}

func teamName(id int) string {
	return fmt.Sprintf("team-%02d", id)
}
