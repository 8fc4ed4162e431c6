// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidEvent is returned by AttackEvent.Validate.
var ErrInvalidEvent = errors.New("invalid attack event")

// UnknownSlot is the layout slot of a team missing from the roster.
const UnknownSlot = -1

// Entity identifies one side of an attack.
type Entity struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// AttackEvent is a solved attack pushed by the contest feed.
// Fields mirror the feed's "attack-event" payload.
type AttackEvent struct {
	EventID  string     `json:"event_id,omitempty"` // optional, used for idempotency
	Attacker Entity     `json:"attacker"`
	Defender Entity     `json:"defender"`
	SolvedAt *time.Time `json:"solved_at,omitempty"`
}

// Validate reports whether the event names both sides.
func (e AttackEvent) Validate() error {
	if e.Attacker.Name == "" && e.Attacker.ID == 0 {
		return fmt.Errorf("%w: attacker is required", ErrInvalidEvent)
	}
	if e.Defender.Name == "" && e.Defender.ID == 0 {
		return fmt.Errorf("%w: defender is required", ErrInvalidEvent)
	}
	return nil
}

// Team is a roster entry. Its index in the roster is its layout slot.
type Team struct {
	ID   int    `json:"id" koanf:"id"`
	Name string `json:"name" koanf:"name"`
}

// MarkerJob is one queued animation derived from an AttackEvent.
type MarkerJob struct {
	AttackerSlot int    `json:"attacker_slot"`
	DefenderSlot int    `json:"defender_slot"`
	Color        string `json:"color"`
}

// Batch is one arrival of jobs reported as completed together.
type Batch struct {
	Count     int `json:"count"`
	Remaining int `json:"remaining"`
}
