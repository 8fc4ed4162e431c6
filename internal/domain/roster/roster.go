// Package roster maps team identity to a layout slot.
package roster

import (
	"sync"

	"github.com/samber/lo"

	"github.com/okian/attackmap/internal/domain/model"
)

// Roster is an ordered team list. A team's index is its layout slot.
// It is safe for concurrent use.
type Roster struct {
	mu    sync.RWMutex
	teams []model.Team
	slots map[int]int
}

// New builds a roster from teams in slot order.
func New(teams []model.Team) *Roster {
	r := &Roster{}
	r.Replace(teams)
	return r
}

// Replace swaps the roster. The first occurrence of a repeated id wins.
func (r *Roster) Replace(teams []model.Team) {
	teams = append([]model.Team(nil), teams...)
	slots := make(map[int]int, len(teams))
	for i, t := range teams {
		if _, ok := slots[t.ID]; !ok {
			slots[t.ID] = i
		}
	}

	r.mu.Lock()
	r.teams = teams
	r.slots = slots
	r.mu.Unlock()
}

// Slot returns the layout slot of teamID, or model.UnknownSlot.
func (r *Roster) Slot(teamID int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i, ok := r.slots[teamID]; ok {
		return i
	}
	return model.UnknownSlot
}

// Len is the layout capacity: the team count, at least 1.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return max(len(r.teams), 1)
}

// Teams returns a copy of the roster in slot order.
func (r *Roster) Teams() []model.Team {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Team(nil), r.teams...)
}

// Names returns the team names in slot order.
func (r *Roster) Names() []string {
	return lo.Map(r.Teams(), func(t model.Team, _ int) string { return t.Name })
}
