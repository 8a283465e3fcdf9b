package sim

import (
	"github.com/vk/stagecue/internal/effect"
	"github.com/vk/stagecue/internal/value"
)

// Observable is the comparable end state of a stage: everything a player
// could tell apart after a sequence ran. Fast-forwarding a list and playing
// it frame by frame must produce equal Observables.
//
// The transcript is deliberately absent: a skipped line is marked seen but
// never played, which is the authored contract for skipping.
type Observable struct {
	Actors     map[string]effect.Position
	Variables  map[string]string
	Inventory  map[string]int
	Visibility map[string]bool
	Seen       map[string]bool
	FadedOut   bool
}

// Observe captures the current end state.
func (s *Stage) Observe() Observable {
	s.mu.Lock()
	defer s.mu.Unlock()

	o := Observable{
		Actors:     make(map[string]effect.Position, len(s.actors)),
		Variables:  make(map[string]string, len(s.vars)),
		Inventory:  make(map[string]int, len(s.items)),
		Visibility: make(map[string]bool, len(s.visibility)),
		Seen:       make(map[string]bool, len(s.seen)),
		FadedOut:   s.fadedOut,
	}
	for id, a := range s.actors {
		o.Actors[id] = a.pos
	}
	for name, v := range s.vars {
		o.Variables[name] = value.Stringify(v)
	}
	for item, count := range s.items {
		o.Inventory[item] = count
	}
	for obj, vis := range s.visibility {
		o.Visibility[obj] = vis
	}
	for k, seen := range s.seen {
		o.Seen[k] = seen
	}
	return o
}
