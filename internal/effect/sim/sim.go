// Package sim is an in-memory stage: a complete effect-port implementation
// with simulated actor movement, timed speech playback, a variable store and
// an inventory. Headless runs and the test suite both drive it.
//
// Movement and playback progress when the host calls Advance once per frame,
// mirroring how a real presentation layer would complete effects over time.
package sim

import (
	"fmt"
	"math"
	"sync"

	"github.com/vk/stagecue/internal/effect"
	"github.com/zclconf/go-cty/cty"
)

// Stage implements every effect contract.
type Stage struct {
	mu sync.Mutex

	actors     map[string]*actorState
	vars       map[string]cty.Value
	items      map[string]int
	visibility map[string]bool
	seen       map[string]bool

	transcript []Line

	fadedOut bool

	nextHandle effect.Handle
	moves      map[effect.Handle]*moveState
	speeches   map[effect.Handle]*speechState
	fades      map[effect.Handle]*fadeState
}

// Line is one spoken entry in the transcript.
type Line struct {
	Actor string
	Text  string
}

type actorState struct {
	pos    effect.Position
	facing effect.Position
}

type moveState struct {
	actor string
	to    effect.Position
	speed float64
	done  bool
}

type speechState struct {
	remaining float64
	done      bool
}

type fadeState struct {
	out       bool
	remaining float64
	done      bool
}

// New creates an empty stage. Actors must be placed (via a world file or
// AddActor) before actions can move them.
func New() *Stage {
	return &Stage{
		actors:     make(map[string]*actorState),
		vars:       make(map[string]cty.Value),
		items:      make(map[string]int),
		visibility: make(map[string]bool),
		seen:       make(map[string]bool),
		moves:      make(map[effect.Handle]*moveState),
		speeches:   make(map[effect.Handle]*speechState),
		fades:      make(map[effect.Handle]*fadeState),
	}
}

// Port bundles the stage into the shape actions consume.
func (s *Stage) Port() *effect.Stage {
	return &effect.Stage{
		Actors:    s,
		Speech:    s,
		Variables: s,
		Inventory: s,
		Scene:     s,
	}
}

// AddActor registers an actor at a starting position.
func (s *Stage) AddActor(id string, at effect.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[id] = &actorState{pos: at}
}

// Advance progresses every in-flight effect by dt seconds. The host calls it
// once per frame, before ticking the scheduler.
func (s *Stage) Advance(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.moves {
		if m.done {
			continue
		}
		a, ok := s.actors[m.actor]
		if !ok {
			m.done = true
			continue
		}
		dx := m.to.X - a.pos.X
		dy := m.to.Y - a.pos.Y
		dz := m.to.Z - a.pos.Z
		dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
		step := m.speed * dt
		if step >= dist || dist == 0 {
			a.pos = m.to
			m.done = true
			continue
		}
		scale := step / dist
		a.pos.X += dx * scale
		a.pos.Y += dy * scale
		a.pos.Z += dz * scale
	}

	for _, sp := range s.speeches {
		if sp.done {
			continue
		}
		sp.remaining -= dt
		if sp.remaining <= 0 {
			sp.done = true
		}
	}

	for _, f := range s.fades {
		if f.done {
			continue
		}
		f.remaining -= dt
		if f.remaining <= 0 {
			s.fadedOut = f.out
			f.done = true
		}
	}
}

func (s *Stage) newHandle() effect.Handle {
	s.nextHandle++
	return s.nextHandle
}

// ---- effect.Actors ----

// Move begins a constant-speed walk toward the destination.
func (s *Stage) Move(id string, to effect.Position, speed float64) (effect.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actors[id]; !ok {
		return effect.NoHandle, fmt.Errorf("no actor %q", id)
	}
	if speed <= 0 {
		speed = 1
	}
	h := s.newHandle()
	s.moves[h] = &moveState{actor: id, to: to, speed: speed}
	return h, nil
}

// Place teleports an actor and completes any walk it had in flight.
func (s *Stage) Place(id string, to effect.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[id]
	if !ok {
		return fmt.Errorf("no actor %q", id)
	}
	a.pos = to
	for _, m := range s.moves {
		if m.actor == id {
			m.done = true
		}
	}
	return nil
}

// Face turns an actor toward a point.
func (s *Stage) Face(id string, toward effect.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[id]
	if !ok {
		return fmt.Errorf("no actor %q", id)
	}
	a.facing = toward
	return nil
}

// Poll reports movement or fade completion; unknown handles are finished.
func (s *Stage) Poll(h effect.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.moves[h]; ok {
		return m.done
	}
	if sp, ok := s.speeches[h]; ok {
		return sp.done
	}
	if f, ok := s.fades[h]; ok {
		return f.done
	}
	return true
}

// ActorPosition returns an actor's current position.
func (s *Stage) ActorPosition(id string) (effect.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[id]
	if !ok {
		return effect.Position{}, false
	}
	return a.pos, true
}

// ---- effect.Speech ----

// secondsPerRune paces simulated playback; every line plays at least half a
// second.
const secondsPerRune = 0.04

func lineDuration(text string) float64 {
	d := secondsPerRune * float64(len([]rune(text)))
	if d < 0.5 {
		d = 0.5
	}
	return d
}

// Say begins timed playback of an attributed line.
func (s *Stage) Say(actor, line string) (effect.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, Line{Actor: actor, Text: line})
	s.seen[seenKey(actor, line)] = true
	h := s.newHandle()
	s.speeches[h] = &speechState{remaining: lineDuration(line)}
	return h, nil
}

// Narrate begins timed playback of an unattributed line.
func (s *Stage) Narrate(line string) (effect.Handle, error) {
	return s.Say("", line)
}

// MarkSeen records a line as shown without playing it.
func (s *Stage) MarkSeen(actor, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[seenKey(actor, line)] = true
}

// Seen reports whether a line has been shown or marked.
func (s *Stage) Seen(actor, line string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[seenKey(actor, line)]
}

// Transcript returns the lines actually played, in order.
func (s *Stage) Transcript() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Line, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func seenKey(actor, line string) string {
	return actor + "\x00" + line
}

// ---- effect.Variables ----

func (s *Stage) Read(name string) (cty.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vars[name]
	return v, ok
}

func (s *Stage) Write(name string, v cty.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = v
}

// ---- effect.Inventory ----

func (s *Stage) Add(item string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item] += count
}

func (s *Stage) Remove(item string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item] -= count
	if s.items[item] <= 0 {
		delete(s.items, item)
	}
}

func (s *Stage) Count(item string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[item]
}

// ---- effect.Scene ----

// Fade begins a timed fade.
func (s *Stage) Fade(out bool, duration float64) (effect.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if duration <= 0 {
		s.fadedOut = out
		return effect.NoHandle, nil
	}
	h := s.newHandle()
	s.fades[h] = &fadeState{out: out, remaining: duration}
	return h, nil
}

// SetFaded jumps the screen to the fade end state and completes any fade in
// flight.
func (s *Stage) SetFaded(out bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fadedOut = out
	for _, f := range s.fades {
		f.done = true
	}
}

// SetVisible shows or hides a scene object.
func (s *Stage) SetVisible(object string, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visibility[object] = visible
	return nil
}

// FadedOut reports the current fade end state.
func (s *Stage) FadedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fadedOut
}

// Visible reports an object's visibility; unset objects are visible.
func (s *Stage) Visible(object string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visibility[object]
	if !ok {
		return true
	}
	return v
}
