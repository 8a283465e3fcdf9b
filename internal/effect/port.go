// Package effect defines the narrow contracts through which actions touch
// the outside world: actor movement, speech playback, variable and inventory
// state, and scene presentation.
//
// The engine never learns how an effect is implemented. It starts one, holds
// the returned Handle, and polls for completion once per frame. Fast-forward
// paths call the instant variants instead, which must land the world in the
// same end state the polled effect would have converged to.
package effect

import "github.com/zclconf/go-cty/cty"

// Handle identifies one in-flight multi-frame effect.
type Handle int64

// NoHandle is returned by ports for effects that completed immediately.
const NoHandle Handle = 0

// Position is a point in host-world space.
type Position struct {
	X, Y, Z float64
}

// Actors moves and orients the host's actor objects, addressed by stable
// identity token.
type Actors interface {
	// Move begins a walk toward a destination and returns a pollable handle.
	Move(id string, to Position, speed float64) (Handle, error)
	// Place teleports an actor, the instant equivalent of a completed Move.
	Place(id string, to Position) error
	// Face turns an actor toward a point immediately.
	Face(id string, toward Position) error
	// Poll reports whether the movement behind h has finished. Unknown
	// handles report finished.
	Poll(h Handle) bool
}

// Speech plays dialogue lines and tracks which lines have been shown.
type Speech interface {
	// Say begins playback of a line attributed to an actor.
	Say(actor, line string) (Handle, error)
	// Narrate begins playback of an unattributed line.
	Narrate(line string) (Handle, error)
	// Poll reports whether playback behind h has finished.
	Poll(h Handle) bool
	// MarkSeen records a line as already shown without playing it, the
	// instant equivalent of a completed Say or Narrate.
	MarkSeen(actor, line string)
}

// Variables is the named typed variable store shared with the host.
type Variables interface {
	Read(name string) (cty.Value, bool)
	Write(name string, v cty.Value)
}

// Inventory tracks counted items, addressed by item identity token.
type Inventory interface {
	Add(item string, count int)
	Remove(item string, count int)
	Count(item string) int
}

// Scene covers coarse presentation state: screen fades and object visibility.
type Scene interface {
	// Fade begins a fade to or from black over a duration in seconds.
	Fade(out bool, duration float64) (Handle, error)
	// SetFaded jumps the screen to the fade end state.
	SetFaded(out bool)
	// SetVisible shows or hides a scene object.
	SetVisible(object string, visible bool) error
	// Poll reports whether the fade behind h has finished.
	Poll(h Handle) bool
}

// Stage bundles every effect domain an action may touch. It is passed
// explicitly into each action's run and skip paths; the engine carries no
// ambient service access.
type Stage struct {
	Actors    Actors
	Speech    Speech
	Variables Variables
	Inventory Inventory
	Scene     Scene
}
