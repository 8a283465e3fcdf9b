package node

import (
	"github.com/vk/stagecue/internal/effect"
	"github.com/zclconf/go-cty/cty"
)

// Payload is the closed union of action kinds. One struct per kind; the
// dispatch switches in dispatch.go are the only places that enumerate them.
type Payload interface {
	isPayload()
}

// ---- flow ----

// Comment does nothing at run time. Designers leave notes in lists.
type Comment struct {
	Text string
}

// Wait suspends the list for a fixed number of seconds.
type Wait struct {
	Seconds float64
}

// StopList ends the owning list immediately.
type StopList struct{}

// Jump transfers control to the node's authored goto edge. The payload is
// empty because the target lives in the node topology, not in bound values.
type Jump struct{}

// Branch selects between two sockets. Take is computed at bind time from the
// authored condition expression.
type Branch struct {
	Take bool
}

// Switch selects one of N sockets by an integer computed at bind time.
type Switch struct {
	Selector int
}

// RandomBranch selects a socket at random. The roll happens during bind so
// the selection is stable for the lifetime of the activation.
type RandomBranch struct {
	Picked int
}

// Sequence selects sockets in order across repeated activations, using the
// node's persistent counter. Loop wraps the counter; otherwise it clamps on
// the last socket.
type Sequence struct {
	Loop bool
}

// ---- actor ----

// Move walks an actor to a destination over multiple frames.
type Move struct {
	Actor string
	To    effect.Position
	Speed float64
}

// Teleport places an actor instantly.
type Teleport struct {
	Actor string
	To    effect.Position
}

// Face turns an actor toward a point instantly.
type Face struct {
	Actor  string
	Toward effect.Position
}

// ---- speech ----

// Say plays a dialogue line attributed to an actor.
type Say struct {
	Actor string
	Line  string
	// WaitUntilDone blocks the list until playback completes; otherwise the
	// list advances while the line plays out.
	WaitUntilDone bool
}

// Narrate plays an unattributed line.
type Narrate struct {
	Line          string
	WaitUntilDone bool
}

// ---- variables ----

// SetVariable writes a typed value into the shared variable store.
type SetVariable struct {
	Name  string
	Value cty.Value
}

// ToggleVariable inverts a boolean variable. A missing or non-boolean
// variable reads as false and toggles to true.
type ToggleVariable struct {
	Name string
}

// CheckVariable branches on a comparison against the variable store. Take is
// computed at bind time.
type CheckVariable struct {
	Name string
	Take bool
}

// CheckVariableMulti switches on which authored case value the variable
// currently matches. Selector is the matched case index, or the case count
// when nothing matched, which lands on the default socket if one exists.
type CheckVariableMulti struct {
	Name     string
	Selector int
}

// ---- parameters ----

// SetParam assigns a value into one of the owning list's parameter slots.
type SetParam struct {
	Name  string
	Value cty.Value
}

// CheckParam branches on a comparison against one of the owning list's
// parameter slots.
type CheckParam struct {
	Name string
	Take bool
}

// ---- inventory ----

// AddItem adds counted items to the inventory.
type AddItem struct {
	Item  string
	Count int
}

// RemoveItem removes counted items from the inventory.
type RemoveItem struct {
	Item  string
	Count int
}

// CheckItem branches on whether the inventory holds at least AtLeast of an
// item. Have is computed at bind time.
type CheckItem struct {
	Item    string
	AtLeast int
	Have    bool
}

// ---- scene ----

// FadeScene fades the screen to or from black over a duration.
type FadeScene struct {
	Out      bool
	Duration float64
}

// SetVisible shows or hides a scene object.
type SetVisible struct {
	Object  string
	Visible bool
}

// ---- lists ----

// Cue invokes another list. With WaitUntilDone the node stays active until
// the child finishes; such nodes are not skippable themselves and instead
// propagate a fast-forward into the child.
type Cue struct {
	List          string
	WaitUntilDone bool
	Parallel      bool
	Overrides     []Override
}

// EndOther force-finishes every running instance of another list.
type EndOther struct {
	List string
}

func (*Comment) isPayload()            {}
func (*Wait) isPayload()               {}
func (*StopList) isPayload()           {}
func (*Jump) isPayload()               {}
func (*Branch) isPayload()             {}
func (*Switch) isPayload()             {}
func (*RandomBranch) isPayload()       {}
func (*Sequence) isPayload()           {}
func (*Move) isPayload()               {}
func (*Teleport) isPayload()           {}
func (*Face) isPayload()               {}
func (*Say) isPayload()                {}
func (*Narrate) isPayload()            {}
func (*SetVariable) isPayload()        {}
func (*ToggleVariable) isPayload()     {}
func (*CheckVariable) isPayload()      {}
func (*CheckVariableMulti) isPayload() {}
func (*SetParam) isPayload()           {}
func (*CheckParam) isPayload()         {}
func (*AddItem) isPayload()            {}
func (*RemoveItem) isPayload()         {}
func (*CheckItem) isPayload()          {}
func (*FadeScene) isPayload()          {}
func (*SetVisible) isPayload()         {}
func (*Cue) isPayload()                {}
func (*EndOther) isPayload()           {}
