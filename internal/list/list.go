// Package list implements the cue-list interpreter: an ordered sequence of
// actions walked by a cursor, suspended and resumed across frames, with a
// synchronous fast-forward that reproduces the same final state.
package list

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/vk/stagecue/internal/ctxlog"
	"github.com/vk/stagecue/internal/effect"
	"github.com/vk/stagecue/internal/node"
	"github.com/vk/stagecue/internal/value"
)

// List is an authored cue list: its nodes, its declared parameter set, and
// its scheduling flags. A List is a template; execution state lives in
// Instance. Scene lists have exactly one Instance, asset lists zero or more.
type List struct {
	// ID is the list's identity token, unique across the loaded document set.
	ID string
	// Nodes in document order. Node.Index matches the slice position.
	Nodes []*node.Node
	// Params is the declared parameter set.
	Params *value.Set

	// Asset marks a template that the scheduler instantiates on demand, as
	// opposed to a scene-resident list with one fixed instance.
	Asset bool
	// AllowConcurrent permits multiple live instances of an asset list.
	AllowConcurrent bool
	// SyncValues shares one parameter store between the template and every
	// run, instead of seeding each run with a private copy.
	SyncValues bool
	// Background lists do not block the host's coarse gameplay state.
	Background bool

	// store holds the template's parameter values. It is the live store of
	// every run when SyncValues is set, and the seed copied otherwise.
	store *value.Store
}

// New builds a List and seeds its template parameter store from the declared
// defaults.
func New(id string, nodes []*node.Node, params *value.Set) *List {
	if params == nil {
		params = value.EmptySet()
	}
	return &List{
		ID:     id,
		Nodes:  nodes,
		Params: params,
		store:  value.NewStore(params),
	}
}

// TemplateStore exposes the template's parameter store, the shared run store
// for synced lists.
func (l *List) TemplateStore() *value.Store {
	return l.store
}

// State is the interpreter's lifecycle position.
type State int

const (
	Idle State = iota
	Running
	Suspended
	Finished
	// Aborted is a forced finish: remaining nodes were not executed.
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Finished:
		return "finished"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// maxStepsPerTick bounds how many instantaneous nodes one Tick may chain
// through. An authored cycle of instant nodes spreads across frames instead
// of hanging the host loop.
const maxStepsPerTick = 10000

// maxSkipSteps bounds a fast-forward the same way; overflowing it forces the
// list to finish, since the skip button must return.
const maxSkipSteps = 100000

// Instance is one execution of a List. The interpreter is cooperative and
// single-threaded: the scheduler advances each instance exactly once per
// frame, and nothing here locks.
type Instance struct {
	list   *List
	serial int
	rt     *node.Runtime

	state  State
	cursor int
	delay  float64
	act    *node.Activation
}

// NewInstance wires an instance to its stage, its list-invocation port, and
// a random source. Start must be called before the instance does anything.
func NewInstance(l *List, serial int, stage *effect.Stage, lists node.Invoker, rng *rand.Rand) *Instance {
	return &Instance{
		list:   l,
		serial: serial,
		rt: &node.Runtime{
			Stage: stage,
			Lists: lists,
			Rand:  rng,
		},
	}
}

// List returns the template this instance executes.
func (in *Instance) List() *List {
	return in.list
}

// Label identifies the instance in logs: the list ID plus a run serial.
func (in *Instance) Label() string {
	return fmt.Sprintf("%s#%d", in.list.ID, in.serial)
}

// State returns the interpreter's current lifecycle position.
func (in *Instance) State() State {
	return in.state
}

// Finished reports whether the run has ended, normally or forced.
func (in *Instance) Finished() bool {
	return in.state == Finished || in.state == Aborted
}

// Cursor returns the index of the node currently under the cursor.
func (in *Instance) Cursor() int {
	return in.cursor
}

// Params returns the run's parameter store. Nil before Start.
func (in *Instance) Params() *value.Store {
	return in.rt.Params
}

// Start begins execution at the given node index. A run already in flight is
// force-finished first; two interpreter loops must never walk one instance.
// Parameter storage is the template's own store for synced lists, otherwise
// a private copy seeded from the defaults, with caller overrides applied on
// top. An override addressing a slot that no longer exists is dropped with a
// warning and the slot keeps its default.
func (in *Instance) Start(ctx context.Context, at int, overrides []node.Override) error {
	logger := ctxlog.FromContext(ctx)
	if at < 0 || at >= len(in.list.Nodes) {
		return fmt.Errorf("list %s: start index %d out of range [0,%d)", in.list.ID, at, len(in.list.Nodes))
	}
	if in.state == Running || in.state == Suspended {
		logger.Debug("restarting live list run", "instance", in.Label())
		in.ForceFinish(ctx)
	}

	if in.list.SyncValues {
		in.rt.Params = in.list.store
	} else {
		in.rt.Params = in.list.store.Clone()
	}
	for _, ov := range overrides {
		if err := in.rt.Params.Assign(ov.SlotID, ov.Value); err != nil {
			logger.Warn("parameter override dropped, keeping default", "instance", in.Label(), "slot", ov.SlotID, "error", err)
		}
	}

	in.cursor = at
	in.act = nil
	in.delay = 0
	in.state = Running
	logger.Debug("list started", "instance", in.Label(), "at", at)
	return nil
}

// Tick advances the run by one frame. Instantaneous nodes chain within the
// same tick; the first in-flight effect or timed wait suspends the run until
// a later tick.
func (in *Instance) Tick(ctx context.Context, dt float64) {
	if in.state == Suspended {
		in.delay -= dt
		if in.delay > 0 {
			return
		}
		in.delay = 0
		in.state = Running
	}
	if in.state != Running {
		return
	}

	for steps := 0; in.state == Running; steps++ {
		if steps >= maxStepsPerTick {
			ctxlog.FromContext(ctx).Warn("instant-action cycle exceeded per-frame budget, resuming next frame",
				"instance", in.Label(), "cursor", in.cursor)
			in.delay = 0
			in.state = Suspended
			return
		}
		n, ok := in.current(ctx)
		if !ok {
			return
		}
		if in.act == nil {
			in.act = &node.Activation{}
		}
		res := node.Run(ctx, n, in.act, in.rt)
		if edge, done := res.Finished(); done {
			in.act = nil
			in.follow(ctx, edge)
			continue
		}
		in.delay = res.Delay()
		in.state = Suspended
		return
	}
}

// SkipToEnd fast-forwards the run synchronously: every remaining node has
// its end state applied instantly and its successor edge followed, visiting
// the same node sequence a frame-by-frame run would have. Waiting sub-list
// invocations are not bypassed; their children fast-forward recursively.
func (in *Instance) SkipToEnd(ctx context.Context) {
	if in.state != Running && in.state != Suspended {
		return
	}
	in.state = Running
	for steps := 0; in.state == Running; steps++ {
		if steps >= maxSkipSteps {
			ctxlog.FromContext(ctx).Warn("fast-forward exceeded step budget, forcing finish",
				"instance", in.Label(), "cursor", in.cursor)
			in.ForceFinish(ctx)
			return
		}
		n, ok := in.current(ctx)
		if !ok {
			return
		}
		if in.act == nil {
			in.act = &node.Activation{}
		}
		node.Skip(ctx, n, in.act, in.rt)
		edge := node.ResolveEdge(ctx, n, in.act, in.rt)
		in.act = nil
		in.follow(ctx, edge)
	}
}

// ForceFinish ends the run without executing remaining nodes. Any
// partially-applied effect from the last executed node is the host's
// responsibility. Safe to call in any state.
func (in *Instance) ForceFinish(ctx context.Context) {
	if in.Finished() {
		return
	}
	if in.state == Idle {
		in.state = Finished
		return
	}
	ctxlog.FromContext(ctx).Debug("list run force-finished", "instance", in.Label(), "cursor", in.cursor)
	in.act = nil
	in.state = Aborted
}

// current validates the cursor and the node under it, finishing the run on
// an exhausted cursor or a branching node with no sockets.
func (in *Instance) current(ctx context.Context) (*node.Node, bool) {
	if in.cursor < 0 || in.cursor >= len(in.list.Nodes) {
		in.finish(ctx)
		return nil, false
	}
	n := in.list.Nodes[in.cursor]
	if n.Branching && len(n.Sockets) == 0 {
		ctxlog.FromContext(ctx).Warn("branching action has no sockets, stopping list",
			"instance", in.Label(), "node", n.Name)
		in.finish(ctx)
		return nil, false
	}
	return n, true
}

// follow moves the cursor along a successor edge.
func (in *Instance) follow(ctx context.Context, edge node.Edge) {
	switch edge.Kind {
	case node.EdgeContinue:
		in.cursor++
		if in.cursor >= len(in.list.Nodes) {
			in.finish(ctx)
		}
	case node.EdgeGoto:
		if edge.Index < 0 || edge.Index >= len(in.list.Nodes) {
			ctxlog.FromContext(ctx).Warn("jump target out of range, stopping list",
				"instance", in.Label(), "target", edge.Index)
			in.finish(ctx)
			return
		}
		in.cursor = edge.Index
	case node.EdgeStop:
		in.finish(ctx)
	}
}

func (in *Instance) finish(ctx context.Context) {
	in.act = nil
	in.state = Finished
	ctxlog.FromContext(ctx).Debug("list finished", "instance", in.Label())
}

// RestoreAt places the cursor for a run revived from a host snapshot. The
// instance resumes in Running state on the next tick.
func (in *Instance) RestoreAt(cursor int, params *value.Store) error {
	if cursor < 0 || cursor >= len(in.list.Nodes) {
		return fmt.Errorf("list %s: snapshot cursor %d out of range", in.list.ID, cursor)
	}
	in.cursor = cursor
	in.rt.Params = params
	in.act = nil
	in.delay = 0
	in.state = Running
	return nil
}
