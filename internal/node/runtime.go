package node

import (
	"context"
	"math/rand"

	"github.com/vk/stagecue/internal/effect"
	"github.com/vk/stagecue/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// Runtime is the full context an action may touch while binding or running.
// It is passed explicitly into every dispatch call; actions have no ambient
// access to the host.
type Runtime struct {
	// Stage is the effect port bundle for the owning run.
	Stage *effect.Stage
	// Params is the owning list's current parameter values.
	Params *value.Store
	// Lists starts and controls other lists on behalf of invocation kinds.
	Lists Invoker
	// Rand drives random branch selection. Tests inject a seeded source.
	Rand *rand.Rand
}

// Override assigns one value into a slot of an invoked list's parameter set,
// addressed by the slot's stable ID. Values are resolved before the
// invocation crosses the list boundary, so no expression or handle from the
// caller's scope leaks into the callee.
type Override struct {
	SlotID int
	Value  cty.Value
}

// InvokeHandle tracks one sub-list started by an invocation node.
type InvokeHandle interface {
	// Finished reports whether the child run has reached its end.
	Finished() bool
	// SkipToEnd fast-forwards the child synchronously. Safe to call on a
	// finished child.
	SkipToEnd(ctx context.Context)
}

// Invoker is the slice of the scheduler that invocation kinds see.
type Invoker interface {
	// Invoke starts the named list or asset. Parallel requests an
	// additional concurrent instance, legal only for assets that allow it.
	Invoke(ctx context.Context, listID string, overrides []Override, parallel bool) (InvokeHandle, error)
	// EndOther force-finishes every running instance of the named list
	// without executing its remaining nodes.
	EndOther(ctx context.Context, listID string)
	// IsRunning reports whether any instance of the named list is active.
	IsRunning(listID string) bool
}

// Activation is the per-run execution state of the node currently under the
// cursor. The interpreter creates a fresh Activation each time the cursor
// lands on a node and discards it when the node completes, so nothing leaks
// between visits or between concurrent instances sharing the same nodes.
type Activation struct {
	// Payload is the bound payload, resolved on first use.
	Payload Payload
	// Started marks that the node's effect has been kicked off.
	Started bool
	// Handle is the in-flight effect being polled, if any.
	Handle effect.Handle
	// Child is the running sub-list of an invocation node, if any.
	Child InvokeHandle
}

// payload lazily binds and caches the activation's payload.
func (a *Activation) payload(ctx context.Context, n *Node, rt *Runtime) Payload {
	if a.Payload == nil {
		a.Payload = n.Bind(ctx, rt)
	}
	return a.Payload
}
