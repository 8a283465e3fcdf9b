// Package node defines the action contract: the unit of work a list
// interpreter drives, the taxonomy of step outcomes, and the closed set of
// action kinds the engine understands.
//
// Why a closed set?
//
// Every kind is one payload struct, and the three entry points Run, Skip and
// BranchTarget each dispatch over the full set in a single type switch. Adding
// a kind means touching those switches, which keeps the run path, the
// fast-forward path and the branch path visibly in step with each other. The
// fast-forward path is the safety-critical one: a kind whose Skip drifts from
// what its Run converges to breaks the player-facing skip button.
package node

import (
	"context"
	"sync"

	"github.com/vk/stagecue/internal/ctxlog"
)

// Node is one authored action inside a list. The topology fields are
// immutable after loading; only per-run values (resolved by the Binder) and
// the sequence counter change at run time.
//
// A Node carries no per-run execution state. Concurrent instances of an
// asset list share one Node slice, so everything tied to a single run lives
// in the Activation owned by that run's interpreter.
type Node struct {
	// Name is the instance label from the document, for logs and jumps.
	Name string
	// Kind is the action kind keyword, for logs and diagnostics.
	Kind string
	// Index is the node's position in the owning list.
	Index int

	// Next is the default successor edge once the node reports done.
	Next Edge
	// Sockets are the named outgoing edges of a branching node, in socket
	// order. Empty for non-branching kinds.
	Sockets []Edge
	// Branching marks kinds that select a socket instead of following Next.
	Branching bool
	// Skippable is false for nodes that must still execute during a
	// fast-forward, such as sub-list invocations that propagate the skip
	// into their child instead of being bypassed.
	Skippable bool

	// Bind resolves the node's authored arguments against the current
	// parameter values into a concrete payload. It is a pure read of the
	// parameter store and may be called repeatedly.
	Bind Binder

	// seq is the persistent counter of a sequence node. It survives across
	// runs of the owning list deliberately.
	seq     int
	seqMu   sync.Mutex
	oobWarn sync.Once
}

// Binder produces the bound payload for one activation of a node. A binder
// that cannot resolve a reference falls back to the field's authored default
// and logs a warning; it never fails the run.
type Binder func(ctx context.Context, rt *Runtime) Payload

// SocketEdge maps a computed selector onto one of the node's sockets. An
// out-of-range selector resolves to Stop: socket counts shrink during
// authoring, and a stale selector must end the list rather than panic.
func (n *Node) SocketEdge(ctx context.Context, selector int) Edge {
	if selector < 0 || selector >= len(n.Sockets) {
		n.oobWarn.Do(func() {
			ctxlog.FromContext(ctx).Warn("branch selector out of range, stopping list",
				"node", n.Name, "kind", n.Kind, "selector", selector, "sockets", len(n.Sockets))
		})
		return Edge{Kind: EdgeStop}
	}
	return n.Sockets[selector]
}

// SequenceNext returns the sequence counter's current value and advances it,
// wrapping to zero when loop is set and clamping at the last socket when not.
func (n *Node) SequenceNext(loop bool) int {
	n.seqMu.Lock()
	defer n.seqMu.Unlock()
	sockets := len(n.Sockets)
	if sockets < 1 {
		return 0
	}
	if n.seq >= sockets {
		n.seq = sockets - 1
	}
	current := n.seq
	n.seq++
	if n.seq >= sockets {
		if loop {
			n.seq = 0
		} else {
			n.seq = sockets - 1
		}
	}
	return current
}

// SequencePeek returns the counter value the next activation will select,
// without advancing it.
func (n *Node) SequencePeek() int {
	n.seqMu.Lock()
	defer n.seqMu.Unlock()
	sockets := len(n.Sockets)
	if sockets < 1 {
		return 0
	}
	if n.seq >= sockets {
		return sockets - 1
	}
	return n.seq
}

// ResetSequence rewinds the persistent counter, used when the owning asset
// is reloaded.
func (n *Node) ResetSequence() {
	n.seqMu.Lock()
	n.seq = 0
	n.seqMu.Unlock()
}
