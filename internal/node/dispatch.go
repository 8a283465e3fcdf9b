package node

import (
	"context"

	"github.com/vk/stagecue/internal/ctxlog"
	"github.com/vk/stagecue/internal/effect"
	"github.com/vk/stagecue/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// pollDelay is the suspension requested while an external effect is in
// flight: zero seconds, meaning poll again next frame.
const pollDelay = 0

// Run performs one tick of the node's effect. Kinds with nothing long-running
// report Done on their first call. Configuration problems (missing actors,
// unknown slots) degrade the node to a no-op with a warning; a single
// misconfigured action must never stall its list.
func Run(ctx context.Context, n *Node, act *Activation, rt *Runtime) Result {
	logger := ctxlog.FromContext(ctx)
	p := act.payload(ctx, n, rt)
	if p == nil {
		logger.Warn("action bound no payload, treating as no-op", "node", n.Name, "kind", n.Kind)
		return Done(n.Next)
	}

	switch p := p.(type) {
	case *Comment:
		logger.Debug("comment", "node", n.Name, "text", p.Text)
		return Done(n.Next)

	case *Wait:
		if !act.Started {
			act.Started = true
			if p.Seconds <= 0 {
				return Done(n.Next)
			}
			return Running(p.Seconds)
		}
		return Done(n.Next)

	case *StopList, *Jump, *Branch, *Switch, *RandomBranch, *Sequence,
		*CheckVariable, *CheckVariableMulti, *CheckParam, *CheckItem:
		return Done(resolveEdge(ctx, n, p))

	case *Move:
		if !act.Started {
			h, err := rt.Stage.Actors.Move(p.Actor, p.To, p.Speed)
			if err != nil {
				logger.Warn("move failed, skipping action", "node", n.Name, "actor", p.Actor, "error", err)
				return Done(n.Next)
			}
			act.Started = true
			act.Handle = h
			if h == effect.NoHandle {
				return Done(n.Next)
			}
			return Running(pollDelay)
		}
		if rt.Stage.Actors.Poll(act.Handle) {
			return Done(n.Next)
		}
		return Running(pollDelay)

	case *Teleport:
		if err := rt.Stage.Actors.Place(p.Actor, p.To); err != nil {
			logger.Warn("teleport failed, skipping action", "node", n.Name, "actor", p.Actor, "error", err)
		}
		return Done(n.Next)

	case *Face:
		if err := rt.Stage.Actors.Face(p.Actor, p.Toward); err != nil {
			logger.Warn("face failed, skipping action", "node", n.Name, "actor", p.Actor, "error", err)
		}
		return Done(n.Next)

	case *Say:
		return runSpeech(ctx, n, act, rt, func() (effect.Handle, error) {
			return rt.Stage.Speech.Say(p.Actor, p.Line)
		}, p.WaitUntilDone)

	case *Narrate:
		return runSpeech(ctx, n, act, rt, func() (effect.Handle, error) {
			return rt.Stage.Speech.Narrate(p.Line)
		}, p.WaitUntilDone)

	case *SetVariable:
		rt.Stage.Variables.Write(p.Name, p.Value)
		return Done(n.Next)

	case *ToggleVariable:
		current := false
		if v, ok := rt.Stage.Variables.Read(p.Name); ok {
			if b, err := value.AsBool(v); err == nil {
				current = b
			}
		}
		rt.Stage.Variables.Write(p.Name, cty.BoolVal(!current))
		return Done(n.Next)

	case *SetParam:
		if err := rt.Params.AssignNamed(p.Name, p.Value); err != nil {
			logger.Warn("parameter assignment failed, skipping action", "node", n.Name, "error", err)
		}
		return Done(n.Next)

	case *AddItem:
		rt.Stage.Inventory.Add(p.Item, p.Count)
		return Done(n.Next)

	case *RemoveItem:
		rt.Stage.Inventory.Remove(p.Item, p.Count)
		return Done(n.Next)

	case *FadeScene:
		if !act.Started {
			h, err := rt.Stage.Scene.Fade(p.Out, p.Duration)
			if err != nil {
				logger.Warn("fade failed, skipping action", "node", n.Name, "error", err)
				return Done(n.Next)
			}
			act.Started = true
			act.Handle = h
			if h == effect.NoHandle {
				return Done(n.Next)
			}
			return Running(pollDelay)
		}
		if rt.Stage.Scene.Poll(act.Handle) {
			return Done(n.Next)
		}
		return Running(pollDelay)

	case *SetVisible:
		if err := rt.Stage.Scene.SetVisible(p.Object, p.Visible); err != nil {
			logger.Warn("visibility change failed, skipping action", "node", n.Name, "object", p.Object, "error", err)
		}
		return Done(n.Next)

	case *Cue:
		if !act.Started {
			h, err := rt.Lists.Invoke(ctx, p.List, p.Overrides, p.Parallel)
			if err != nil {
				logger.Warn("list invocation failed, skipping action", "node", n.Name, "list", p.List, "error", err)
				return Done(n.Next)
			}
			act.Started = true
			if !p.WaitUntilDone {
				return Done(n.Next)
			}
			act.Child = h
			return Running(pollDelay)
		}
		if act.Child == nil || act.Child.Finished() {
			return Done(n.Next)
		}
		return Running(pollDelay)

	case *EndOther:
		rt.Lists.EndOther(ctx, p.List)
		return Done(n.Next)

	default:
		logger.Warn("unknown action payload, treating as no-op", "node", n.Name, "kind", n.Kind)
		return Done(n.Next)
	}
}

// runSpeech shares the start/poll shape of Say and Narrate.
func runSpeech(ctx context.Context, n *Node, act *Activation, rt *Runtime, start func() (effect.Handle, error), wait bool) Result {
	if !act.Started {
		h, err := start()
		if err != nil {
			ctxlog.FromContext(ctx).Warn("speech failed, skipping action", "node", n.Name, "error", err)
			return Done(n.Next)
		}
		act.Started = true
		if !wait || h == effect.NoHandle {
			return Done(n.Next)
		}
		act.Handle = h
		return Running(pollDelay)
	}
	if rt.Stage.Speech.Poll(act.Handle) {
		return Done(n.Next)
	}
	return Running(pollDelay)
}

// Skip applies the node's end state instantly, without per-frame effects.
// For every kind this must leave the stage in a state equivalent to what Run
// would have converged to.
func Skip(ctx context.Context, n *Node, act *Activation, rt *Runtime) {
	logger := ctxlog.FromContext(ctx)
	p := act.payload(ctx, n, rt)
	if p == nil {
		return
	}

	switch p := p.(type) {
	case *Comment, *Wait, *StopList, *Jump, *Branch, *Switch, *RandomBranch,
		*Sequence, *CheckVariable, *CheckVariableMulti, *CheckParam, *CheckItem:
		// No external effect.

	case *Move:
		if err := rt.Stage.Actors.Place(p.Actor, p.To); err != nil {
			logger.Warn("skip: place failed", "node", n.Name, "actor", p.Actor, "error", err)
		}

	case *Teleport:
		if err := rt.Stage.Actors.Place(p.Actor, p.To); err != nil {
			logger.Warn("skip: place failed", "node", n.Name, "actor", p.Actor, "error", err)
		}

	case *Face:
		if err := rt.Stage.Actors.Face(p.Actor, p.Toward); err != nil {
			logger.Warn("skip: face failed", "node", n.Name, "actor", p.Actor, "error", err)
		}

	case *Say:
		rt.Stage.Speech.MarkSeen(p.Actor, p.Line)

	case *Narrate:
		rt.Stage.Speech.MarkSeen("", p.Line)

	case *SetVariable:
		rt.Stage.Variables.Write(p.Name, p.Value)

	case *ToggleVariable:
		current := false
		if v, ok := rt.Stage.Variables.Read(p.Name); ok {
			if b, err := value.AsBool(v); err == nil {
				current = b
			}
		}
		rt.Stage.Variables.Write(p.Name, cty.BoolVal(!current))

	case *SetParam:
		if err := rt.Params.AssignNamed(p.Name, p.Value); err != nil {
			logger.Warn("skip: parameter assignment failed", "node", n.Name, "error", err)
		}

	case *AddItem:
		rt.Stage.Inventory.Add(p.Item, p.Count)

	case *RemoveItem:
		rt.Stage.Inventory.Remove(p.Item, p.Count)

	case *FadeScene:
		rt.Stage.Scene.SetFaded(p.Out)

	case *SetVisible:
		if err := rt.Stage.Scene.SetVisible(p.Object, p.Visible); err != nil {
			logger.Warn("skip: visibility change failed", "node", n.Name, "object", p.Object, "error", err)
		}

	case *Cue:
		// Not skippable in the bypass sense: the child must run its own
		// fast-forward so its effects still land.
		child := act.Child
		if child == nil {
			h, err := rt.Lists.Invoke(ctx, p.List, p.Overrides, p.Parallel)
			if err != nil {
				logger.Warn("skip: list invocation failed", "node", n.Name, "list", p.List, "error", err)
				return
			}
			child = h
		}
		child.SkipToEnd(ctx)

	case *EndOther:
		rt.Lists.EndOther(ctx, p.List)

	default:
		logger.Warn("skip: unknown action payload", "node", n.Name, "kind", n.Kind)
	}
}

// ResolveEdge computes the successor edge for a completed node. The skip path
// calls it after Skip; the run path reaches it through resolveEdge inside Run.
func ResolveEdge(ctx context.Context, n *Node, act *Activation, rt *Runtime) Edge {
	p := act.payload(ctx, n, rt)
	if p == nil {
		return n.Next
	}
	return resolveEdge(ctx, n, p)
}

func resolveEdge(ctx context.Context, n *Node, p Payload) Edge {
	switch p := p.(type) {
	case *StopList:
		return StopEdge
	case *Branch:
		return n.SocketEdge(ctx, boolSelector(p.Take))
	case *Switch:
		return n.SocketEdge(ctx, p.Selector)
	case *RandomBranch:
		return n.SocketEdge(ctx, p.Picked)
	case *Sequence:
		return n.SocketEdge(ctx, n.SequenceNext(p.Loop))
	case *CheckVariable:
		return n.SocketEdge(ctx, boolSelector(p.Take))
	case *CheckVariableMulti:
		return n.SocketEdge(ctx, p.Selector)
	case *CheckParam:
		return n.SocketEdge(ctx, boolSelector(p.Take))
	case *CheckItem:
		return n.SocketEdge(ctx, boolSelector(p.Have))
	default:
		return n.Next
	}
}

// BranchTarget returns the socket selector a branching node's bound payload
// currently resolves to. It is a pure read: calling it repeatedly before the
// underlying state changes yields the same selector, including for Sequence,
// which only advances its counter when an edge is actually followed.
func BranchTarget(n *Node, p Payload) (int, bool) {
	switch p := p.(type) {
	case *Branch:
		return boolSelector(p.Take), true
	case *Switch:
		return p.Selector, true
	case *RandomBranch:
		return p.Picked, true
	case *Sequence:
		return n.SequencePeek(), true
	case *CheckVariable:
		return boolSelector(p.Take), true
	case *CheckVariableMulti:
		return p.Selector, true
	case *CheckParam:
		return boolSelector(p.Take), true
	case *CheckItem:
		return boolSelector(p.Have), true
	default:
		return 0, false
	}
}

// boolSelector maps a boolean outcome onto socket order: true is socket 0,
// false is socket 1.
func boolSelector(take bool) int {
	if take {
		return 0
	}
	return 1
}
