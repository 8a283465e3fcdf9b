// Package sched tracks every live list run and drives them one frame at a
// time on behalf of the host loop.
//
// The scheduler is the single owner of run lifecycles: it enforces the
// one-instance policy for non-concurrent assets, hands out sub-invocation
// handles to cue actions, and is the teardown point when a scene unloads.
// Everything is single-threaded by contract; "concurrency" here is the
// interleaving of many independently-progressing lists within one host
// thread.
package sched

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/vk/stagecue/internal/ctxlog"
	"github.com/vk/stagecue/internal/effect"
	"github.com/vk/stagecue/internal/list"
	"github.com/vk/stagecue/internal/node"
)

// Scheduler owns the registry of loaded list templates and the set of
// currently-executing instances.
type Scheduler struct {
	stage   *effect.Stage
	rng     *rand.Rand
	lists   map[string]*list.List
	order   []string
	active  []*list.Instance
	serials map[string]int
	// scene-resident lists keep one long-lived instance across restarts.
	sceneInstances map[string]*list.Instance
}

// New creates a scheduler bound to a stage. The random source drives random
// branch selection; tests pass a fixed seed.
func New(stage *effect.Stage, rng *rand.Rand) *Scheduler {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Scheduler{
		stage:          stage,
		rng:            rng,
		lists:          make(map[string]*list.List),
		serials:        make(map[string]int),
		sceneInstances: make(map[string]*list.Instance),
	}
}

// Stage returns the effect port the scheduler runs against.
func (s *Scheduler) Stage() *effect.Stage {
	return s.stage
}

// Register adds a loaded list template. Duplicate IDs are a loading bug and
// rejected.
func (s *Scheduler) Register(l *list.List) error {
	if _, exists := s.lists[l.ID]; exists {
		return fmt.Errorf("list %q already registered", l.ID)
	}
	s.lists[l.ID] = l
	s.order = append(s.order, l.ID)
	return nil
}

// Lists returns the registered list IDs in registration order.
func (s *Scheduler) Lists() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Lookup returns a registered template.
func (s *Scheduler) Lookup(id string) (*list.List, bool) {
	l, ok := s.lists[id]
	return l, ok
}

// Start begins a run of the named list at node index at.
//
// Scene lists restart their single instance; a run already in flight is
// force-finished first. A non-parallel start of an asset ends any existing
// instance before the new one registers (last-start-wins), so the second
// start's parameter values are the ones left standing. Parallel starts are
// legal only for assets that allow concurrent instances.
func (s *Scheduler) Start(ctx context.Context, listID string, at int, overrides []node.Override, parallel bool) (*list.Instance, error) {
	l, ok := s.lists[listID]
	if !ok {
		return nil, fmt.Errorf("unknown list %q", listID)
	}
	if parallel && (!l.Asset || !l.AllowConcurrent) {
		return nil, fmt.Errorf("list %q does not allow concurrent instances", listID)
	}

	if !l.Asset {
		in, ok := s.sceneInstances[listID]
		if !ok {
			in = s.newInstance(l)
			s.sceneInstances[listID] = in
		}
		if err := in.Start(ctx, at, overrides); err != nil {
			return nil, err
		}
		s.ensureRegistered(in)
		return in, nil
	}

	if !parallel {
		// Last start wins: the live run ends before the new one begins.
		// Only an explicit parallel request may stack instances, and only
		// on lists that allow it.
		s.EndOther(ctx, listID)
	}
	in := s.newInstance(l)
	if err := in.Start(ctx, at, overrides); err != nil {
		return nil, err
	}
	s.active = append(s.active, in)
	return in, nil
}

func (s *Scheduler) newInstance(l *list.List) *list.Instance {
	s.serials[l.ID]++
	return list.NewInstance(l, s.serials[l.ID], s.stage, s, s.rng)
}

func (s *Scheduler) ensureRegistered(in *list.Instance) {
	for _, a := range s.active {
		if a == in {
			return
		}
	}
	s.active = append(s.active, in)
}

// TickAll advances every active instance once, in registration order.
// Instances started during the pass (sub-invocations) are picked up by the
// same pass, so a blocking cue's child makes progress on the frame it was
// cued. Finished instances are swept afterwards.
func (s *Scheduler) TickAll(ctx context.Context, dt float64) {
	for i := 0; i < len(s.active); i++ {
		in := s.active[i]
		if in.Finished() {
			continue
		}
		in.Tick(ctx, dt)
	}
	s.sweep()
}

func (s *Scheduler) sweep() {
	live := s.active[:0]
	for _, in := range s.active {
		if !in.Finished() {
			live = append(live, in)
		}
	}
	for i := len(live); i < len(s.active); i++ {
		s.active[i] = nil
	}
	s.active = live
}

// ActiveCount returns the number of live runs.
func (s *Scheduler) ActiveCount() int {
	n := 0
	for _, in := range s.active {
		if !in.Finished() {
			n++
		}
	}
	return n
}

// IsRunning reports whether any instance of the named list is live.
func (s *Scheduler) IsRunning(listID string) bool {
	for _, in := range s.active {
		if in.List().ID == listID && !in.Finished() {
			return true
		}
	}
	return false
}

// AnyBlocking reports whether a live run belongs to a non-background list,
// which the host treats as "coarse gameplay is paused".
func (s *Scheduler) AnyBlocking() bool {
	for _, in := range s.active {
		if !in.Finished() && !in.List().Background {
			return true
		}
	}
	return false
}

// EndOther force-finishes every live instance of the named list without
// executing remaining nodes. Used for last-start-wins and for the end-other
// action.
//
// The active slice is left uncompacted here: EndOther can fire from a node
// mid-TickAll, and compacting under the tick loop's index would shift the
// next instance into the current slot and cost it its turn for the frame.
// TickAll sweeps once its pass is complete.
func (s *Scheduler) EndOther(ctx context.Context, listID string) {
	for _, in := range s.active {
		if in.List().ID == listID && !in.Finished() {
			in.ForceFinish(ctx)
		}
	}
}

// EndAll force-finishes every live run, the scene-teardown path.
func (s *Scheduler) EndAll(ctx context.Context) {
	for _, in := range s.active {
		if !in.Finished() {
			in.ForceFinish(ctx)
		}
	}
	s.sweep()
}

// Skip fast-forwards every live instance of the named list synchronously.
// Like EndOther it leaves compaction to the next TickAll or SkipAll.
func (s *Scheduler) Skip(ctx context.Context, listID string) {
	for _, in := range s.active {
		if in.List().ID == listID && !in.Finished() {
			in.SkipToEnd(ctx)
		}
	}
}

// SkipAll fast-forwards every live run, the player's skip button.
func (s *Scheduler) SkipAll(ctx context.Context) {
	// Children cued during a parent's fast-forward register and finish
	// within the same call, so one pass over the snapshot suffices.
	snapshot := make([]*list.Instance, len(s.active))
	copy(snapshot, s.active)
	for _, in := range snapshot {
		if !in.Finished() {
			in.SkipToEnd(ctx)
		}
	}
	s.sweep()
}

// Invoke implements node.Invoker for cue actions: it starts the named list
// from its first node and returns the run as a pollable handle.
func (s *Scheduler) Invoke(ctx context.Context, listID string, overrides []node.Override, parallel bool) (node.InvokeHandle, error) {
	ctxlog.FromContext(ctx).Debug("sub-list invoked", "list", listID, "parallel", parallel)
	in, err := s.Start(ctx, listID, 0, overrides, parallel)
	if err != nil {
		return nil, err
	}
	return in, nil
}
