package sched

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vk/stagecue/internal/ctxlog"
	"github.com/vk/stagecue/internal/value"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// InstanceState is the thin mid-execution record the save subsystem carries
// across a save/reload boundary: which list, where its cursor was, and its
// parameter values. The engine serializes and revives it but does not own
// how it is persisted.
type InstanceState struct {
	ListID string `json:"list_id"`
	Cursor int    `json:"cursor"`
	// Params maps slot name to the slot value in cty's JSON encoding.
	Params map[string]json.RawMessage `json:"params,omitempty"`
}

// Snapshot captures every live run. Suspension timing is intentionally not
// captured: a revived run re-polls its current node from scratch, which for
// every kind converges to the same outcome.
func (s *Scheduler) Snapshot() ([]InstanceState, error) {
	var out []InstanceState
	for _, in := range s.active {
		if in.Finished() {
			continue
		}
		st := InstanceState{
			ListID: in.List().ID,
			Cursor: in.Cursor(),
			Params: make(map[string]json.RawMessage),
		}
		for _, p := range in.List().Params.All() {
			v, ok := in.Params().Get(p.ID)
			if !ok {
				continue
			}
			raw, err := ctyjson.Marshal(v, p.Type.CtyType())
			if err != nil {
				return nil, fmt.Errorf("list %s: marshal parameter %q: %w", in.List().ID, p.Name, err)
			}
			st.Params[p.Name] = raw
		}
		out = append(out, st)
	}
	return out, nil
}

// Restore revives runs from a snapshot. Unknown lists and unknown slots are
// dropped with a warning rather than failing the load; a stale save must
// not block a scene from coming up.
func (s *Scheduler) Restore(ctx context.Context, states []InstanceState) error {
	logger := ctxlog.FromContext(ctx)
	for _, st := range states {
		l, ok := s.lists[st.ListID]
		if !ok {
			logger.Warn("snapshot references unknown list, dropping run", "list", st.ListID)
			continue
		}

		// Synced lists share the template store, so restored values land
		// where every future run reads them.
		store := value.NewStore(l.Params)
		if l.SyncValues {
			store = l.TemplateStore()
		}
		for name, raw := range st.Params {
			p, ok := l.Params.ByName(name)
			if !ok {
				logger.Warn("snapshot references unknown parameter, keeping default", "list", st.ListID, "param", name)
				continue
			}
			v, err := ctyjson.Unmarshal(raw, p.Type.CtyType())
			if err != nil {
				logger.Warn("snapshot parameter failed to decode, keeping default", "list", st.ListID, "param", name, "error", err)
				continue
			}
			if err := store.Assign(p.ID, v); err != nil {
				logger.Warn("snapshot parameter rejected, keeping default", "list", st.ListID, "param", name, "error", err)
			}
		}

		in := s.newInstance(l)
		if err := in.RestoreAt(st.Cursor, store); err != nil {
			logger.Warn("snapshot cursor out of range, dropping run", "list", st.ListID, "cursor", st.Cursor)
			continue
		}
		if !l.Asset {
			if prev, ok := s.sceneInstances[st.ListID]; ok && !prev.Finished() {
				prev.ForceFinish(ctx)
			}
			s.sceneInstances[st.ListID] = in
		}
		s.active = append(s.active, in)
	}
	return nil
}
