package node

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stagecue/internal/effect"
	"github.com/vk/stagecue/internal/effect/sim"
	"github.com/vk/stagecue/internal/value"
)

// fakeInvoker records invocation calls for cue and end-other dispatch tests.
type fakeInvoker struct {
	invoked  []string
	ended    []string
	handle   *fakeHandle
	invokeErr error
}

type fakeHandle struct {
	finished bool
	skipped  bool
}

func (h *fakeHandle) Finished() bool                { return h.finished }
func (h *fakeHandle) SkipToEnd(ctx context.Context) { h.skipped = true; h.finished = true }

func (f *fakeInvoker) Invoke(_ context.Context, listID string, _ []Override, _ bool) (InvokeHandle, error) {
	f.invoked = append(f.invoked, listID)
	if f.invokeErr != nil {
		return nil, f.invokeErr
	}
	return f.handle, nil
}

func (f *fakeInvoker) EndOther(_ context.Context, listID string) {
	f.ended = append(f.ended, listID)
}

func (f *fakeInvoker) IsRunning(string) bool { return false }

func testRuntime(t *testing.T) (*Runtime, *sim.Stage, *fakeInvoker) {
	t.Helper()
	stage := sim.New()
	stage.AddActor("reba", effect.Position{})
	set, err := value.NewSet([]value.Param{{ID: 1, Name: "x", Type: value.Int}})
	require.NoError(t, err)
	inv := &fakeInvoker{handle: &fakeHandle{}}
	return &Runtime{
		Stage:  stage.Port(),
		Params: value.NewStore(set),
		Lists:  inv,
		Rand:   rand.New(rand.NewSource(1)),
	}, stage, inv
}

func payloadNode(kind string, p Payload) *Node {
	return &Node{
		Name: kind,
		Kind: kind,
		Next: ContinueEdge,
		Bind: func(context.Context, *Runtime) Payload { return p },
	}
}

func runOnce(t *testing.T, n *Node, act *Activation, rt *Runtime) Result {
	t.Helper()
	return Run(context.Background(), n, act, rt)
}

func TestRunInstantKinds(t *testing.T) {
	rt, stage, _ := testRuntime(t)

	t.Run("comment", func(t *testing.T) {
		res := runOnce(t, payloadNode("comment", &Comment{Text: "note"}), &Activation{}, rt)
		edge, done := res.Finished()
		require.True(t, done)
		assert.Equal(t, ContinueEdge, edge)
	})

	t.Run("set_var", func(t *testing.T) {
		n := payloadNode("set_var", &SetVariable{Name: "flag", Value: cty.True})
		_, done := runOnce(t, n, &Activation{}, rt).Finished()
		require.True(t, done)
		v, ok := stage.Read("flag")
		require.True(t, ok)
		assert.Equal(t, cty.True, v)
	})

	t.Run("toggle_var inverts and defaults missing to false", func(t *testing.T) {
		n := payloadNode("toggle_var", &ToggleVariable{Name: "fresh"})
		runOnce(t, n, &Activation{}, rt)
		v, _ := stage.Read("fresh")
		assert.Equal(t, cty.True, v)
		runOnce(t, n, &Activation{}, rt)
		v, _ = stage.Read("fresh")
		assert.Equal(t, cty.False, v)
	})

	t.Run("inventory", func(t *testing.T) {
		runOnce(t, payloadNode("add_item", &AddItem{Item: "key", Count: 2}), &Activation{}, rt)
		assert.Equal(t, 2, stage.Count("key"))
		runOnce(t, payloadNode("remove_item", &RemoveItem{Item: "key", Count: 1}), &Activation{}, rt)
		assert.Equal(t, 1, stage.Count("key"))
	})

	t.Run("set_param", func(t *testing.T) {
		runOnce(t, payloadNode("set_param", &SetParam{Name: "x", Value: cty.NumberIntVal(5)}), &Activation{}, rt)
		v, ok := rt.Params.GetNamed("x")
		require.True(t, ok)
		assert.Equal(t, cty.NumberIntVal(5), v)
	})
}

func TestRunWait(t *testing.T) {
	rt, _, _ := testRuntime(t)

	t.Run("suspends for the authored delay", func(t *testing.T) {
		n := payloadNode("wait", &Wait{Seconds: 1.5})
		act := &Activation{}
		res := runOnce(t, n, act, rt)
		_, done := res.Finished()
		require.False(t, done)
		assert.Equal(t, 1.5, res.Delay())

		_, done = runOnce(t, n, act, rt).Finished()
		assert.True(t, done)
	})

	t.Run("zero seconds is instant", func(t *testing.T) {
		_, done := runOnce(t, payloadNode("wait", &Wait{Seconds: 0}), &Activation{}, rt).Finished()
		assert.True(t, done)
	})
}

func TestRunMove(t *testing.T) {
	rt, stage, _ := testRuntime(t)
	dest := effect.Position{X: 10}
	n := payloadNode("move", &Move{Actor: "reba", To: dest, Speed: 5})
	act := &Activation{}

	_, done := runOnce(t, n, act, rt).Finished()
	require.False(t, done, "walk takes time")

	// One second at speed 5 covers half the distance.
	stage.Advance(1)
	_, done = runOnce(t, n, act, rt).Finished()
	require.False(t, done)

	stage.Advance(1)
	_, done = runOnce(t, n, act, rt).Finished()
	require.True(t, done)

	pos, _ := stage.ActorPosition("reba")
	assert.Equal(t, dest, pos)
}

func TestRunMoveMissingActorDegrades(t *testing.T) {
	rt, _, _ := testRuntime(t)
	n := payloadNode("move", &Move{Actor: "ghost", To: effect.Position{X: 1}, Speed: 1})
	edge, done := runOnce(t, n, &Activation{}, rt).Finished()
	require.True(t, done, "a misconfigured action must not stall the list")
	assert.Equal(t, ContinueEdge, edge)
}

func TestRunSay(t *testing.T) {
	rt, stage, _ := testRuntime(t)

	t.Run("waiting line blocks until playback ends", func(t *testing.T) {
		n := payloadNode("say", &Say{Actor: "reba", Line: "hi", WaitUntilDone: true})
		act := &Activation{}
		_, done := runOnce(t, n, act, rt).Finished()
		require.False(t, done)
		stage.Advance(1)
		_, done = runOnce(t, n, act, rt).Finished()
		assert.True(t, done)
	})

	t.Run("non-waiting line is instant", func(t *testing.T) {
		n := payloadNode("say", &Say{Actor: "reba", Line: "hi", WaitUntilDone: false})
		_, done := runOnce(t, n, &Activation{}, rt).Finished()
		assert.True(t, done)
	})
}

func TestRunCue(t *testing.T) {
	t.Run("waits for the child", func(t *testing.T) {
		rt, _, inv := testRuntime(t)
		n := payloadNode("cue", &Cue{List: "child", WaitUntilDone: true})
		act := &Activation{}

		_, done := runOnce(t, n, act, rt).Finished()
		require.False(t, done)
		assert.Equal(t, []string{"child"}, inv.invoked)

		inv.handle.finished = true
		_, done = runOnce(t, n, act, rt).Finished()
		assert.True(t, done)
	})

	t.Run("fire and forget", func(t *testing.T) {
		rt, _, inv := testRuntime(t)
		n := payloadNode("cue", &Cue{List: "child", WaitUntilDone: false})
		_, done := runOnce(t, n, &Activation{}, rt).Finished()
		assert.True(t, done)
		assert.Equal(t, []string{"child"}, inv.invoked)
	})
}

func TestRunEndOther(t *testing.T) {
	rt, _, inv := testRuntime(t)
	_, done := runOnce(t, payloadNode("end_other", &EndOther{List: "bg"}), &Activation{}, rt).Finished()
	require.True(t, done)
	assert.Equal(t, []string{"bg"}, inv.ended)
}

func TestSkipEndStates(t *testing.T) {
	ctx := context.Background()

	t.Run("move lands on the destination", func(t *testing.T) {
		rt, stage, _ := testRuntime(t)
		dest := effect.Position{X: 10, Z: 4}
		Skip(ctx, payloadNode("move", &Move{Actor: "reba", To: dest, Speed: 1}), &Activation{}, rt)
		pos, _ := stage.ActorPosition("reba")
		assert.Equal(t, dest, pos)
	})

	t.Run("say marks the line seen without playing it", func(t *testing.T) {
		rt, stage, _ := testRuntime(t)
		Skip(ctx, payloadNode("say", &Say{Actor: "reba", Line: "hi", WaitUntilDone: true}), &Activation{}, rt)
		assert.True(t, stage.Seen("reba", "hi"))
		assert.Empty(t, stage.Transcript())
	})

	t.Run("fade applies the end state", func(t *testing.T) {
		rt, stage, _ := testRuntime(t)
		Skip(ctx, payloadNode("fade", &FadeScene{Out: true, Duration: 3}), &Activation{}, rt)
		assert.True(t, stage.FadedOut())
	})

	t.Run("waiting cue fast-forwards the child", func(t *testing.T) {
		rt, _, inv := testRuntime(t)
		Skip(ctx, payloadNode("cue", &Cue{List: "child", WaitUntilDone: true}), &Activation{}, rt)
		assert.Equal(t, []string{"child"}, inv.invoked)
		assert.True(t, inv.handle.skipped)
	})

	t.Run("already-started cue skips its live child", func(t *testing.T) {
		rt, _, inv := testRuntime(t)
		n := payloadNode("cue", &Cue{List: "child", WaitUntilDone: true})
		act := &Activation{}
		runOnce(t, n, act, rt)
		Skip(ctx, n, act, rt)
		assert.Equal(t, []string{"child"}, inv.invoked, "the child must not start twice")
		assert.True(t, inv.handle.skipped)
	})
}
