package list

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stagecue/internal/effect"
	"github.com/vk/stagecue/internal/effect/sim"
	"github.com/vk/stagecue/internal/node"
	"github.com/vk/stagecue/internal/value"
)

func payloadNode(name string, p node.Payload) *node.Node {
	return &node.Node{
		Name: name,
		Kind: name,
		Next: node.ContinueEdge,
		Bind: func(context.Context, *node.Runtime) node.Payload { return p },
	}
}

func indexNodes(nodes []*node.Node) []*node.Node {
	for i, n := range nodes {
		n.Index = i
	}
	return nodes
}

func newTestList(id string, nodes []*node.Node, params *value.Set) *List {
	return New(id, indexNodes(nodes), params)
}

func newTestInstance(t *testing.T, l *List) (*Instance, *sim.Stage) {
	t.Helper()
	stage := sim.New()
	stage.AddActor("reba", effect.Position{})
	return NewInstance(l, 1, stage.Port(), nil, rand.New(rand.NewSource(1))), stage
}

func TestStartValidation(t *testing.T) {
	l := newTestList("a", []*node.Node{payloadNode("c", &node.Comment{})}, nil)
	in, _ := newTestInstance(t, l)
	ctx := context.Background()

	assert.ErrorContains(t, in.Start(ctx, -1, nil), "out of range")
	assert.ErrorContains(t, in.Start(ctx, 1, nil), "out of range")
	require.NoError(t, in.Start(ctx, 0, nil))
	assert.Equal(t, Running, in.State())
	assert.Equal(t, "a#1", in.Label())
}

func TestTickChainsInstantNodes(t *testing.T) {
	l := newTestList("chain", []*node.Node{
		payloadNode("one", &node.Comment{}),
		payloadNode("two", &node.AddItem{Item: "coin", Count: 1}),
		payloadNode("three", &node.AddItem{Item: "coin", Count: 1}),
	}, nil)
	in, stage := newTestInstance(t, l)
	ctx := context.Background()

	require.NoError(t, in.Start(ctx, 0, nil))
	in.Tick(ctx, 1.0/60)

	assert.Equal(t, Finished, in.State())
	assert.Equal(t, 2, stage.Count("coin"), "instant nodes chain within one frame")
}

func TestTickSuspension(t *testing.T) {
	l := newTestList("waiting", []*node.Node{
		payloadNode("pause", &node.Wait{Seconds: 0.1}),
		payloadNode("after", &node.AddItem{Item: "coin", Count: 1}),
	}, nil)
	in, stage := newTestInstance(t, l)
	ctx := context.Background()

	require.NoError(t, in.Start(ctx, 0, nil))
	in.Tick(ctx, 0.05)
	assert.Equal(t, Suspended, in.State())
	assert.Equal(t, 0, stage.Count("coin"))

	in.Tick(ctx, 0.04)
	assert.Equal(t, Suspended, in.State(), "delay not yet elapsed")

	in.Tick(ctx, 0.04)
	assert.Equal(t, Finished, in.State())
	assert.Equal(t, 1, stage.Count("coin"))
}

func TestStopEdgeEndsList(t *testing.T) {
	l := newTestList("stopper", []*node.Node{
		payloadNode("halt", &node.StopList{}),
		payloadNode("unreached", &node.AddItem{Item: "coin", Count: 1}),
	}, nil)
	in, stage := newTestInstance(t, l)
	ctx := context.Background()

	require.NoError(t, in.Start(ctx, 0, nil))
	in.Tick(ctx, 1.0/60)

	assert.Equal(t, Finished, in.State())
	assert.Equal(t, 0, stage.Count("coin"))
}

func TestGotoEdge(t *testing.T) {
	jump := payloadNode("skip-two", &node.Jump{})
	jump.Next = node.GotoEdge(2)
	l := newTestList("jumper", []*node.Node{
		jump,
		payloadNode("skipped", &node.AddItem{Item: "never", Count: 1}),
		payloadNode("landed", &node.AddItem{Item: "coin", Count: 1}),
	}, nil)
	in, stage := newTestInstance(t, l)
	ctx := context.Background()

	require.NoError(t, in.Start(ctx, 0, nil))
	in.Tick(ctx, 1.0/60)

	assert.Equal(t, 0, stage.Count("never"))
	assert.Equal(t, 1, stage.Count("coin"))
}

func TestGotoOutOfRangeStops(t *testing.T) {
	jump := payloadNode("dangling", &node.Jump{})
	jump.Next = node.GotoEdge(99)
	l := newTestList("jumper", []*node.Node{jump}, nil)
	in, _ := newTestInstance(t, l)
	ctx := context.Background()

	require.NoError(t, in.Start(ctx, 0, nil))
	in.Tick(ctx, 1.0/60)
	assert.Equal(t, Finished, in.State())
}

func TestBranchingWithoutSocketsStops(t *testing.T) {
	n := payloadNode("empty", &node.Branch{Take: true})
	n.Branching = true
	l := newTestList("nosockets", []*node.Node{n}, nil)
	in, _ := newTestInstance(t, l)
	ctx := context.Background()

	require.NoError(t, in.Start(ctx, 0, nil))
	in.Tick(ctx, 1.0/60)
	assert.Equal(t, Finished, in.State())
}

func TestForceFinish(t *testing.T) {
	l := newTestList("w", []*node.Node{payloadNode("pause", &node.Wait{Seconds: 10})}, nil)
	in, _ := newTestInstance(t, l)
	ctx := context.Background()

	t.Run("idle force-finish is a clean finish", func(t *testing.T) {
		in.ForceFinish(ctx)
		assert.Equal(t, Finished, in.State())
	})

	t.Run("live run is aborted", func(t *testing.T) {
		require.NoError(t, in.Start(ctx, 0, nil))
		in.Tick(ctx, 1.0/60)
		require.Equal(t, Suspended, in.State())
		in.ForceFinish(ctx)
		assert.Equal(t, Aborted, in.State())
		assert.True(t, in.Finished())
	})
}

func TestRestartForcesFinishFirst(t *testing.T) {
	l := newTestList("w", []*node.Node{
		payloadNode("pause", &node.Wait{Seconds: 10}),
	}, nil)
	in, _ := newTestInstance(t, l)
	ctx := context.Background()

	require.NoError(t, in.Start(ctx, 0, nil))
	in.Tick(ctx, 1.0/60)
	require.Equal(t, Suspended, in.State())

	require.NoError(t, in.Start(ctx, 0, nil))
	assert.Equal(t, Running, in.State())
	assert.Equal(t, 0, in.Cursor())
}

func paramSet(t *testing.T) *value.Set {
	t.Helper()
	s, err := value.NewSet([]value.Param{
		{ID: 1, Name: "mood", Type: value.String, Default: cty.StringVal("calm")},
	})
	require.NoError(t, err)
	return s
}

func TestStartOverrides(t *testing.T) {
	l := newTestList("p", []*node.Node{payloadNode("c", &node.Comment{})}, paramSet(t))
	in, _ := newTestInstance(t, l)
	ctx := context.Background()

	t.Run("override replaces the default", func(t *testing.T) {
		require.NoError(t, in.Start(ctx, 0, []node.Override{{SlotID: 1, Value: cty.StringVal("angry")}}))
		v, ok := in.Params().GetNamed("mood")
		require.True(t, ok)
		assert.Equal(t, cty.StringVal("angry"), v)
	})

	t.Run("unknown slot is dropped, default kept", func(t *testing.T) {
		require.NoError(t, in.Start(ctx, 0, []node.Override{{SlotID: 42, Value: cty.StringVal("angry")}}))
		v, _ := in.Params().GetNamed("mood")
		assert.Equal(t, cty.StringVal("calm"), v)
	})
}

func TestSyncValuesSharesTemplateStore(t *testing.T) {
	ctx := context.Background()

	t.Run("private copy by default", func(t *testing.T) {
		l := newTestList("p", []*node.Node{
			payloadNode("set", &node.SetParam{Name: "mood", Value: cty.StringVal("angry")}),
		}, paramSet(t))
		in, _ := newTestInstance(t, l)
		require.NoError(t, in.Start(ctx, 0, nil))
		in.Tick(ctx, 1.0/60)

		v, _ := l.TemplateStore().GetNamed("mood")
		assert.Equal(t, cty.StringVal("calm"), v, "run writes must not touch the template")
	})

	t.Run("synced list writes through", func(t *testing.T) {
		l := newTestList("p", []*node.Node{
			payloadNode("set", &node.SetParam{Name: "mood", Value: cty.StringVal("angry")}),
		}, paramSet(t))
		l.SyncValues = true
		in, _ := newTestInstance(t, l)
		require.NoError(t, in.Start(ctx, 0, nil))
		in.Tick(ctx, 1.0/60)

		v, _ := l.TemplateStore().GetNamed("mood")
		assert.Equal(t, cty.StringVal("angry"), v)
	})
}

// effectfulNodes is a list touching every effect family, used to compare a
// ticked run against a fast-forwarded one.
func effectfulNodes() []*node.Node {
	branch := payloadNode("fork", &node.Branch{Take: true})
	branch.Branching = true
	branch.Sockets = []node.Edge{node.GotoEdge(3), node.StopEdge}
	return []*node.Node{
		payloadNode("walk", &node.Move{Actor: "reba", To: effect.Position{X: 3}, Speed: 2}),
		payloadNode("line", &node.Say{Actor: "reba", Line: "over here", WaitUntilDone: true}),
		branch,
		payloadNode("loot", &node.AddItem{Item: "key", Count: 1}),
		payloadNode("flag", &node.SetVariable{Name: "met_reba", Value: cty.True}),
		payloadNode("fade", &node.FadeScene{Out: true, Duration: 1}),
	}
}

func TestSkipMatchesTickedRun(t *testing.T) {
	ctx := context.Background()

	ticked := newTestList("scene", effectfulNodes(), nil)
	tickedIn, tickedStage := newTestInstance(t, ticked)
	require.NoError(t, tickedIn.Start(ctx, 0, nil))
	for i := 0; i < 10000 && !tickedIn.Finished(); i++ {
		tickedStage.Advance(1.0 / 60)
		tickedIn.Tick(ctx, 1.0/60)
	}
	require.True(t, tickedIn.Finished(), "ticked run must converge")

	skipped := newTestList("scene", effectfulNodes(), nil)
	skippedIn, skippedStage := newTestInstance(t, skipped)
	require.NoError(t, skippedIn.Start(ctx, 0, nil))
	skippedIn.SkipToEnd(ctx)
	require.True(t, skippedIn.Finished())

	tickedObs := tickedStage.Observe()
	skippedObs := skippedStage.Observe()
	// The ticked run played the line; the skipped run only marked it seen.
	// Everything else must be identical.
	assert.Empty(t, cmp.Diff(tickedObs.Actors, skippedObs.Actors))
	assert.Empty(t, cmp.Diff(tickedObs.Variables, skippedObs.Variables))
	assert.Empty(t, cmp.Diff(tickedObs.Inventory, skippedObs.Inventory))
	assert.Equal(t, tickedObs.FadedOut, skippedObs.FadedOut)
	assert.True(t, skippedStage.Seen("reba", "over here"))
	assert.Empty(t, skippedStage.Transcript(), "skipped lines never play")
}

func TestSkipRespectsStopSocket(t *testing.T) {
	ctx := context.Background()
	branch := payloadNode("fork", &node.Branch{Take: false})
	branch.Branching = true
	branch.Sockets = []node.Edge{node.ContinueEdge, node.StopEdge}
	l := newTestList("s", []*node.Node{
		branch,
		payloadNode("unreached", &node.AddItem{Item: "coin", Count: 1}),
	}, nil)
	in, stage := newTestInstance(t, l)

	require.NoError(t, in.Start(ctx, 0, nil))
	in.SkipToEnd(ctx)

	assert.Equal(t, Finished, in.State())
	assert.Equal(t, 0, stage.Count("coin"), "skip follows the same edges a run would")
}

func TestRestoreAt(t *testing.T) {
	l := newTestList("r", []*node.Node{
		payloadNode("a", &node.Comment{}),
		payloadNode("b", &node.AddItem{Item: "coin", Count: 1}),
	}, paramSet(t))
	in, stage := newTestInstance(t, l)
	ctx := context.Background()

	store := value.NewStore(l.Params)
	require.NoError(t, store.AssignNamed("mood", cty.StringVal("angry")))

	require.Error(t, in.RestoreAt(5, store))
	require.NoError(t, in.RestoreAt(1, store))
	assert.Equal(t, Running, in.State())

	in.Tick(ctx, 1.0/60)
	assert.Equal(t, Finished, in.State())
	assert.Equal(t, 1, stage.Count("coin"))
	v, _ := in.Params().GetNamed("mood")
	assert.Equal(t, cty.StringVal("angry"), v)
}
