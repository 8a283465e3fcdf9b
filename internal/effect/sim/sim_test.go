package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stagecue/internal/effect"
)

func TestMoveAdvances(t *testing.T) {
	s := New()
	s.AddActor("reba", effect.Position{})

	h, err := s.Move("reba", effect.Position{X: 10}, 2)
	require.NoError(t, err)
	require.NotEqual(t, effect.NoHandle, h)
	assert.False(t, s.Poll(h))

	s.Advance(1)
	pos, ok := s.ActorPosition("reba")
	require.True(t, ok)
	assert.InDelta(t, 2, pos.X, 1e-9)
	assert.False(t, s.Poll(h))

	s.Advance(10)
	assert.True(t, s.Poll(h))
	pos, _ = s.ActorPosition("reba")
	assert.Equal(t, effect.Position{X: 10}, pos, "arrival lands exactly on the destination")
}

func TestMoveUnknownActor(t *testing.T) {
	s := New()
	_, err := s.Move("ghost", effect.Position{}, 1)
	assert.ErrorContains(t, err, "no actor")
}

func TestPlaceCompletesInFlightMove(t *testing.T) {
	s := New()
	s.AddActor("reba", effect.Position{})
	h, err := s.Move("reba", effect.Position{X: 10}, 1)
	require.NoError(t, err)

	require.NoError(t, s.Place("reba", effect.Position{X: -3}))
	assert.True(t, s.Poll(h), "place resolves the pending walk")
	pos, _ := s.ActorPosition("reba")
	assert.Equal(t, effect.Position{X: -3}, pos)

	s.Advance(5)
	pos, _ = s.ActorPosition("reba")
	assert.Equal(t, effect.Position{X: -3}, pos, "the dead walk must not keep pulling")
}

func TestSpeechPlayback(t *testing.T) {
	s := New()
	s.AddActor("reba", effect.Position{})

	h, err := s.Say("reba", "hi")
	require.NoError(t, err)
	assert.False(t, s.Poll(h))
	assert.True(t, s.Seen("reba", "hi"), "a playing line counts as shown")

	// Short lines still play for the minimum duration.
	s.Advance(0.4)
	assert.False(t, s.Poll(h))
	s.Advance(0.2)
	assert.True(t, s.Poll(h))

	transcript := s.Transcript()
	require.Len(t, transcript, 1)
	assert.Equal(t, Line{Actor: "reba", Text: "hi"}, transcript[0])
}

func TestNarrate(t *testing.T) {
	s := New()
	h, err := s.Narrate("a door creaks")
	require.NoError(t, err)
	require.NotEqual(t, effect.NoHandle, h)
	assert.True(t, s.Seen("", "a door creaks"))
}

func TestMarkSeenDoesNotPlay(t *testing.T) {
	s := New()
	s.MarkSeen("reba", "hi")
	assert.True(t, s.Seen("reba", "hi"))
	assert.Empty(t, s.Transcript())
}

func TestVariables(t *testing.T) {
	s := New()
	_, ok := s.Read("missing")
	assert.False(t, ok)

	s.Write("gold", cty.NumberIntVal(50))
	v, ok := s.Read("gold")
	require.True(t, ok)
	assert.Equal(t, cty.NumberIntVal(50), v)
}

func TestInventoryFloorsAtZero(t *testing.T) {
	s := New()
	s.Add("key", 2)
	s.Remove("key", 5)
	assert.Equal(t, 0, s.Count("key"))
}

func TestFade(t *testing.T) {
	s := New()

	t.Run("timed fade completes on schedule", func(t *testing.T) {
		h, err := s.Fade(true, 1)
		require.NoError(t, err)
		assert.False(t, s.Poll(h))
		assert.False(t, s.FadedOut())

		s.Advance(1)
		assert.True(t, s.Poll(h))
		assert.True(t, s.FadedOut())
	})

	t.Run("set faded is instant", func(t *testing.T) {
		s.SetFaded(false)
		assert.False(t, s.FadedOut())
	})
}

func TestVisibility(t *testing.T) {
	s := New()
	require.NoError(t, s.SetVisible("door", false))
	assert.False(t, s.Visible("door"))
	require.NoError(t, s.SetVisible("door", true))
	assert.True(t, s.Visible("door"))
}

func TestObserve(t *testing.T) {
	s := New()
	s.AddActor("reba", effect.Position{X: 1})
	s.Write("gold", cty.NumberIntVal(50))
	s.Add("key", 1)
	require.NoError(t, s.SetVisible("door", false))
	s.MarkSeen("reba", "hi")
	s.SetFaded(true)

	o := s.Observe()
	assert.Equal(t, effect.Position{X: 1}, o.Actors["reba"])
	assert.Equal(t, "50", o.Variables["gold"])
	assert.Equal(t, 1, o.Inventory["key"])
	assert.False(t, o.Visibility["door"])
	assert.True(t, o.FadedOut)
	assert.Len(t, o.Seen, 1)
}

func TestParseWorldAndApply(t *testing.T) {
	src := `
actors:
  reba: {x: 1, y: 0, z: 2}
variables:
  gold: 50
  met_reba: false
  title: "the manor"
inventory:
  key: 1
  dust: 0
objects:
  door: {visible: false}
`
	w, err := ParseWorld([]byte(src))
	require.NoError(t, err)

	s := New()
	require.NoError(t, w.Apply(s))

	pos, ok := s.ActorPosition("reba")
	require.True(t, ok)
	assert.Equal(t, effect.Position{X: 1, Y: 0, Z: 2}, pos)

	v, _ := s.Read("gold")
	assert.Equal(t, cty.NumberIntVal(50), v)
	v, _ = s.Read("met_reba")
	assert.Equal(t, cty.False, v)
	v, _ = s.Read("title")
	assert.Equal(t, cty.StringVal("the manor"), v)

	assert.Equal(t, 1, s.Count("key"))
	assert.Equal(t, 0, s.Count("dust"))
	assert.False(t, s.Visible("door"))
}

func TestParseWorldRejectsGarbage(t *testing.T) {
	_, err := ParseWorld([]byte("actors: [not, a, map]"))
	assert.Error(t, err)
}
