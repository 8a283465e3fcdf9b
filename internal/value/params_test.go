package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func testSet(t *testing.T) *Set {
	t.Helper()
	s, err := NewSet([]Param{
		{ID: 1, Name: "greeting", Type: String, Default: cty.StringVal("hi")},
		{ID: 7, Name: "count", Type: Int},
		{ID: 3, Name: "armed", Type: Bool, Default: cty.True},
	})
	require.NoError(t, err)
	return s
}

func TestNewSetValidation(t *testing.T) {
	t.Run("duplicate id", func(t *testing.T) {
		_, err := NewSet([]Param{
			{ID: 1, Name: "a", Type: Int},
			{ID: 1, Name: "b", Type: Int},
		})
		assert.ErrorContains(t, err, "duplicate parameter id")
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := NewSet([]Param{
			{ID: 1, Name: "a", Type: Int},
			{ID: 2, Name: "a", Type: Int},
		})
		assert.ErrorContains(t, err, "duplicate parameter name")
	})

	t.Run("missing default becomes type zero", func(t *testing.T) {
		s := testSet(t)
		p, ok := s.ByName("count")
		require.True(t, ok)
		assert.Equal(t, cty.Zero, p.Default)
	})
}

func TestSetLookup(t *testing.T) {
	s := testSet(t)

	p, ok := s.ByID(7)
	require.True(t, ok)
	assert.Equal(t, "count", p.Name)

	p, ok = s.ByName("armed")
	require.True(t, ok)
	assert.Equal(t, 3, p.ID)

	_, ok = s.ByID(99)
	assert.False(t, ok)

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, "greeting", all[0].Name)
	assert.Equal(t, 3, s.Len())
}

func TestStoreDefaultsAndAssign(t *testing.T) {
	st := NewStore(testSet(t))

	v, ok := st.Get(1)
	require.True(t, ok)
	assert.Equal(t, cty.StringVal("hi"), v)

	// Assignment converts to the slot's declared type.
	require.NoError(t, st.Assign(7, cty.NumberFloatVal(4.2)))
	v, _ = st.Get(7)
	assert.Equal(t, cty.NumberIntVal(4), v)

	// String slots take anything.
	require.NoError(t, st.AssignNamed("greeting", cty.NumberIntVal(9)))
	v, _ = st.GetNamed("greeting")
	assert.Equal(t, cty.StringVal("9"), v)

	assert.ErrorContains(t, st.Assign(99, cty.True), "no parameter with id")
	assert.ErrorContains(t, st.AssignNamed("nope", cty.True), "no parameter named")
	assert.ErrorContains(t, st.Assign(7, cty.StringVal("words")), "cannot use")
}

func TestStoreClone(t *testing.T) {
	st := NewStore(testSet(t))
	require.NoError(t, st.Assign(7, cty.NumberIntVal(5)))

	clone := st.Clone()
	require.NoError(t, clone.Assign(7, cty.NumberIntVal(100)))

	v, _ := st.Get(7)
	assert.Equal(t, cty.NumberIntVal(5), v, "clone writes must not leak back")
	v, _ = clone.Get(7)
	assert.Equal(t, cty.NumberIntVal(100), v)
}

func TestStoreNamed(t *testing.T) {
	st := NewStore(testSet(t))
	named := st.Named()
	assert.Equal(t, map[string]cty.Value{
		"greeting": cty.StringVal("hi"),
		"count":    cty.Zero,
		"armed":    cty.True,
	}, named)
}
