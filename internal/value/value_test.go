package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestParseType(t *testing.T) {
	t.Run("known keywords", func(t *testing.T) {
		for keyword, want := range map[string]Type{
			"bool":     Bool,
			"int":      Int,
			"float":    Float,
			"string":   String,
			"vector3":  Vector3,
			"object":   ObjectRef,
			"asset":    AssetRef,
			"variable": VariableRef,
			"item":     ItemRef,
		} {
			got, err := ParseType(keyword)
			require.NoError(t, err, keyword)
			assert.Equal(t, want, got, keyword)
		}
	})

	t.Run("unknown keyword", func(t *testing.T) {
		_, err := ParseType("quaternion")
		assert.ErrorContains(t, err, "unknown parameter type")
	})
}

func TestVec3Roundtrip(t *testing.T) {
	v := Vec3(1.5, -2, 0)
	x, y, z, err := AsVec3(v)
	require.NoError(t, err)
	assert.Equal(t, 1.5, x)
	assert.Equal(t, -2.0, y)
	assert.Equal(t, 0.0, z)

	_, _, _, err = AsVec3(cty.StringVal("nope"))
	assert.Error(t, err)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "hello", Stringify(cty.StringVal("hello")))
	assert.Equal(t, "true", Stringify(cty.True))
	assert.Equal(t, "false", Stringify(cty.False))
	assert.Equal(t, "42", Stringify(cty.NumberIntVal(42)))
	assert.Equal(t, "1.5", Stringify(cty.NumberFloatVal(1.5)))
	assert.Equal(t, "(1, 2, 3)", Stringify(Vec3(1, 2, 3)))
	assert.Equal(t, "", Stringify(cty.NullVal(cty.String)))
}

func TestConvert(t *testing.T) {
	t.Run("string slots accept any type", func(t *testing.T) {
		got, err := Convert(cty.NumberIntVal(7), String)
		require.NoError(t, err)
		assert.Equal(t, cty.StringVal("7"), got)

		got, err = Convert(cty.True, String)
		require.NoError(t, err)
		assert.Equal(t, cty.StringVal("true"), got)
	})

	t.Run("int truncates", func(t *testing.T) {
		got, err := Convert(cty.NumberFloatVal(3.9), Int)
		require.NoError(t, err)
		assert.Equal(t, cty.NumberIntVal(3), got)
	})

	t.Run("null becomes the type zero", func(t *testing.T) {
		got, err := Convert(cty.NullVal(cty.DynamicPseudoType), Bool)
		require.NoError(t, err)
		assert.Equal(t, cty.False, got)
	})

	t.Run("mismatch is an error", func(t *testing.T) {
		_, err := Convert(cty.StringVal("not a number"), Int)
		assert.Error(t, err)

		_, err = Convert(cty.NumberIntVal(1), Vector3)
		assert.Error(t, err)
	})
}

func TestTypeZero(t *testing.T) {
	assert.Equal(t, cty.False, Bool.Zero())
	assert.Equal(t, cty.StringVal(""), ItemRef.Zero())
	x, y, z, err := AsVec3(Vector3.Zero())
	require.NoError(t, err)
	assert.Zero(t, x)
	assert.Zero(t, y)
	assert.Zero(t, z)
}
