// Package value defines the typed variant values that flow between actions
// and lists: declared parameter slots, their runtime stores, and the type
// taxonomy they are checked against.
//
// Every payload is a cty.Value. This keeps the engine's value model aligned
// with the HCL documents that author it: an expression evaluates straight
// into the engine's native representation with no intermediate translation
// layer.
package value

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Type is the declared type of a parameter slot or action field.
//
// Object, asset, variable and item references are carried as stable string
// identity tokens rather than raw handles, so a reference survives a scene
// or asset reload on the host side.
type Type int

const (
	Invalid Type = iota
	Bool
	Int
	Float
	String
	Vector3
	ObjectRef   // scene object identity token
	AssetRef    // persistent asset identity token
	VariableRef // name of a global or local variable
	ItemRef     // inventory item identity token
)

var typeNames = map[Type]string{
	Bool:        "bool",
	Int:         "int",
	Float:       "float",
	String:      "string",
	Vector3:     "vector3",
	ObjectRef:   "object",
	AssetRef:    "asset",
	VariableRef: "variable",
	ItemRef:     "item",
}

// String returns the keyword used for this type in script documents.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("invalid(%d)", int(t))
}

// ParseType converts a script type keyword into a Type.
func ParseType(keyword string) (Type, error) {
	for t, name := range typeNames {
		if name == keyword {
			return t, nil
		}
	}
	return Invalid, fmt.Errorf("unknown parameter type %q", keyword)
}

// vec3Type is the wire shape of a Vector3 value.
var vec3Type = cty.Object(map[string]cty.Type{
	"x": cty.Number,
	"y": cty.Number,
	"z": cty.Number,
})

// CtyType returns the cty representation a value of this type must conform to.
func (t Type) CtyType() cty.Type {
	switch t {
	case Bool:
		return cty.Bool
	case Int, Float:
		return cty.Number
	case String, ObjectRef, AssetRef, VariableRef, ItemRef:
		return cty.String
	case Vector3:
		return vec3Type
	default:
		return cty.DynamicPseudoType
	}
}

// Zero returns the default value for a type when no literal was authored.
func (t Type) Zero() cty.Value {
	switch t {
	case Bool:
		return cty.False
	case Int, Float:
		return cty.Zero
	case String, ObjectRef, AssetRef, VariableRef, ItemRef:
		return cty.StringVal("")
	case Vector3:
		return Vec3(0, 0, 0)
	default:
		return cty.NullVal(cty.DynamicPseudoType)
	}
}

// Vec3 constructs a Vector3 value.
func Vec3(x, y, z float64) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"x": cty.NumberFloatVal(x),
		"y": cty.NumberFloatVal(y),
		"z": cty.NumberFloatVal(z),
	})
}

// AsVec3 unpacks a Vector3 value into components.
func AsVec3(v cty.Value) (x, y, z float64, err error) {
	conv, err := convert.Convert(v, vec3Type)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("value is not a vector3: %w", err)
	}
	if conv.IsNull() {
		return 0, 0, 0, fmt.Errorf("value is not a vector3: null")
	}
	x, _ = conv.GetAttr("x").AsBigFloat().Float64()
	y, _ = conv.GetAttr("y").AsBigFloat().Float64()
	z, _ = conv.GetAttr("z").AsBigFloat().Float64()
	return x, y, z, nil
}

// AsInt unpacks an integer value, truncating any fractional part.
func AsInt(v cty.Value) (int, error) {
	conv, err := convert.Convert(v, cty.Number)
	if err != nil || conv.IsNull() {
		return 0, fmt.Errorf("value is not a number")
	}
	i, _ := conv.AsBigFloat().Int64()
	return int(i), nil
}

// AsFloat unpacks a float value.
func AsFloat(v cty.Value) (float64, error) {
	conv, err := convert.Convert(v, cty.Number)
	if err != nil || conv.IsNull() {
		return 0, fmt.Errorf("value is not a number")
	}
	f, _ := conv.AsBigFloat().Float64()
	return f, nil
}

// AsBool unpacks a boolean value.
func AsBool(v cty.Value) (bool, error) {
	conv, err := convert.Convert(v, cty.Bool)
	if err != nil || conv.IsNull() {
		return false, fmt.Errorf("value is not a bool")
	}
	return conv.True(), nil
}

// AsString unpacks a string value. Unlike Stringify it does not accept
// arbitrary types.
func AsString(v cty.Value) (string, error) {
	conv, err := convert.Convert(v, cty.String)
	if err != nil || conv.IsNull() {
		return "", fmt.Errorf("value is not a string")
	}
	return conv.AsString(), nil
}

// Stringify renders any value into its display form. String slots accept
// every type this way; it is the one universal conversion in the type rules.
func Stringify(v cty.Value) string {
	if v.IsNull() {
		return ""
	}
	switch {
	case v.Type() == cty.String:
		return v.AsString()
	case v.Type() == cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	case v.Type() == cty.Number:
		return v.AsBigFloat().Text('g', -1)
	case v.Type().IsObjectType() && v.Type().HasAttribute("x"):
		x, y, z, err := AsVec3(v)
		if err == nil {
			return fmt.Sprintf("(%g, %g, %g)", x, y, z)
		}
	}
	return strings.TrimSpace(v.GoString())
}

// Convert coerces v into the declared type t. A String slot accepts any
// type's stringified form; every other mismatch is an error for the caller
// to recover from.
func Convert(v cty.Value, t Type) (cty.Value, error) {
	if v.IsNull() {
		return t.Zero(), nil
	}
	if t == String {
		return cty.StringVal(Stringify(v)), nil
	}
	conv, err := convert.Convert(v, t.CtyType())
	if err != nil {
		return cty.NilVal, fmt.Errorf("cannot use %s as %s: %w", v.Type().FriendlyName(), t, err)
	}
	if t == Int {
		i, _ := conv.AsBigFloat().Int64()
		return cty.NumberIntVal(i), nil
	}
	return conv, nil
}
