package script

import (
	"context"

	"github.com/vk/stagecue/internal/node"
	"github.com/vk/stagecue/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// socketStyle describes how a kind declares its outgoing edges.
type socketStyle int

const (
	// socketsNone kinds follow the default successor (or a goto).
	socketsNone socketStyle = iota
	// socketsBool kinds declare if_true / if_false targets.
	socketsBool
	// socketsList kinds declare an ordered sockets list.
	socketsList
)

// overrideResolver resolves a cue action's parameter overrides against the
// target list's declaration at bind time.
type overrideResolver func(ctx context.Context, rt *node.Runtime, listID string) []node.Override

// kindSpec is the authoring contract of one action kind: argument schema,
// socket style, and the payload builder the binder calls each activation.
type kindSpec struct {
	name    string
	args    []argSpec
	sockets socketStyle
	// unskippable kinds still execute during a fast-forward; today that is
	// only the waiting sub-list cue, which propagates the skip downward.
	unskippable bool
	// hasOverrides kinds accept `set` blocks for the invoked list's slots.
	hasOverrides bool
	build        func(ctx context.Context, rt *node.Runtime, b *boundArgs, ov overrideResolver) node.Payload
}

func str(s string) cty.Value { return cty.StringVal(s) }

var kinds = map[string]*kindSpec{
	"comment": {
		name: "comment",
		args: []argSpec{{name: "text", typ: value.String, def: str("")}},
		build: func(_ context.Context, _ *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			return &node.Comment{Text: b.str("text")}
		},
	},
	"wait": {
		name: "wait",
		args: []argSpec{{name: "seconds", typ: value.Float, def: cty.Zero, required: true}},
		build: func(_ context.Context, _ *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			return &node.Wait{Seconds: b.f64("seconds")}
		},
	},
	"stop": {
		name: "stop",
		build: func(_ context.Context, _ *node.Runtime, _ *boundArgs, _ overrideResolver) node.Payload {
			return &node.StopList{}
		},
	},
	"jump": {
		// The target lives in the node's goto edge; the payload is empty.
		name: "jump",
		build: func(_ context.Context, _ *node.Runtime, _ *boundArgs, _ overrideResolver) node.Payload {
			return &node.Jump{}
		},
	},
	"branch": {
		name:    "branch",
		args:    []argSpec{{name: "condition", typ: value.Bool, def: cty.False, required: true}},
		sockets: socketsBool,
		build: func(_ context.Context, _ *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			return &node.Branch{Take: b.boolean("condition")}
		},
	},
	"switch": {
		name:    "switch",
		args:    []argSpec{{name: "selector", typ: value.Int, def: cty.Zero, required: true}},
		sockets: socketsList,
		build: func(_ context.Context, _ *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			return &node.Switch{Selector: b.integer("selector")}
		},
	},
	"random": {
		name:    "random",
		args:    []argSpec{{name: "weights", listType: true, def: cty.NullVal(cty.DynamicPseudoType)}},
		sockets: socketsList,
		build: func(ctx context.Context, rt *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			return &node.RandomBranch{Picked: pickWeighted(rt, b.elems("weights"))}
		},
	},
	"sequence": {
		name:    "sequence",
		args:    []argSpec{{name: "loop", typ: value.Bool, def: cty.False}},
		sockets: socketsList,
		build: func(_ context.Context, _ *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			return &node.Sequence{Loop: b.boolean("loop")}
		},
	},
	"move": {
		name: "move",
		args: []argSpec{
			{name: "actor", typ: value.ObjectRef, def: str(""), required: true},
			{name: "to", typ: value.Vector3, def: value.Vec3(0, 0, 0), required: true},
			{name: "speed", typ: value.Float, def: cty.NumberFloatVal(1)},
		},
		build: func(_ context.Context, _ *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			return &node.Move{Actor: b.str("actor"), To: b.position("to"), Speed: b.f64("speed")}
		},
	},
	"teleport": {
		name: "teleport",
		args: []argSpec{
			{name: "actor", typ: value.ObjectRef, def: str(""), required: true},
			{name: "to", typ: value.Vector3, def: value.Vec3(0, 0, 0), required: true},
		},
		build: func(_ context.Context, _ *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			return &node.Teleport{Actor: b.str("actor"), To: b.position("to")}
		},
	},
	"face": {
		name: "face",
		args: []argSpec{
			{name: "actor", typ: value.ObjectRef, def: str(""), required: true},
			{name: "toward", typ: value.Vector3, def: value.Vec3(0, 0, 0), required: true},
		},
		build: func(_ context.Context, _ *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			return &node.Face{Actor: b.str("actor"), Toward: b.position("toward")}
		},
	},
	"say": {
		name: "say",
		args: []argSpec{
			{name: "actor", typ: value.ObjectRef, def: str(""), required: true},
			{name: "line", typ: value.String, def: str(""), required: true},
			{name: "wait", typ: value.Bool, def: cty.True},
		},
		build: func(_ context.Context, _ *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			return &node.Say{Actor: b.str("actor"), Line: b.str("line"), WaitUntilDone: b.boolean("wait")}
		},
	},
	"narrate": {
		name: "narrate",
		args: []argSpec{
			{name: "line", typ: value.String, def: str(""), required: true},
			{name: "wait", typ: value.Bool, def: cty.True},
		},
		build: func(_ context.Context, _ *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			return &node.Narrate{Line: b.str("line"), WaitUntilDone: b.boolean("wait")}
		},
	},
	"set_var": {
		name: "set_var",
		args: []argSpec{
			{name: "variable", typ: value.VariableRef, def: str(""), required: true},
			{name: "value", anyType: true, def: cty.NullVal(cty.DynamicPseudoType), required: true},
		},
		build: func(_ context.Context, _ *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			return &node.SetVariable{Name: b.str("variable"), Value: b.raw("value")}
		},
	},
	"toggle_var": {
		name: "toggle_var",
		args: []argSpec{{name: "variable", typ: value.VariableRef, def: str(""), required: true}},
		build: func(_ context.Context, _ *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			return &node.ToggleVariable{Name: b.str("variable")}
		},
	},
	"check_var": {
		name: "check_var",
		args: []argSpec{
			{name: "variable", typ: value.VariableRef, def: str(""), required: true},
			{name: "equals", anyType: true, def: cty.NullVal(cty.DynamicPseudoType), required: true},
		},
		sockets: socketsBool,
		build: func(_ context.Context, rt *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			name := b.str("variable")
			stored, ok := rt.Stage.Variables.Read(name)
			take := ok && valuesEqual(stored, b.raw("equals"))
			return &node.CheckVariable{Name: name, Take: take}
		},
	},
	"check_var_multi": {
		name: "check_var_multi",
		args: []argSpec{
			{name: "variable", typ: value.VariableRef, def: str(""), required: true},
			{name: "cases", listType: true, def: cty.NullVal(cty.DynamicPseudoType), required: true},
		},
		sockets: socketsList,
		build: func(_ context.Context, rt *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			name := b.str("variable")
			cases := b.elems("cases")
			selector := len(cases)
			if stored, ok := rt.Stage.Variables.Read(name); ok {
				for i, c := range cases {
					if valuesEqual(stored, c) {
						selector = i
						break
					}
				}
			}
			return &node.CheckVariableMulti{Name: name, Selector: selector}
		},
	},
	"set_param": {
		name: "set_param",
		args: []argSpec{
			{name: "param", typ: value.String, def: str(""), required: true},
			{name: "value", anyType: true, def: cty.NullVal(cty.DynamicPseudoType), required: true},
		},
		build: func(_ context.Context, _ *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			return &node.SetParam{Name: b.str("param"), Value: b.raw("value")}
		},
	},
	"check_param": {
		name: "check_param",
		args: []argSpec{
			{name: "param", typ: value.String, def: str(""), required: true},
			{name: "equals", anyType: true, def: cty.NullVal(cty.DynamicPseudoType), required: true},
		},
		sockets: socketsBool,
		build: func(_ context.Context, rt *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			name := b.str("param")
			take := false
			if stored, ok := rt.Params.GetNamed(name); ok {
				take = valuesEqual(stored, b.raw("equals"))
			}
			return &node.CheckParam{Name: name, Take: take}
		},
	},
	"add_item": {
		name: "add_item",
		args: []argSpec{
			{name: "item", typ: value.ItemRef, def: str(""), required: true},
			{name: "count", typ: value.Int, def: cty.NumberIntVal(1)},
		},
		build: func(_ context.Context, _ *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			return &node.AddItem{Item: b.str("item"), Count: b.integer("count")}
		},
	},
	"remove_item": {
		name: "remove_item",
		args: []argSpec{
			{name: "item", typ: value.ItemRef, def: str(""), required: true},
			{name: "count", typ: value.Int, def: cty.NumberIntVal(1)},
		},
		build: func(_ context.Context, _ *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			return &node.RemoveItem{Item: b.str("item"), Count: b.integer("count")}
		},
	},
	"check_item": {
		name: "check_item",
		args: []argSpec{
			{name: "item", typ: value.ItemRef, def: str(""), required: true},
			{name: "at_least", typ: value.Int, def: cty.NumberIntVal(1)},
		},
		sockets: socketsBool,
		build: func(_ context.Context, rt *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			item := b.str("item")
			atLeast := b.integer("at_least")
			return &node.CheckItem{Item: item, AtLeast: atLeast, Have: rt.Stage.Inventory.Count(item) >= atLeast}
		},
	},
	"fade": {
		name: "fade",
		args: []argSpec{
			{name: "out", typ: value.Bool, def: cty.True},
			{name: "duration", typ: value.Float, def: cty.Zero},
		},
		build: func(_ context.Context, _ *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			return &node.FadeScene{Out: b.boolean("out"), Duration: b.f64("duration")}
		},
	},
	"visibility": {
		name: "visibility",
		args: []argSpec{
			{name: "object", typ: value.ObjectRef, def: str(""), required: true},
			{name: "visible", typ: value.Bool, def: cty.True},
		},
		build: func(_ context.Context, _ *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			return &node.SetVisible{Object: b.str("object"), Visible: b.boolean("visible")}
		},
	},
	"cue": {
		name: "cue",
		args: []argSpec{
			{name: "list", typ: value.AssetRef, def: str(""), required: true},
			{name: "wait", typ: value.Bool, def: cty.True},
			{name: "parallel", typ: value.Bool, def: cty.False},
		},
		unskippable:  true,
		hasOverrides: true,
		build: func(ctx context.Context, rt *node.Runtime, b *boundArgs, ov overrideResolver) node.Payload {
			listID := b.str("list")
			var overrides []node.Override
			if ov != nil {
				overrides = ov(ctx, rt, listID)
			}
			return &node.Cue{
				List:          listID,
				WaitUntilDone: b.boolean("wait"),
				Parallel:      b.boolean("parallel"),
				Overrides:     overrides,
			}
		},
	},
	"end_other": {
		name: "end_other",
		args: []argSpec{{name: "list", typ: value.AssetRef, def: str(""), required: true}},
		build: func(_ context.Context, _ *node.Runtime, b *boundArgs, _ overrideResolver) node.Payload {
			return &node.EndOther{List: b.str("list")}
		},
	},
}

// pickWeighted rolls a socket index. With no weights the roll is uniform;
// weights shorter than the socket list leave the tail at weight zero, and a
// non-positive total falls back to socket zero.
func pickWeighted(rt *node.Runtime, weights []cty.Value) int {
	if len(weights) == 0 {
		// Caller resolves range against the socket list; a huge uniform roll
		// would always land out of range, so uniform selection needs the
		// socket count, which only the node knows. The builder stores -1 and
		// the compile step replaces it with a uniform roll instead.
		return -1
	}
	var total float64
	ws := make([]float64, len(weights))
	for i, w := range weights {
		f, err := value.AsFloat(w)
		if err != nil || f < 0 {
			f = 0
		}
		ws[i] = f
		total += f
	}
	if total <= 0 {
		return 0
	}
	roll := rt.Rand.Float64() * total
	for i, w := range ws {
		roll -= w
		if roll < 0 {
			return i
		}
	}
	return len(ws) - 1
}
