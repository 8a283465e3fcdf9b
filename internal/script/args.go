package script

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/stagecue/internal/ctxlog"
	"github.com/vk/stagecue/internal/effect"
	"github.com/vk/stagecue/internal/node"
	"github.com/vk/stagecue/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// argSpec declares one argument of an action kind: its name, declared type,
// and the default used both for omitted arguments and as the fallback when a
// binding fails to resolve at run time.
type argSpec struct {
	name     string
	typ      value.Type
	def      cty.Value
	required bool
	// anyType arguments skip conversion and carry whatever the expression
	// produced; comparison and assignment kinds convert at the point of use.
	anyType bool
	// listType arguments accept a tuple/list expression, kept raw.
	listType bool
}

// deferredArgs is the authored argument set of one action: expressions
// captured at load time, evaluated against the run's parameter values on
// every bind. Deferring evaluation is what lets an argument read a parameter
// whose value was written earlier in the same run.
type deferredArgs struct {
	kind  *kindSpec
	exprs map[string]hcl.Expression
	// varRefs are the global variable names the expressions traverse, found
	// statically so bind can read exactly those from the store.
	varRefs []string
}

// boundArgs is one bind's resolved view of the arguments.
type boundArgs struct {
	kind   *kindSpec
	values map[string]cty.Value
}

// bind evaluates every argument against the current parameter values and the
// referenced globals. An argument that fails to evaluate or convert degrades
// to its declared default with a warning; binding never fails.
func (d *deferredArgs) bind(ctx context.Context, nodeName string, rt *node.Runtime) *boundArgs {
	logger := ctxlog.FromContext(ctx)
	evalCtx := d.evalContext(rt)

	b := &boundArgs{kind: d.kind, values: make(map[string]cty.Value, len(d.kind.args))}
	for _, spec := range d.kind.args {
		expr, authored := d.exprs[spec.name]
		if !authored {
			b.values[spec.name] = spec.def
			continue
		}
		v, diags := expr.Value(evalCtx)
		if diags.HasErrors() {
			logger.Warn("argument failed to resolve, using default",
				"node", nodeName, "arg", spec.name, "error", diags.Error())
			b.values[spec.name] = spec.def
			continue
		}
		if spec.anyType || spec.listType {
			b.values[spec.name] = v
			continue
		}
		conv, err := value.Convert(v, spec.typ)
		if err != nil {
			logger.Warn("argument has wrong type, using default",
				"node", nodeName, "arg", spec.name, "error", err)
			b.values[spec.name] = spec.def
			continue
		}
		b.values[spec.name] = conv
	}
	return b
}

// evalContext exposes `param` (the owning list's current values) and `var`
// (the referenced globals) to argument expressions. Both are pure reads.
func (d *deferredArgs) evalContext(rt *node.Runtime) *hcl.EvalContext {
	vars := make(map[string]cty.Value, 2)
	if rt.Params != nil {
		named := rt.Params.Named()
		if len(named) > 0 {
			vars["param"] = cty.ObjectVal(named)
		}
	}
	if len(d.varRefs) > 0 && rt.Stage != nil && rt.Stage.Variables != nil {
		globals := make(map[string]cty.Value, len(d.varRefs))
		for _, name := range d.varRefs {
			if v, ok := rt.Stage.Variables.Read(name); ok {
				globals[name] = v
			} else {
				globals[name] = cty.NullVal(cty.DynamicPseudoType)
			}
		}
		vars["var"] = cty.ObjectVal(globals)
	}
	return &hcl.EvalContext{Variables: vars}
}

// evalExpr evaluates a standalone expression against the runtime's param
// and global scope, used for cue override values.
func evalExpr(rt *node.Runtime, expr hcl.Expression, varRefs []string) (cty.Value, hcl.Diagnostics) {
	d := &deferredArgs{varRefs: varRefs}
	return expr.Value(d.evalContext(rt))
}

// collectVarRefs finds the `var.<name>` roots an expression traverses.
func collectVarRefs(exprs map[string]hcl.Expression) []string {
	seen := make(map[string]bool)
	var refs []string
	for _, expr := range exprs {
		for _, traversal := range expr.Variables() {
			if traversal.RootName() != "var" || len(traversal) < 2 {
				continue
			}
			step, ok := traversal[1].(hcl.TraverseAttr)
			if !ok {
				continue
			}
			if !seen[step.Name] {
				seen[step.Name] = true
				refs = append(refs, step.Name)
			}
		}
	}
	return refs
}

// ---- typed accessors ----

func (b *boundArgs) str(name string) string {
	s, err := value.AsString(b.values[name])
	if err != nil {
		return ""
	}
	return s
}

func (b *boundArgs) boolean(name string) bool {
	v, err := value.AsBool(b.values[name])
	if err != nil {
		return false
	}
	return v
}

func (b *boundArgs) f64(name string) float64 {
	v, err := value.AsFloat(b.values[name])
	if err != nil {
		return 0
	}
	return v
}

func (b *boundArgs) integer(name string) int {
	v, err := value.AsInt(b.values[name])
	if err != nil {
		return 0
	}
	return v
}

func (b *boundArgs) position(name string) effect.Position {
	x, y, z, err := value.AsVec3(b.values[name])
	if err != nil {
		return effect.Position{}
	}
	return effect.Position{X: x, Y: y, Z: z}
}

func (b *boundArgs) raw(name string) cty.Value {
	return b.values[name]
}

// elems unpacks a list-typed argument into its elements.
func (b *boundArgs) elems(name string) []cty.Value {
	v := b.values[name]
	if v.IsNull() || !v.CanIterateElements() {
		return nil
	}
	var out []cty.Value
	for it := v.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		out = append(out, ev)
	}
	return out
}

// valuesEqual compares a stored value against an authored one, converting
// the authored side toward the stored side first and falling back to the
// universal string form when types stay incomparable.
func valuesEqual(stored, authored cty.Value) bool {
	if stored.IsNull() || authored.IsNull() {
		return stored.IsNull() && authored.IsNull()
	}
	if conv, err := convertTo(authored, stored.Type()); err == nil {
		return stored.RawEquals(conv)
	}
	return value.Stringify(stored) == value.Stringify(authored)
}

func convertTo(v cty.Value, t cty.Type) (cty.Value, error) {
	if v.Type().Equals(t) {
		return v, nil
	}
	switch t {
	case cty.String:
		return cty.StringVal(value.Stringify(v)), nil
	case cty.Number:
		f, err := value.AsFloat(v)
		if err != nil {
			return cty.NilVal, err
		}
		return cty.NumberFloatVal(f), nil
	case cty.Bool:
		b, err := value.AsBool(v)
		if err != nil {
			return cty.NilVal, err
		}
		return cty.BoolVal(b), nil
	}
	return cty.NilVal, fmt.Errorf("cannot compare %s with %s", v.Type().FriendlyName(), t.FriendlyName())
}
