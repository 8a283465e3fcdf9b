package script

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/stagecue/internal/ctxlog"
	"github.com/vk/stagecue/internal/list"
	"github.com/vk/stagecue/internal/node"
	"github.com/vk/stagecue/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// compiler accumulates lists into a Document. Binders compiled for cue
// actions close over the Document so parameter overrides can be resolved
// against the target list's declaration at bind time, after every file has
// loaded.
type compiler struct {
	doc *Document
}

var listSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "asset"},
		{Name: "allow_concurrent"},
		{Name: "sync_values"},
		{Name: "background"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "param", LabelNames: []string{"name"}},
		{Type: "action", LabelNames: []string{"kind", "name"}},
	},
}

var paramSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "id"},
		{Name: "type", Required: true},
		{Name: "default"},
	},
}

var setSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "value"},
		{Name: "from_variable"},
	},
}

// rawAction is one parsed action block before edge resolution.
type rawAction struct {
	name      string
	spec      *kindSpec
	args      *deferredArgs
	gotoLabel string
	hasGoto   bool
	boolTrue  string
	boolFalse string
	sockets   []string
	overrides []overrideSpec
	defRange  hcl.Range
}

// overrideSpec is one `set` block inside a cue action: exactly one source,
// either a deferred expression or a named global variable to copy.
type overrideSpec struct {
	slot    string
	expr    hcl.Expression
	fromVar string
	varRefs []string
}

func (c *compiler) compileList(ctx context.Context, block *hcl.Block) hcl.Diagnostics {
	listID := block.Labels[0]
	if _, exists := c.doc.Lists[listID]; exists {
		return hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Duplicate list",
			Detail:   fmt.Sprintf("A list named %q was already declared.", listID),
			Subject:  &block.DefRange,
		}}
	}

	content, diags := block.Body.Content(listSchema)
	if diags.HasErrors() {
		return diags
	}

	flags := map[string]bool{}
	for _, name := range []string{"asset", "allow_concurrent", "sync_values", "background"} {
		if attr, ok := content.Attributes[name]; ok {
			v, d := staticBool(attr)
			diags = append(diags, d...)
			flags[name] = v
		}
	}

	var params []value.Param
	var actions []*rawAction
	names := make(map[string]int)

	for _, inner := range content.Blocks {
		switch inner.Type {
		case "param":
			p, d := c.compileParam(inner, len(params))
			diags = append(diags, d...)
			if !d.HasErrors() {
				params = append(params, p)
			}
		case "action":
			a, d := c.compileAction(inner)
			diags = append(diags, d...)
			if a == nil {
				continue
			}
			if _, dup := names[a.name]; dup {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate action name",
					Detail:   fmt.Sprintf("An action named %q already exists in list %q.", a.name, listID),
					Subject:  &inner.DefRange,
				})
				continue
			}
			names[a.name] = len(actions)
			actions = append(actions, a)
		}
	}
	if diags.HasErrors() {
		return diags
	}

	paramSet, err := value.NewSet(params)
	if err != nil {
		return hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid parameter declaration",
			Detail:   fmt.Sprintf("List %q: %s.", listID, err),
			Subject:  &block.DefRange,
		}}
	}

	nodes := make([]*node.Node, 0, len(actions))
	for i, a := range actions {
		n := &node.Node{
			Name:      a.name,
			Kind:      a.spec.name,
			Index:     i,
			Next:      node.ContinueEdge,
			Branching: a.spec.sockets != socketsNone,
			Skippable: !a.spec.unskippable,
		}
		if a.hasGoto {
			edge, d := resolveTarget(a.gotoLabel, names, a.defRange)
			diags = append(diags, d...)
			n.Next = edge
		}
		switch a.spec.sockets {
		case socketsBool:
			for _, target := range []string{a.boolTrue, a.boolFalse} {
				edge, d := resolveTarget(target, names, a.defRange)
				diags = append(diags, d...)
				n.Sockets = append(n.Sockets, edge)
			}
		case socketsList:
			for _, target := range a.sockets {
				edge, d := resolveTarget(target, names, a.defRange)
				diags = append(diags, d...)
				n.Sockets = append(n.Sockets, edge)
			}
		}
		n.Bind = c.binder(a, n)
		nodes = append(nodes, n)
	}
	if diags.HasErrors() {
		return diags
	}

	l := list.New(listID, nodes, paramSet)
	l.Asset = flags["asset"]
	l.AllowConcurrent = flags["allow_concurrent"]
	l.SyncValues = flags["sync_values"]
	l.Background = flags["background"]

	c.doc.Lists[listID] = l
	c.doc.Order = append(c.doc.Order, listID)
	ctxlog.FromContext(ctx).Debug("list compiled", "list", listID, "actions", len(nodes), "params", paramSet.Len())
	return diags
}

// compileParam decodes one param block. Slot IDs default to the slot's
// ordinal when not authored, but authored IDs are what keep bindings stable
// across reorders.
func (c *compiler) compileParam(block *hcl.Block, ordinal int) (value.Param, hcl.Diagnostics) {
	content, diags := block.Body.Content(paramSchema)
	if diags.HasErrors() {
		return value.Param{}, diags
	}

	p := value.Param{Name: block.Labels[0], ID: ordinal + 1}

	if attr, ok := content.Attributes["id"]; ok {
		id, d := staticInt(attr)
		diags = append(diags, d...)
		p.ID = id
	}

	typeAttr := content.Attributes["type"]
	keyword, d := staticString(typeAttr)
	diags = append(diags, d...)
	if diags.HasErrors() {
		return value.Param{}, diags
	}
	typ, err := value.ParseType(keyword)
	if err != nil {
		return value.Param{}, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Unknown parameter type",
			Detail:   fmt.Sprintf("Parameter %q: %s.", p.Name, err),
			Subject:  typeAttr.Expr.Range().Ptr(),
		}}
	}
	p.Type = typ

	if attr, ok := content.Attributes["default"]; ok {
		v, d := attr.Expr.Value(nil)
		diags = append(diags, d...)
		if !d.HasErrors() {
			conv, err := value.Convert(v, typ)
			if err != nil {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid parameter default",
					Detail:   fmt.Sprintf("Parameter %q: %s.", p.Name, err),
					Subject:  attr.Expr.Range().Ptr(),
				})
			} else {
				p.Default = conv
			}
		}
	}

	return p, diags
}

// compileAction decodes one action block against its kind's schema.
func (c *compiler) compileAction(block *hcl.Block) (*rawAction, hcl.Diagnostics) {
	kindName := block.Labels[0]
	spec, ok := kinds[kindName]
	if !ok {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Unknown action kind",
			Detail:   fmt.Sprintf("No action kind %q is registered.", kindName),
			Subject:  &block.DefRange,
		}}
	}

	content, diags := block.Body.Content(actionSchema(spec))
	if diags.HasErrors() {
		return nil, diags
	}

	a := &rawAction{
		name:     block.Labels[1],
		spec:     spec,
		defRange: block.DefRange,
		args:     &deferredArgs{kind: spec, exprs: make(map[string]hcl.Expression)},
	}

	for _, argSpec := range spec.args {
		attr, ok := content.Attributes[argSpec.name]
		if !ok {
			if argSpec.required {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Missing required argument",
					Detail:   fmt.Sprintf("Action %q (%s) requires argument %q.", a.name, kindName, argSpec.name),
					Subject:  &block.DefRange,
				})
			}
			continue
		}
		a.args.exprs[argSpec.name] = attr.Expr
	}
	a.args.varRefs = collectVarRefs(a.args.exprs)

	if attr, ok := content.Attributes["goto"]; ok {
		target, d := staticString(attr)
		diags = append(diags, d...)
		a.gotoLabel = target
		a.hasGoto = true
	}

	switch spec.sockets {
	case socketsBool:
		// Socket order is meaningful: true is socket 0, false is socket 1.
		trueTarget, d := staticString(content.Attributes["if_true"])
		diags = append(diags, d...)
		a.boolTrue = trueTarget
		falseTarget, d := staticString(content.Attributes["if_false"])
		diags = append(diags, d...)
		a.boolFalse = falseTarget
	case socketsList:
		attr := content.Attributes["sockets"]
		v, d := attr.Expr.Value(nil)
		diags = append(diags, d...)
		if !d.HasErrors() {
			if v.IsNull() || !v.CanIterateElements() {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid sockets",
					Detail:   fmt.Sprintf("Action %q: sockets must be a list of target names.", a.name),
					Subject:  attr.Expr.Range().Ptr(),
				})
			} else {
				for it := v.ElementIterator(); it.Next(); {
					_, ev := it.Element()
					if ev.Type() != cty.String || ev.IsNull() {
						diags = append(diags, &hcl.Diagnostic{
							Severity: hcl.DiagError,
							Summary:  "Invalid socket target",
							Detail:   fmt.Sprintf("Action %q: socket targets must be strings.", a.name),
							Subject:  attr.Expr.Range().Ptr(),
						})
						continue
					}
					a.sockets = append(a.sockets, ev.AsString())
				}
			}
		}
	}

	if spec.hasOverrides {
		for _, inner := range content.Blocks {
			if inner.Type != "set" {
				continue
			}
			ov, d := compileOverride(inner)
			diags = append(diags, d...)
			if !d.HasErrors() {
				a.overrides = append(a.overrides, ov)
			}
		}
	}

	if diags.HasErrors() {
		return nil, diags
	}
	return a, diags
}

// compileOverride decodes one `set` block of a cue action. Exactly one
// source must be authored per slot.
func compileOverride(block *hcl.Block) (overrideSpec, hcl.Diagnostics) {
	content, diags := block.Body.Content(setSchema)
	if diags.HasErrors() {
		return overrideSpec{}, diags
	}

	ov := overrideSpec{slot: block.Labels[0]}
	valueAttr, hasValue := content.Attributes["value"]
	fromAttr, hasFrom := content.Attributes["from_variable"]

	switch {
	case hasValue == hasFrom:
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid parameter override",
			Detail:   fmt.Sprintf("Override for %q must set exactly one of \"value\" or \"from_variable\".", ov.slot),
			Subject:  &block.DefRange,
		})
	case hasValue:
		ov.expr = valueAttr.Expr
		ov.varRefs = collectVarRefs(map[string]hcl.Expression{"value": ov.expr})
	case hasFrom:
		name, d := staticString(fromAttr)
		diags = append(diags, d...)
		ov.fromVar = name
	}
	return ov, diags
}

// actionSchema builds the HCL body schema for a kind: its arguments, the
// generic goto attribute, and its socket declarations.
func actionSchema(spec *kindSpec) *hcl.BodySchema {
	schema := &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{{Name: "goto"}},
	}
	for _, arg := range spec.args {
		schema.Attributes = append(schema.Attributes, hcl.AttributeSchema{Name: arg.name, Required: false})
	}
	switch spec.sockets {
	case socketsBool:
		schema.Attributes = append(schema.Attributes,
			hcl.AttributeSchema{Name: "if_true", Required: true},
			hcl.AttributeSchema{Name: "if_false", Required: true})
	case socketsList:
		schema.Attributes = append(schema.Attributes,
			hcl.AttributeSchema{Name: "sockets", Required: true})
	}
	if spec.hasOverrides {
		schema.Blocks = append(schema.Blocks, hcl.BlockHeaderSchema{Type: "set", LabelNames: []string{"name"}})
	}
	return schema
}

// resolveTarget maps an authored target onto an edge: "next" continues in
// document order, "stop" ends the list, anything else names another action
// in the same list.
func resolveTarget(target string, names map[string]int, at hcl.Range) (node.Edge, hcl.Diagnostics) {
	switch target {
	case "next", "continue":
		return node.ContinueEdge, nil
	case "stop":
		return node.StopEdge, nil
	}
	idx, ok := names[target]
	if !ok {
		return node.StopEdge, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Unknown jump target",
			Detail:   fmt.Sprintf("No action named %q exists in this list.", target),
			Subject:  &at,
		}}
	}
	return node.GotoEdge(idx), nil
}

// binder compiles the per-activation payload factory for one action.
func (c *compiler) binder(a *rawAction, n *node.Node) node.Binder {
	var ov overrideResolver
	if a.spec.hasOverrides {
		ov = c.overrideResolver(a.overrides)
	}
	spec := a.spec
	args := a.args
	return func(ctx context.Context, rt *node.Runtime) node.Payload {
		b := args.bind(ctx, n.Name, rt)
		p := spec.build(ctx, rt, b, ov)
		if rb, ok := p.(*node.RandomBranch); ok && rb.Picked < 0 {
			// No weights authored: uniform roll over the socket list.
			if len(n.Sockets) > 0 {
				rb.Picked = rt.Rand.Intn(len(n.Sockets))
			} else {
				rb.Picked = 0
			}
		}
		return p
	}
}

// overrideResolver resolves a cue's set blocks into concrete overrides at
// bind time. A slot that no longer exists on the target list is dropped with
// a warning and keeps its default; a well-formed save point beats a stalled
// list.
func (c *compiler) overrideResolver(specs []overrideSpec) overrideResolver {
	return func(ctx context.Context, rt *node.Runtime, listID string) []node.Override {
		logger := ctxlog.FromContext(ctx)
		target, ok := c.doc.Lists[listID]
		if !ok {
			return nil
		}
		var out []node.Override
		for _, spec := range specs {
			p, ok := target.Params.ByName(spec.slot)
			if !ok {
				logger.Warn("override slot no longer exists on target list, keeping default",
					"list", listID, "slot", spec.slot)
				continue
			}
			var v cty.Value
			if spec.fromVar != "" {
				got, ok := rt.Stage.Variables.Read(spec.fromVar)
				if !ok {
					logger.Warn("override variable not found, keeping default",
						"list", listID, "slot", spec.slot, "variable", spec.fromVar)
					continue
				}
				v = got
			} else {
				evaluated, diags := evalExpr(rt, spec.expr, spec.varRefs)
				if diags.HasErrors() {
					logger.Warn("override expression failed, keeping default",
						"list", listID, "slot", spec.slot, "error", diags.Error())
					continue
				}
				v = evaluated
			}
			conv, err := value.Convert(v, p.Type)
			if err != nil {
				logger.Warn("override value has wrong type, keeping default",
					"list", listID, "slot", spec.slot, "error", err)
				continue
			}
			out = append(out, node.Override{SlotID: p.ID, Value: conv})
		}
		return out
	}
}
