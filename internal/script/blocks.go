package script

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// staticString evaluates an attribute that must be a constant string, such
// as a socket target or a type keyword.
func staticString(attr *hcl.Attribute) (string, hcl.Diagnostics) {
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}
	if v.Type() != cty.String || v.IsNull() {
		return "", hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid attribute value",
			Detail:   fmt.Sprintf("Attribute %q must be a constant string.", attr.Name),
			Subject:  attr.Expr.Range().Ptr(),
		}}
	}
	return v.AsString(), nil
}

// staticBool evaluates an attribute that must be a constant boolean.
func staticBool(attr *hcl.Attribute) (bool, hcl.Diagnostics) {
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return false, diags
	}
	if v.Type() != cty.Bool || v.IsNull() {
		return false, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid attribute value",
			Detail:   fmt.Sprintf("Attribute %q must be a constant bool.", attr.Name),
			Subject:  attr.Expr.Range().Ptr(),
		}}
	}
	return v.True(), nil
}

// staticInt evaluates an attribute that must be a constant integer.
func staticInt(attr *hcl.Attribute) (int, hcl.Diagnostics) {
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return 0, diags
	}
	if v.Type() != cty.Number || v.IsNull() {
		return 0, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid attribute value",
			Detail:   fmt.Sprintf("Attribute %q must be a constant number.", attr.Name),
			Subject:  attr.Expr.Range().Ptr(),
		}}
	}
	i, _ := v.AsBigFloat().Int64()
	return int(i), nil
}
