package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/specialistvlad/rtprop/internal/override"
	"github.com/specialistvlad/rtprop/internal/rtti"
	"github.com/zclconf/go-cty/cty"
)

// parseValue evaluates an HCL literal expression such as `true`, `0.5`,
// `"Ink"` or `[1, 0, 0]`.
func parseValue(src string) (cty.Value, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "value", hcl.InitialPos)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("invalid value %q: %s", src, diags.Error())
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("invalid value %q: %s", src, diags.Error())
	}
	return v, nil
}

// formatValue renders v in the same HCL syntax parseValue accepts.
// Instances render as their type and owner.
func formatValue(v cty.Value) string {
	if v == cty.NilVal {
		return "null"
	}
	if v.Type().Equals(rtti.InstanceType) {
		if p, ok := rtti.PtrFromValue(v); ok {
			return p.String()
		}
		return "null"
	}
	return string(hclwrite.Format(hclwrite.TokensForValue(v).Bytes()))
}

// loadOverrides reads a directory of .hcl documents, a single .hcl
// document, or a .json document written by --diff.
func loadOverrides(ctx context.Context, p string) ([]override.Op, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return override.LoadDir(ctx, p)
	}
	src, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(p), ".json") {
		return override.Unmarshal(src)
	}
	return override.ParseHCL(src, p)
}
