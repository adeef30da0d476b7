package override

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/rtprop/internal/ctxlog"
	"github.com/specialistvlad/rtprop/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// record is the persisted form of an Op.
type record struct {
	Path        string          `json:"path"`
	Op          string          `json:"op"`
	Anchor      string          `json:"anchor,omitempty"`
	AnchorIndex *int            `json:"anchor_index,omitempty"`
	Item        string          `json:"item,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
}

// Marshal encodes ops as JSON. Values are written with their implied JSON
// types; instance values cannot be persisted.
func Marshal(ops []Op) ([]byte, error) {
	records := make([]record, len(ops))
	for i, op := range ops {
		r := record{Path: op.Path, Op: op.Kind.String(), Anchor: op.AnchorKey, Item: op.ItemKey}
		if op.AnchorIndex >= 0 {
			idx := op.AnchorIndex
			r.AnchorIndex = &idx
		}
		if op.Value != cty.NilVal && !op.Value.IsNull() {
			raw, err := ctyjson.SimpleJSONValue{Value: op.Value}.MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("override %d (%s): %w", i, op.Path, err)
			}
			r.Value = raw
		}
		records[i] = r
	}
	return json.MarshalIndent(records, "", "  ")
}

// Unmarshal decodes ops produced by Marshal.
func Unmarshal(data []byte) ([]Op, error) {
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode overrides: %w", err)
	}
	ops := make([]Op, 0, len(records))
	for i, r := range records {
		kind, err := ParseOpKind(r.Op)
		if err != nil {
			return nil, fmt.Errorf("override %d: %w", i, err)
		}
		op := Op{Path: r.Path, Kind: kind, Index: -1, AnchorKey: r.Anchor, AnchorIndex: -1, ItemKey: r.Item}
		if r.AnchorIndex != nil {
			op.AnchorIndex = *r.AnchorIndex
		}
		if len(r.Value) > 0 {
			var v ctyjson.SimpleJSONValue
			if err := v.UnmarshalJSON(r.Value); err != nil {
				return nil, fmt.Errorf("override %d (%s): %w", i, r.Path, err)
			}
			op.Value = v.Value
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// hclOverridesFile is the authoring format:
//
//	override {
//	  path  = "layers[\"Paint\"].opacity"
//	  value = 0.5
//	}
//	override {
//	  path   = "layers"
//	  op     = "insert_after"
//	  anchor = "Base"
//	  item   = "Paint"
//	}
type hclOverridesFile struct {
	Overrides []*hclOverride `hcl:"override,block"`
}

type hclOverride struct {
	Path        string         `hcl:"path"`
	Op          string         `hcl:"op,optional"`
	Anchor      string         `hcl:"anchor,optional"`
	AnchorIndex *int           `hcl:"anchor_index,optional"`
	Item        string         `hcl:"item,optional"`
	Value       hcl.Expression `hcl:"value,optional"`
}

func decodeHCL(file *hcl.File) ([]Op, hcl.Diagnostics) {
	var parsed hclOverridesFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, diags
	}

	var diags hcl.Diagnostics
	ops := make([]Op, 0, len(parsed.Overrides))
	for _, o := range parsed.Overrides {
		kind, err := ParseOpKind(o.Op)
		if err != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid override op",
				Detail:   err.Error(),
				Subject:  o.Value.Range().Ptr(),
			})
			continue
		}
		v, valDiags := o.Value.Value(nil)
		diags = append(diags, valDiags...)
		if valDiags.HasErrors() {
			continue
		}
		op := Op{Path: o.Path, Kind: kind, Index: -1, AnchorKey: o.Anchor, AnchorIndex: -1, ItemKey: o.Item, Value: v}
		if o.AnchorIndex != nil {
			op.AnchorIndex = *o.AnchorIndex
		}
		ops = append(ops, op)
	}
	return ops, diags
}

// ParseHCL decodes override blocks from src. Values must be literals.
func ParseHCL(src []byte, filename string) ([]Op, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse overrides %s: %w", filename, diags)
	}
	ops, diags := decodeHCL(file)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode overrides %s: %w", filename, diags)
	}
	return ops, nil
}

// LoadDir parses every .hcl file under dir, in path order.
func LoadDir(ctx context.Context, dir string) ([]Op, error) {
	logger := ctxlog.FromContext(ctx)
	files, err := fsutil.FindFiles(dir, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to find override files in %s: %w", dir, err)
	}
	if len(files) == 0 {
		logger.Warn("No .hcl override files found in path.", "path", dir)
		return nil, nil
	}

	parser := hclparse.NewParser()
	var ops []Op
	for _, name := range files {
		file, diags := parser.ParseHCLFile(name)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse overrides %s: %w", name, diags)
		}
		fileOps, diags := decodeHCL(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode overrides %s: %w", name, diags)
		}
		logger.Debug("Loaded overrides.", "file", name, "count", len(fileOps))
		ops = append(ops, fileOps...)
	}
	return ops, nil
}
