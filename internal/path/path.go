package path

import (
	"math/big"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/specialistvlad/rtprop/internal/rtti"
	"github.com/zclconf/go-cty/cty"
)

// Segment is one component of a path: `name`, `name[index]` or `name["key"]`.
type Segment struct {
	Name   string
	Index  int // -1 when absent
	Key    string
	HasKey bool
}

// Attr builds a plain segment.
func Attr(name string) Segment {
	return Segment{Name: name, Index: -1}
}

// Indexed builds a `name[index]` segment.
func Indexed(name string, index int) Segment {
	return Segment{Name: name, Index: index}
}

// Keyed builds a `name["key"]` segment.
func Keyed(name, key string) Segment {
	return Segment{Name: name, Index: -1, Key: key, HasKey: true}
}

// HasIndex reports whether the segment carries an integer index.
func (s Segment) HasIndex() bool {
	return s.Index >= 0
}

// Path is a parsed path.
type Path []Segment

// Parse parses s. Syntax errors are PathBroken errors.
func Parse(s string) (Path, error) {
	if strings.TrimSpace(s) == "" {
		return nil, rtti.PathBroken(s, "empty path")
	}
	trav, diags := hclsyntax.ParseTraversalAbs([]byte(s), "", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, rtti.PathBroken(s, "%s", diags.Error())
	}

	var p Path
	for _, step := range trav {
		switch t := step.(type) {
		case hcl.TraverseRoot:
			p = append(p, Attr(t.Name))
		case hcl.TraverseAttr:
			p = append(p, Attr(t.Name))
		case hcl.TraverseIndex:
			if len(p) == 0 {
				return nil, rtti.PathBroken(s, "index without a name")
			}
			last := &p[len(p)-1]
			if last.HasIndex() || last.HasKey {
				return nil, rtti.PathBroken(s, "segment %q has more than one subscript", last.Name)
			}
			switch {
			case t.Key.Type() == cty.String:
				last.Key, last.HasKey = t.Key.AsString(), true
			case t.Key.Type() == cty.Number:
				i, acc := t.Key.AsBigFloat().Int64()
				if acc != big.Exact || i < 0 {
					return nil, rtti.PathBroken(s, "index %s is not a non-negative integer", t.Key.AsBigFloat().Text('g', -1))
				}
				last.Index = int(i)
			default:
				return nil, rtti.PathBroken(s, "unsupported index type %s", t.Key.Type().FriendlyName())
			}
		default:
			return nil, rtti.PathBroken(s, "unsupported path step %T", step)
		}
	}
	return p, nil
}

// Traversal converts p to an absolute HCL traversal.
func (p Path) Traversal() hcl.Traversal {
	trav := make(hcl.Traversal, 0, len(p)*2)
	for i, seg := range p {
		if i == 0 {
			trav = append(trav, hcl.TraverseRoot{Name: seg.Name})
		} else {
			trav = append(trav, hcl.TraverseAttr{Name: seg.Name})
		}
		switch {
		case seg.HasKey:
			trav = append(trav, hcl.TraverseIndex{Key: cty.StringVal(seg.Key)})
		case seg.HasIndex():
			trav = append(trav, hcl.TraverseIndex{Key: cty.NumberIntVal(int64(seg.Index))})
		}
	}
	return trav
}

// String renders the canonical form of p.
func (p Path) String() string {
	if len(p) == 0 {
		return ""
	}
	return string(hclwrite.TokensForTraversal(p.Traversal()).Bytes())
}

// Join returns p followed by more, without modifying p.
func (p Path) Join(more ...Segment) Path {
	out := make(Path, 0, len(p)+len(more))
	out = append(out, p...)
	return append(out, more...)
}

// RenameKey rewrites every `collection["old"]` segment of stored to use
// newKey, keeping stored paths valid after an item is renamed. It reports
// whether anything changed. Paths that do not parse are returned as-is.
func RenameKey(stored, collection, oldKey, newKey string) (string, bool) {
	p, err := Parse(stored)
	if err != nil {
		return stored, false
	}
	changed := false
	for i := range p {
		if p[i].Name == collection && p[i].HasKey && p[i].Key == oldKey {
			p[i].Key = newKey
			changed = true
		}
	}
	if !changed {
		return stored, false
	}
	return p.String(), true
}
