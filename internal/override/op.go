package override

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// OpKind is the kind of a recorded edit.
type OpKind int

const (
	Replace OpKind = iota
	InsertAfter
	Add
	Subtract
	Multiply
)

var opNames = [...]string{
	Replace:     "replace",
	InsertAfter: "insert_after",
	Add:         "add",
	Subtract:    "subtract",
	Multiply:    "multiply",
}

func (k OpKind) String() string {
	if k < 0 || int(k) >= len(opNames) {
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
	return opNames[k]
}

// ParseOpKind parses the name produced by String. The empty string is
// Replace.
func ParseOpKind(s string) (OpKind, error) {
	if s == "" {
		return Replace, nil
	}
	for k, name := range opNames {
		if strings.EqualFold(s, name) {
			return OpKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown override op %q", s)
}

// IsNumeric reports whether the op combines a delta with the current value.
func (k OpKind) IsNumeric() bool {
	return k == Add || k == Subtract || k == Multiply
}

// Op is one stored edit.
type Op struct {
	// Path addresses the target property from the owning entity. For
	// InsertAfter it addresses the collection.
	Path string
	Kind OpKind

	// Index is the array element the op applies to, or -1 for the whole
	// property. ApplyAll fills it from Path.
	Index int

	// AnchorKey and AnchorIndex locate the item in the destination that the
	// new item goes after. An empty key with AnchorIndex -1 inserts at the
	// head.
	AnchorKey   string
	AnchorIndex int

	// ItemKey selects the source item to copy. Empty selects the item
	// following the anchor in the source.
	ItemKey string

	// Value is the operand. A null or absent value for Replace copies the
	// source value.
	Value cty.Value
}

// NewOp builds an op with no index or anchor.
func NewOp(path string, kind OpKind, v cty.Value) Op {
	return Op{Path: path, Kind: kind, Index: -1, AnchorIndex: -1, Value: v}
}

// NewInsertAfter builds an InsertAfter op copying the item keyed item after
// the item keyed anchor. An empty anchor inserts at the head.
func NewInsertAfter(path, anchor, item string) Op {
	return Op{Path: path, Kind: InsertAfter, Index: -1, AnchorKey: anchor, AnchorIndex: -1, ItemKey: item}
}

func (o Op) hasAnchor() bool {
	return o.AnchorKey != "" || o.AnchorIndex >= 0
}

func (o Op) String() string {
	switch {
	case o.Kind == InsertAfter:
		return fmt.Sprintf("%s %s after %q item %q", o.Kind, o.Path, o.AnchorKey, o.ItemKey)
	case o.Value == cty.NilVal || o.Value.IsNull():
		return fmt.Sprintf("%s %s", o.Kind, o.Path)
	default:
		return fmt.Sprintf("%s %s = %#v", o.Kind, o.Path, o.Value)
	}
}
