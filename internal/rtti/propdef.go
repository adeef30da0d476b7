package rtti

import (
	"context"
	"math"

	"github.com/zclconf/go-cty/cty"
)

// Range holds the hard and soft bounds of a numeric property. Hard bounds
// clamp writes; soft bounds are a UI hint.
type Range struct {
	Min, Max         float64
	SoftMin, SoftMax float64
}

// Unbounded is the range of numeric properties registered without one.
var Unbounded = Range{
	Min: math.Inf(-1), Max: math.Inf(1),
	SoftMin: math.Inf(-1), SoftMax: math.Inf(1),
}

// Clamp limits v to the hard bounds.
func (r Range) Clamp(v float64) float64 {
	return math.Min(math.Max(v, r.Min), r.Max)
}

// Contains reports whether v lies within the hard bounds.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

type (
	// GetFunc reads the property from p's data.
	GetFunc func(p Ptr) cty.Value
	// SetFunc writes an already validated value into p's data.
	SetFunc func(p Ptr, v cty.Value) error
	// RangeFunc computes instance-dependent bounds.
	RangeFunc func(p Ptr) Range
	// EditableFunc is the per-call editable predicate. index is the array
	// element being edited, or -1 for the whole property.
	EditableFunc func(p Ptr, index int) (ok bool, reason string)
	// UpdateFunc runs synchronously after every successful write.
	UpdateFunc func(ctx context.Context, p Ptr, prop *PropDef)
)

// PropSpec is the registration input for a property.
type PropSpec struct {
	ID          string
	Name        string
	Description string
	Kind        Kind
	Flags       Flag

	// ArrayLen > 0 makes the property a fixed-length array of Kind.
	ArrayLen int
	Default  cty.Value
	Range    *Range
	MaxLen   int
	Enum     *EnumDef
	Target   *StructDef

	Get        GetFunc
	Set        SetFunc
	RangeFn    RangeFunc
	EditableFn EditableFunc
	Collection Collection
	Updates    []UpdateFunc
}

// PropDef is a registered field. It belongs to exactly one StructDef and
// must not be modified after registration.
type PropDef struct {
	ID          string
	Name        string
	Description string
	Kind        Kind
	Flags       Flag
	ArrayLen    int
	Default     cty.Value
	Range       Range
	MaxLen      int
	Enum        *EnumDef
	Target      *StructDef
	Owner       *StructDef

	Get        GetFunc
	Set        SetFunc
	RangeFn    RangeFunc
	EditableFn EditableFunc
	Collection Collection
	Updates    []UpdateFunc
}

// IsArray reports whether the property is a fixed-length array.
func (p *PropDef) IsArray() bool {
	return p.ArrayLen > 0
}

// ElemType is the cty type of one element (or of the scalar value).
func (p *PropDef) ElemType() cty.Type {
	return p.Kind.CtyType()
}

// Type is the cty type Get returns and Set accepts.
func (p *PropDef) Type() cty.Type {
	if p.IsArray() {
		return cty.List(p.ElemType())
	}
	return p.ElemType()
}

// Has reports whether the property carries all flags in f.
func (p *PropDef) Has(f Flag) bool {
	return p.Flags.Has(f)
}

// String returns "Struct.prop".
func (p *PropDef) String() string {
	if p.Owner == nil {
		return p.ID
	}
	return p.Owner.ID + "." + p.ID
}

// zeroValue is the default for a kind when the spec gives none.
func zeroValue(k Kind, enum *EnumDef) cty.Value {
	switch k {
	case KindBool:
		return cty.False
	case KindInt, KindFloat:
		return cty.Zero
	case KindString:
		return cty.StringVal("")
	case KindEnum:
		if enum != nil && len(enum.Static) > 0 {
			return cty.StringVal(enum.Static[0].ID)
		}
		return cty.StringVal("")
	case KindPointer:
		return cty.NullVal(InstanceType)
	default:
		return cty.NilVal
	}
}

// KeyProp returns the collection key property of s or its nearest base.
func (s *StructDef) KeyProp() (*PropDef, bool) {
	for t := s; t != nil; t = t.Base {
		if t.NameProp != "" {
			return s.Prop(t.NameProp)
		}
	}
	return nil, false
}
