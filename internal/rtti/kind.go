package rtti

import (
	"reflect"

	"github.com/zclconf/go-cty/cty"
)

// Kind is the storage kind of a property or parameter.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindEnum
	KindPointer
	KindCollection
)

var kindNames = [...]string{
	KindInvalid:    "invalid",
	KindBool:       "bool",
	KindInt:        "int",
	KindFloat:      "float",
	KindString:     "string",
	KindEnum:       "enum",
	KindPointer:    "pointer",
	KindCollection: "collection",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s && Kind(k) != KindInvalid {
			return Kind(k), true
		}
	}
	return KindInvalid, false
}

// IsNumeric reports whether values of k are cty.Number.
func (k Kind) IsNumeric() bool {
	return k == KindInt || k == KindFloat
}

// CtyType returns the scalar cty.Type used to carry values of k. Collections
// have no value representation and map to cty.NilType.
func (k Kind) CtyType() cty.Type {
	switch k {
	case KindBool:
		return cty.Bool
	case KindInt, KindFloat:
		return cty.Number
	case KindString, KindEnum:
		return cty.String
	case KindPointer:
		return InstanceType
	default:
		return cty.NilType
	}
}

// InstanceType is the capsule type carrying a Ptr inside a cty.Value. It is
// what pointer-kind properties return from Get and accept in Set.
var InstanceType = cty.CapsuleWithOps("instance", reflect.TypeOf(Ptr{}), &cty.CapsuleOps{
	Equals: func(a, b any) cty.Value {
		return cty.BoolVal(a.(*Ptr).Same(*b.(*Ptr)))
	},
	RawEquals: func(a, b any) bool {
		pa, pb := a.(*Ptr), b.(*Ptr)
		return pa.Same(*pb) && pa.Type == pb.Type
	},
	GoString: func(v any) string {
		return "rtti.PtrVal(" + v.(*Ptr).String() + ")"
	},
	TypeGoString: func(reflect.Type) string {
		return "rtti.InstanceType"
	},
})

// PtrVal wraps p as a cty.Value. A nil Ptr becomes a null value.
func PtrVal(p Ptr) cty.Value {
	if p.IsNil() {
		return cty.NullVal(InstanceType)
	}
	return cty.CapsuleVal(InstanceType, &p)
}

// PtrFromValue unwraps a value produced by PtrVal.
func PtrFromValue(v cty.Value) (Ptr, bool) {
	if v.IsNull() || !v.IsKnown() || !v.Type().Equals(InstanceType) {
		return Ptr{}, false
	}
	return *(v.EncapsulatedValue().(*Ptr)), true
}
