package rtti

import (
	"context"

	"github.com/zclconf/go-cty/cty"
)

// NativeFunc is a statically registered callee. args is ordered like the
// FnDef's parameters and has already been validated and coerced.
type NativeFunc func(ctx context.Context, self Ptr, args []cty.Value) (cty.Value, error)

// Callee is the sealed set of function implementations.
type Callee interface {
	callee()
}

// NativeCallee dispatches directly to a Go function.
type NativeCallee struct {
	Fn NativeFunc
}

// ExtensionCallee dispatches to the trampoline of the instance's refined
// type, set when that extension type was registered.
type ExtensionCallee struct{}

func (NativeCallee) callee()    {}
func (ExtensionCallee) callee() {}

// Extension is the per-type slot filled by the scripting layer.
type Extension struct {
	// Owner names the script or plugin that registered the type.
	Owner string
	// Calls maps function identifiers to trampolines.
	Calls map[string]NativeFunc
	// Data is opaque to the registry.
	Data any
	// Free runs when the type is unregistered.
	Free func()
}

// Trampoline returns the trampoline for fn on the extension, if any.
func (e *Extension) Trampoline(fn string) (NativeFunc, bool) {
	if e == nil {
		return nil, false
	}
	f, ok := e.Calls[fn]
	return f, ok && f != nil
}

// ParamSpec is the registration input for one function parameter.
type ParamSpec struct {
	ID       string
	Kind     Kind
	Flags    Flag
	ArrayLen int
	Default  cty.Value
	Range    *Range
	Enum     *EnumDef
	Target   *StructDef
}

// ParamDef is a registered parameter.
type ParamDef struct {
	ID       string
	Kind     Kind
	Flags    Flag
	ArrayLen int
	Default  cty.Value
	Range    Range
	Enum     *EnumDef
	Target   *StructDef
	Index    int
}

// Required reports whether callers must supply the parameter.
func (p *ParamDef) Required() bool {
	return p.Flags.Has(FlagRequired)
}

// Type is the cty type the parameter is coerced to.
func (p *ParamDef) Type() cty.Type {
	if p.ArrayLen > 0 {
		return cty.List(p.Kind.CtyType())
	}
	return p.Kind.CtyType()
}

// FnSpec is the registration input for a function.
type FnSpec struct {
	ID           string
	Description  string
	Params       []ParamSpec
	Return       Kind
	ReturnTarget *StructDef

	// Native is the callee; nil registers an extension callee.
	Native NativeFunc
}

// FnDef is a registered method.
type FnDef struct {
	ID           string
	Description  string
	Owner        *StructDef
	Params       []*ParamDef
	Return       Kind
	ReturnTarget *StructDef
	Callee       Callee

	paramIndex map[string]*ParamDef
	required   int
}

// Param looks up a parameter by identifier.
func (f *FnDef) Param(id string) (*ParamDef, bool) {
	p, ok := f.paramIndex[id]
	return p, ok
}

// RequiredCount is the number of required parameters.
func (f *FnDef) RequiredCount() int {
	return f.required
}

// ReturnType is the cty type of the return value; cty.NilType means none.
func (f *FnDef) ReturnType() cty.Type {
	return f.Return.CtyType()
}

// String returns "Struct.fn".
func (f *FnDef) String() string {
	if f.Owner == nil {
		return f.ID
	}
	return f.Owner.ID + "." + f.ID
}
