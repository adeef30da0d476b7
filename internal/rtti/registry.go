package rtti

import (
	"context"
	"fmt"

	"github.com/specialistvlad/rtprop/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Module is implemented by every package that contributes types.
type Module interface {
	Register(ctx context.Context, r *Registry) error
}

// Registry is the explicitly constructed type registry. It is created at
// startup, extended by modules and scripts, and torn down with Close.
type Registry struct {
	structs map[string]*StructDef
	order   []*StructDef
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{structs: make(map[string]*StructDef)}
}

// Install registers every module in order and stops at the first failure.
func (r *Registry) Install(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Register(ctx, r); err != nil {
			return fmt.Errorf("installing module %T: %w", m, err)
		}
	}
	return nil
}

// Struct looks up a struct by identifier.
func (r *Registry) Struct(id string) (*StructDef, bool) {
	s, ok := r.structs[id]
	return s, ok
}

// Structs returns all structs in registration order.
func (r *Registry) Structs() []*StructDef {
	return append([]*StructDef(nil), r.order...)
}

// Len returns the number of registered structs.
func (r *Registry) Len() int {
	return len(r.order)
}

// reject logs a registration failure and returns it.
func reject(ctx context.Context, err *Error) error {
	ctxlog.FromContext(ctx).Error("Registration rejected.", "kind", string(err.Kind), "struct", err.Struct, "id", err.Prop, "error", err.Detail)
	return err
}

// RegisterStruct registers a new static struct. base may be nil.
func (r *Registry) RegisterStruct(ctx context.Context, id string, base *StructDef, opts ...StructOption) (*StructDef, error) {
	return r.registerStruct(ctx, id, base, false, opts)
}

// RegisterExtension registers a struct at runtime on behalf of the
// scripting layer. Its extension callees are served by ext's trampolines.
// Extension types are the only ones that can be unregistered.
func (r *Registry) RegisterExtension(ctx context.Context, id string, base *StructDef, ext *Extension, opts ...StructOption) (*StructDef, error) {
	s, err := r.registerStruct(ctx, id, base, true, opts)
	if err != nil {
		return nil, err
	}
	s.Ext = ext
	return s, nil
}

func (r *Registry) registerStruct(ctx context.Context, id string, base *StructDef, dynamic bool, opts []StructOption) (*StructDef, error) {
	if id == "" {
		return nil, reject(ctx, Errorf(KindInvalidSpec, "empty struct identifier"))
	}
	if _, exists := r.structs[id]; exists {
		return nil, reject(ctx, &Error{Kind: KindDuplicateStruct, Struct: id, Detail: "struct already registered"})
	}
	if base != nil && base.registry != r {
		return nil, reject(ctx, &Error{Kind: KindInvalidSpec, Struct: id, Detail: fmt.Sprintf("base %q belongs to another registry", base.ID)})
	}

	s := &StructDef{
		ID:        id,
		Base:      base,
		propIndex: make(map[string]*PropDef),
		fnIndex:   make(map[string]*FnDef),
		dynamic:   dynamic,
		registry:  r,
	}
	for _, opt := range opts {
		opt(s)
	}
	r.structs[id] = s
	r.order = append(r.order, s)
	ctxlog.FromContext(ctx).Debug("Registered struct.", "struct", id, "dynamic", dynamic)
	return s, nil
}

// UnregisterStruct removes a dynamically registered struct. Static structs
// and structs other types still derive from cannot be removed.
func (r *Registry) UnregisterStruct(ctx context.Context, id string) error {
	s, ok := r.structs[id]
	if !ok {
		return reject(ctx, &Error{Kind: KindInvalidSpec, Struct: id, Detail: "struct not registered"})
	}
	if !s.dynamic {
		return reject(ctx, &Error{Kind: KindInvalidSpec, Struct: id, Detail: "only extension structs can be unregistered"})
	}
	for _, other := range r.order {
		if other.Base == s {
			return reject(ctx, &Error{Kind: KindInvalidSpec, Struct: id, Detail: fmt.Sprintf("struct %q still derives from it", other.ID)})
		}
	}

	delete(r.structs, id)
	for i, other := range r.order {
		if other == s {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if s.Ext != nil && s.Ext.Free != nil {
		s.Ext.Free()
	}
	s.registry = nil
	ctxlog.FromContext(ctx).Debug("Unregistered struct.", "struct", id)
	return nil
}

// Close unregisters every extension struct, most derived first.
func (r *Registry) Close(ctx context.Context) {
	for i := len(r.order) - 1; i >= 0; i-- {
		s := r.order[i]
		if s.dynamic {
			_ = r.UnregisterStruct(ctx, s.ID)
		}
	}
}

func (r *Registry) owns(s *StructDef) bool {
	return s != nil && s.registry == r
}

// RegisterProp registers a property on s.
func (r *Registry) RegisterProp(ctx context.Context, s *StructDef, spec PropSpec) (*PropDef, error) {
	if !r.owns(s) {
		return nil, reject(ctx, &Error{Kind: KindInvalidSpec, Prop: spec.ID, Detail: "struct does not belong to this registry"})
	}
	if _, exists := s.Prop(spec.ID); exists {
		return nil, reject(ctx, &Error{Kind: KindDuplicateProp, Struct: s.ID, Prop: spec.ID, Detail: "prop already registered"})
	}
	if err := validatePropSpec(spec); err != nil {
		return nil, reject(ctx, err.At(s.ID, spec.ID))
	}

	p := &PropDef{
		ID:          spec.ID,
		Name:        spec.Name,
		Description: spec.Description,
		Kind:        spec.Kind,
		Flags:       spec.Flags,
		ArrayLen:    spec.ArrayLen,
		Range:       Unbounded,
		MaxLen:      spec.MaxLen,
		Enum:        spec.Enum,
		Target:      spec.Target,
		Owner:       s,
		Get:         spec.Get,
		Set:         spec.Set,
		RangeFn:     spec.RangeFn,
		EditableFn:  spec.EditableFn,
		Collection:  spec.Collection,
		Updates:     append([]UpdateFunc(nil), spec.Updates...),
	}
	if p.Name == "" {
		p.Name = p.ID
	}
	if spec.Range != nil {
		p.Range = *spec.Range
	}
	def, err := defaultFor(p, spec.Default)
	if err != nil {
		return nil, reject(ctx, err.At(s.ID, spec.ID))
	}
	p.Default = def

	s.props = append(s.props, p)
	s.propIndex[p.ID] = p
	ctxlog.FromContext(ctx).Debug("Registered prop.", "struct", s.ID, "prop", p.ID, "kind", p.Kind.String())
	return p, nil
}

func validatePropSpec(spec PropSpec) *Error {
	switch {
	case spec.ID == "":
		return Errorf(KindInvalidSpec, "empty prop identifier")
	case spec.Kind == KindInvalid || spec.Kind > KindCollection:
		return Errorf(KindInvalidSpec, "invalid kind %d", spec.Kind)
	case spec.ArrayLen < 0:
		return Errorf(KindInvalidSpec, "negative array length")
	case spec.ArrayLen > 0 && (spec.Kind == KindPointer || spec.Kind == KindCollection):
		return Errorf(KindInvalidSpec, "%s properties cannot be arrays", spec.Kind)
	case (spec.Kind == KindPointer || spec.Kind == KindCollection) && spec.Target == nil:
		return Errorf(KindInvalidSpec, "%s property needs a target struct", spec.Kind)
	case spec.Kind == KindCollection && spec.Collection == nil:
		return Errorf(KindInvalidSpec, "collection property needs a Collection")
	case spec.Kind != KindCollection && spec.Get == nil:
		return Errorf(KindInvalidSpec, "%s property needs a getter", spec.Kind)
	case spec.Kind == KindEnum && spec.Enum == nil:
		return Errorf(KindInvalidSpec, "enum property needs items")
	case spec.Kind == KindEnum && spec.ArrayLen > 0:
		return Errorf(KindInvalidSpec, "enum properties cannot be arrays")
	case spec.Range != nil && spec.Range.Min > spec.Range.Max:
		return Errorf(KindInvalidSpec, "range min %v greater than max %v", spec.Range.Min, spec.Range.Max)
	}
	return nil
}

// defaultFor converts the declared default to the prop type, or builds the
// kind's zero value.
func defaultFor(p *PropDef, declared cty.Value) (cty.Value, *Error) {
	if p.Kind == KindCollection {
		return cty.NilVal, nil
	}
	elem := declared
	if declared == cty.NilVal {
		elem = zeroValue(p.Kind, p.Enum)
	}
	if !p.IsArray() {
		v, err := convert.Convert(elem, p.Type())
		if err != nil {
			return cty.NilVal, Errorf(KindInvalidSpec, "default: %v", err)
		}
		return v, nil
	}
	// An array default may be a whole list or one element repeated.
	if elem.Type().IsListType() || elem.Type().IsTupleType() {
		v, err := convert.Convert(elem, p.Type())
		if err != nil {
			return cty.NilVal, Errorf(KindInvalidSpec, "default: %v", err)
		}
		if v.LengthInt() != p.ArrayLen {
			return cty.NilVal, Errorf(KindInvalidSpec, "default has %d elements, want %d", v.LengthInt(), p.ArrayLen)
		}
		return v, nil
	}
	one, err := convert.Convert(elem, p.ElemType())
	if err != nil {
		return cty.NilVal, Errorf(KindInvalidSpec, "default: %v", err)
	}
	elems := make([]cty.Value, p.ArrayLen)
	for i := range elems {
		elems[i] = one
	}
	return cty.ListVal(elems), nil
}

// RegisterFn registers a function on s. A spec without Native registers an
// extension callee.
func (r *Registry) RegisterFn(ctx context.Context, s *StructDef, spec FnSpec) (*FnDef, error) {
	if !r.owns(s) {
		return nil, reject(ctx, &Error{Kind: KindInvalidSpec, Prop: spec.ID, Detail: "struct does not belong to this registry"})
	}
	if spec.ID == "" {
		return nil, reject(ctx, &Error{Kind: KindInvalidSpec, Struct: s.ID, Detail: "empty function identifier"})
	}
	if _, exists := s.Fn(spec.ID); exists {
		return nil, reject(ctx, &Error{Kind: KindDuplicateFn, Struct: s.ID, Prop: spec.ID, Detail: "function already registered"})
	}

	f := &FnDef{
		ID:           spec.ID,
		Description:  spec.Description,
		Owner:        s,
		Return:       spec.Return,
		ReturnTarget: spec.ReturnTarget,
		paramIndex:   make(map[string]*ParamDef, len(spec.Params)),
	}
	if spec.Native != nil {
		f.Callee = NativeCallee{Fn: spec.Native}
	} else {
		f.Callee = ExtensionCallee{}
	}

	for i, ps := range spec.Params {
		if ps.ID == "" || ps.Kind == KindInvalid || ps.Kind == KindCollection {
			return nil, reject(ctx, &Error{Kind: KindInvalidSpec, Struct: s.ID, Prop: spec.ID, Param: ps.ID, Detail: "invalid parameter"})
		}
		if _, dup := f.paramIndex[ps.ID]; dup {
			return nil, reject(ctx, &Error{Kind: KindInvalidSpec, Struct: s.ID, Prop: spec.ID, Param: ps.ID, Detail: "duplicate parameter"})
		}
		pd := &ParamDef{
			ID:       ps.ID,
			Kind:     ps.Kind,
			Flags:    ps.Flags,
			ArrayLen: ps.ArrayLen,
			Default:  ps.Default,
			Range:    Unbounded,
			Enum:     ps.Enum,
			Target:   ps.Target,
			Index:    i,
		}
		if ps.Range != nil {
			pd.Range = *ps.Range
		}
		if pd.Default == cty.NilVal {
			pd.Default = cty.NullVal(pd.Type())
		}
		if pd.Required() {
			f.required++
		}
		f.Params = append(f.Params, pd)
		f.paramIndex[pd.ID] = pd
	}

	s.fns = append(s.fns, f)
	s.fnIndex[f.ID] = f
	ctxlog.FromContext(ctx).Debug("Registered function.", "struct", s.ID, "fn", f.ID, "params", len(f.Params))
	return f, nil
}

// Must panics when err is non-nil. It is meant for startup registration
// code, where a failure is a programming error.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
