package rtti

import (
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// fieldBinding resolves an exported field of pointer-to-struct instance data.
// Field indexes are computed once per concrete Go type.
type fieldBinding struct {
	name  string
	index map[reflect.Type][]int
}

func newFieldBinding(name string) *fieldBinding {
	return &fieldBinding{name: name, index: make(map[reflect.Type][]int)}
}

func (b *fieldBinding) field(data any) (reflect.Value, error) {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("instance data %T is not a pointer to struct", data)
	}
	elem := v.Elem()
	idx, ok := b.index[elem.Type()]
	if !ok {
		sf, found := elem.Type().FieldByName(b.name)
		if !found || !sf.IsExported() {
			return reflect.Value{}, fmt.Errorf("%s has no exported field %q", elem.Type(), b.name)
		}
		idx = sf.Index
		b.index[elem.Type()] = idx
	}
	return elem.FieldByIndex(idx), nil
}

// FieldGetter reads the named exported field and converts it with gocty.
// Enum fields are stored as ints and surface as numbers; the access layer
// maps them to item identifiers.
func FieldGetter(field string) GetFunc {
	b := newFieldBinding(field)
	return func(p Ptr) cty.Value {
		f, err := b.field(p.Data)
		if err != nil {
			return cty.NilVal
		}
		native := f.Interface()
		ty, err := gocty.ImpliedType(native)
		if err != nil {
			return cty.NilVal
		}
		v, err := gocty.ToCtyValue(native, ty)
		if err != nil {
			return cty.NilVal
		}
		return v
	}
}

// FieldSetter writes an already validated value into the named field.
func FieldSetter(field string) SetFunc {
	b := newFieldBinding(field)
	return func(p Ptr, v cty.Value) error {
		f, err := b.field(p.Data)
		if err != nil {
			return Errorf(KindTypeMismatch, "%v", err)
		}
		if err := gocty.FromCtyValue(v, f.Addr().Interface()); err != nil {
			return Errorf(KindTypeMismatch, "field %s: %v", field, err)
		}
		return nil
	}
}

// PtrFieldGetter reads a pointer field and wraps it as an instance of target
// owned by the same top-level entity.
func PtrFieldGetter(field string, target *StructDef) GetFunc {
	b := newFieldBinding(field)
	return func(p Ptr) cty.Value {
		f, err := b.field(p.Data)
		if err != nil || f.Kind() != reflect.Pointer || f.IsNil() {
			return cty.NullVal(InstanceType)
		}
		return PtrVal(p.Child(f.Interface(), target))
	}
}

// PtrFieldSetter assigns the instance carried by v to a pointer field. A
// null value clears the field.
func PtrFieldSetter(field string) SetFunc {
	b := newFieldBinding(field)
	return func(p Ptr, v cty.Value) error {
		f, err := b.field(p.Data)
		if err != nil {
			return Errorf(KindTypeMismatch, "%v", err)
		}
		if f.Kind() != reflect.Pointer {
			return Errorf(KindTypeMismatch, "field %s is not a pointer", field)
		}
		if v.IsNull() {
			f.Set(reflect.Zero(f.Type()))
			return nil
		}
		target, ok := PtrFromValue(v)
		if !ok {
			return Errorf(KindTypeMismatch, "field %s: value is not an instance", field)
		}
		nv := reflect.ValueOf(target.Data)
		if !nv.Type().AssignableTo(f.Type()) {
			return Errorf(KindTypeMismatch, "field %s: cannot assign %s to %s", field, nv.Type(), f.Type())
		}
		f.Set(nv)
		return nil
	}
}
