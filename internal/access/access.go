package access

import (
	"context"
	"math"
	"math/big"
	"unicode/utf8"

	"github.com/specialistvlad/rtprop/internal/ctxlog"
	"github.com/specialistvlad/rtprop/internal/report"
	"github.com/specialistvlad/rtprop/internal/rtti"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Option adjusts a single write.
type Option func(*options)

type options struct {
	ignoreEditable bool
	skipUpdates    bool
}

// IgnoreEditable bypasses the editable flag and predicate. The override
// engine uses it for override-able properties that users cannot edit
// directly.
func IgnoreEditable() Option {
	return func(o *options) { o.ignoreEditable = true }
}

// SkipUpdates suppresses update callbacks, for bulk loads that notify once
// at the end.
func SkipUpdates() Option {
	return func(o *options) { o.skipUpdates = true }
}

func checkOwner(p rtti.Ptr, prop *rtti.PropDef) error {
	if err := p.Check(); err != nil {
		return err
	}
	if prop == nil {
		return rtti.Errorf(rtti.KindTypeMismatch, "nil property")
	}
	if prop.Owner != nil && !p.Type.IsA(prop.Owner) {
		return rtti.Errorf(rtti.KindTypeMismatch, "%s has no property %s", p.Type.ID, prop)
	}
	if prop.Kind == rtti.KindCollection {
		return (&rtti.Error{Kind: rtti.KindTypeMismatch, Detail: "collection properties are accessed through iterators"}).At(prop.Owner.ID, prop.ID)
	}
	return nil
}

// Get reads prop from p. Enum values are returned as item identifiers and
// pointer values as InstanceType capsules.
func Get(ctx context.Context, p rtti.Ptr, prop *rtti.PropDef) (cty.Value, error) {
	if err := checkOwner(p, prop); err != nil {
		return cty.NilVal, report.Err(ctx, err)
	}
	v, err := read(p, prop)
	if err != nil {
		return cty.NilVal, report.Err(ctx, err)
	}
	return v, nil
}

func read(p rtti.Ptr, prop *rtti.PropDef) (cty.Value, error) {
	raw := prop.Get(p)
	if raw == cty.NilVal {
		return cty.NilVal, (&rtti.Error{Kind: rtti.KindTypeMismatch, Detail: "getter produced no value"}).At(prop.Owner.ID, prop.ID)
	}
	if prop.Kind == rtti.KindEnum {
		return enumID(p, prop, raw), nil
	}
	v, err := convert.Convert(raw, prop.Type())
	if err != nil {
		return cty.NilVal, (&rtti.Error{Kind: rtti.KindTypeMismatch, Detail: "getter value", Cause: err}).At(prop.Owner.ID, prop.ID)
	}
	if prop.IsArray() {
		// Native data may hold a nil or short slice; never index past it.
		if v.IsNull() || !v.IsKnown() {
			return cty.NilVal, rtti.Errorf(rtti.KindTypeMismatch, "array data is missing, want %d elements", prop.ArrayLen).At(prop.Owner.ID, prop.ID)
		}
		if n := v.LengthInt(); n != prop.ArrayLen {
			return cty.NilVal, rtti.Errorf(rtti.KindTypeMismatch, "array data has %d elements, want %d", n, prop.ArrayLen).At(prop.Owner.ID, prop.ID)
		}
	}
	return v, nil
}

// enumID maps a stored enum value to its identifier. Values with no item
// for the current instance read as the empty identifier.
func enumID(p rtti.Ptr, prop *rtti.PropDef, raw cty.Value) cty.Value {
	if raw.Type() == cty.String {
		return raw
	}
	n, err := convert.Convert(raw, cty.Number)
	if err != nil || n.IsNull() {
		return cty.StringVal("")
	}
	i, acc := n.AsBigFloat().Int64()
	if acc != big.Exact {
		return cty.StringVal("")
	}
	item, ok := prop.Enum.ByValue(p, int(i))
	if !ok {
		return cty.StringVal("")
	}
	return cty.StringVal(item.ID)
}

// GetIndex reads one element of an array property.
func GetIndex(ctx context.Context, p rtti.Ptr, prop *rtti.PropDef, index int) (cty.Value, error) {
	v, err := Get(ctx, p, prop)
	if err != nil {
		return cty.NilVal, err
	}
	if err := checkIndex(prop, index); err != nil {
		return cty.NilVal, report.Err(ctx, err)
	}
	return v.Index(cty.NumberIntVal(int64(index))), nil
}

func checkIndex(prop *rtti.PropDef, index int) error {
	if !prop.IsArray() {
		return (&rtti.Error{Kind: rtti.KindTypeMismatch, Detail: "property is not an array"}).At(prop.Owner.ID, prop.ID)
	}
	if index < 0 || index >= prop.ArrayLen {
		return rtti.Errorf(rtti.KindTypeMismatch, "index %d out of range [0,%d)", index, prop.ArrayLen).At(prop.Owner.ID, prop.ID)
	}
	return nil
}

// Set writes v into prop on p.
func Set(ctx context.Context, p rtti.Ptr, prop *rtti.PropDef, v cty.Value, opts ...Option) error {
	return write(ctx, p, prop, -1, v, opts)
}

// SetIndex writes one element of an array property. The element is merged
// into the current array and written as a whole, so validation and the
// editable predicate see the element index.
func SetIndex(ctx context.Context, p rtti.Ptr, prop *rtti.PropDef, index int, v cty.Value, opts ...Option) error {
	cur, err := Get(ctx, p, prop)
	if err != nil {
		return err
	}
	if err := checkIndex(prop, index); err != nil {
		return report.Err(ctx, err)
	}
	elems := cur.AsValueSlice()
	elems[index] = v
	return write(ctx, p, prop, index, cty.TupleVal(elems), opts)
}

// Reset restores the registered default.
func Reset(ctx context.Context, p rtti.Ptr, prop *rtti.PropDef, opts ...Option) error {
	if err := checkOwner(p, prop); err != nil {
		return report.Err(ctx, err)
	}
	return write(ctx, p, prop, -1, prop.Default, opts)
}

func write(ctx context.Context, p rtti.Ptr, prop *rtti.PropDef, index int, v cty.Value, opts []Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := ctxlog.FromContext(ctx)

	if err := checkOwner(p, prop); err != nil {
		return report.Err(ctx, err)
	}
	if !o.ignoreEditable {
		if err := CheckEditable(p, prop, index); err != nil {
			logger.Debug("Write rejected.", "prop", prop.String(), "error", err)
			return report.Err(ctx, err)
		}
	}
	if prop.Set == nil {
		return report.Err(ctx, (&rtti.Error{Kind: rtti.KindNotEditable, Detail: "property is read-only"}).At(prop.Owner.ID, prop.ID))
	}

	native, err := prepare(p, prop, v)
	if err != nil {
		return report.Err(ctx, err)
	}
	if err := prop.Set(p, native); err != nil {
		if _, ok := err.(*rtti.Error); !ok {
			err = (&rtti.Error{Kind: rtti.KindTypeMismatch, Detail: "setter failed", Cause: err}).At(prop.Owner.ID, prop.ID)
		}
		return report.Err(ctx, err)
	}
	logger.Debug("Property set.", "prop", prop.String(), "instance", p.String())

	if !o.skipUpdates {
		for _, update := range prop.Updates {
			update(ctx, p, prop)
		}
	}
	return nil
}

// CheckEditable reports whether prop may be written on p. index is the
// element being edited, or -1.
func CheckEditable(p rtti.Ptr, prop *rtti.PropDef, index int) error {
	if !prop.Has(rtti.FlagEditable) {
		return (&rtti.Error{Kind: rtti.KindNotEditable, Detail: "property is not editable"}).At(prop.Owner.ID, prop.ID)
	}
	if prop.EditableFn != nil {
		if ok, reason := prop.EditableFn(p, index); !ok {
			if reason == "" {
				reason = "rejected by editable check"
			}
			return (&rtti.Error{Kind: rtti.KindNotEditable, Detail: reason}).At(prop.Owner.ID, prop.ID)
		}
	}
	return nil
}

// CheckAnimatable reports whether prop may be driven by animation.
func CheckAnimatable(p rtti.Ptr, prop *rtti.PropDef) error {
	if !prop.Has(rtti.FlagAnimatable) {
		return (&rtti.Error{Kind: rtti.KindNotAnimatable, Detail: "property is not animatable"}).At(prop.Owner.ID, prop.ID)
	}
	return CheckEditable(p, prop, -1)
}

// Range returns the bounds of a numeric property on p.
func Range(ctx context.Context, p rtti.Ptr, prop *rtti.PropDef) (rtti.Range, error) {
	if err := checkOwner(p, prop); err != nil {
		return rtti.Range{}, report.Err(ctx, err)
	}
	if !prop.Kind.IsNumeric() {
		return rtti.Range{}, report.Err(ctx, (&rtti.Error{Kind: rtti.KindTypeMismatch, Detail: "property is not numeric"}).At(prop.Owner.ID, prop.ID))
	}
	return rangeOf(p, prop), nil
}

func rangeOf(p rtti.Ptr, prop *rtti.PropDef) rtti.Range {
	r := prop.Range
	if prop.RangeFn != nil {
		r = prop.RangeFn(p)
	}
	if prop.Kind == rtti.KindInt {
		r.Min = max(math.Ceil(r.Min), minInt)
		r.Max = min(math.Floor(r.Max), maxInt)
	}
	return r
}

// Int bounds that convert to int64 exactly.
const (
	minInt = -(1 << 63)
	maxInt = 1<<63 - 1024
)

// prepare turns a caller value into the native representation the setter
// expects. It never mutates anything, which is what makes array writes
// all-or-nothing.
func prepare(p rtti.Ptr, prop *rtti.PropDef, v cty.Value) (cty.Value, error) {
	fail := func(format string, args ...any) error {
		return rtti.Errorf(rtti.KindTypeMismatch, format, args...).At(prop.Owner.ID, prop.ID)
	}
	if v == cty.NilVal || !v.IsWhollyKnown() {
		return cty.NilVal, fail("value is unknown")
	}
	if !prop.IsArray() {
		return prepareElem(p, prop, v, fail)
	}

	ty := v.Type()
	if v.IsNull() || !(ty.IsListType() || ty.IsTupleType() || ty.IsSetType()) {
		return cty.NilVal, fail("expected a list of %d elements, got %s", prop.ArrayLen, ty.FriendlyName())
	}
	if n := v.LengthInt(); n != prop.ArrayLen {
		return cty.NilVal, fail("expected %d elements, got %d", prop.ArrayLen, n)
	}
	elems := make([]cty.Value, 0, prop.ArrayLen)
	for it := v.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		pv, err := prepareElem(p, prop, ev, fail)
		if err != nil {
			return cty.NilVal, err
		}
		elems = append(elems, pv)
	}
	return cty.ListVal(elems), nil
}

func prepareElem(p rtti.Ptr, prop *rtti.PropDef, v cty.Value, fail func(string, ...any) error) (cty.Value, error) {
	if v.IsNull() {
		if prop.Kind == rtti.KindPointer && !prop.Has(rtti.FlagNeverNull) {
			return cty.NullVal(rtti.InstanceType), nil
		}
		return cty.NilVal, fail("value is null")
	}

	switch prop.Kind {
	case rtti.KindPointer:
		target, ok := rtti.PtrFromValue(v)
		if !ok {
			return cty.NilVal, fail("expected an instance, got %s", v.Type().FriendlyName())
		}
		if !target.Type.IsA(prop.Target) {
			return cty.NilVal, fail("instance of %s is not a %s", target.Type.ID, prop.Target.ID)
		}
		return v, nil

	case rtti.KindEnum:
		s, err := convert.Convert(v, cty.String)
		if err != nil {
			return cty.NilVal, fail("enum identifier must be a string")
		}
		item, ok := prop.Enum.ByID(p, s.AsString())
		if !ok {
			return cty.NilVal, fail("%q is not a valid item", s.AsString())
		}
		return cty.NumberIntVal(int64(item.Value)), nil

	case rtti.KindString:
		s, err := convert.Convert(v, cty.String)
		if err != nil {
			return cty.NilVal, fail("%v", err)
		}
		if prop.MaxLen > 0 && utf8.RuneCountInString(s.AsString()) > prop.MaxLen {
			return cty.StringVal(string([]rune(s.AsString())[:prop.MaxLen])), nil
		}
		return s, nil

	case rtti.KindInt, rtti.KindFloat:
		n, err := convert.Convert(v, cty.Number)
		if err != nil {
			return cty.NilVal, fail("%v", err)
		}
		bf := n.AsBigFloat()
		if prop.Kind == rtti.KindInt && !bf.IsInt() {
			return cty.NilVal, fail("%s is not a whole number", bf.Text('g', -1))
		}
		f, _ := bf.Float64()
		r := rangeOf(p, prop)
		if r.Contains(f) {
			return n, nil
		}
		clamped := r.Clamp(f)
		if prop.Kind == rtti.KindInt {
			return cty.NumberIntVal(int64(clamped)), nil
		}
		return cty.NumberFloatVal(clamped), nil

	default:
		out, err := convert.Convert(v, prop.ElemType())
		if err != nil {
			return cty.NilVal, fail("%v", err)
		}
		return out, nil
	}
}
