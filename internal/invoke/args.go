// Package invoke marshals named arguments and dispatches registered
// functions to native or extension callees.
package invoke

import (
	"math/big"

	"github.com/specialistvlad/rtprop/internal/rtti"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Args builds the positional argument list for one FnDef. Values are
// validated against the parameter definitions when Build runs.
type Args struct {
	fn     *rtti.FnDef
	values []cty.Value
	errs   []error
}

// NewArgs starts an argument list for fn.
func NewArgs(fn *rtti.FnDef) *Args {
	return &Args{fn: fn, values: make([]cty.Value, len(fn.Params))}
}

// Set assigns the named parameter. Unknown names are reported by Build.
func (a *Args) Set(id string, v cty.Value) *Args {
	p, ok := a.fn.Param(id)
	if !ok {
		a.errs = append(a.errs, rtti.BadArgument(a.fn.String(), id, "unknown parameter"))
		return a
	}
	a.values[p.Index] = v
	return a
}

// Build validates and coerces every argument, filling defaults for omitted
// optional parameters. self is the instance the call targets; it supplies
// dynamic enum items.
func (a *Args) Build(self rtti.Ptr) ([]cty.Value, error) {
	if len(a.errs) > 0 {
		return nil, a.errs[0]
	}
	out := make([]cty.Value, len(a.values))
	for _, p := range a.fn.Params {
		v := a.values[p.Index]
		if v == cty.NilVal {
			if p.Required() {
				return nil, rtti.BadArgument(a.fn.String(), p.ID, "required parameter missing")
			}
			out[p.Index] = p.Default
			continue
		}
		cv, err := coerce(self, a.fn, p, v)
		if err != nil {
			return nil, err
		}
		out[p.Index] = cv
	}
	return out, nil
}

func coerce(self rtti.Ptr, fn *rtti.FnDef, p *rtti.ParamDef, v cty.Value) (cty.Value, error) {
	bad := func(format string, args ...any) error {
		return rtti.BadArgument(fn.String(), p.ID, format, args...)
	}
	if !v.IsWhollyKnown() {
		return cty.NilVal, bad("value is unknown")
	}
	if v.IsNull() {
		if p.Kind != rtti.KindPointer || p.Flags.Has(rtti.FlagNeverNull) {
			return cty.NilVal, bad("value is null")
		}
		return cty.NullVal(p.Type()), nil
	}
	if p.ArrayLen == 0 {
		return coerceElem(self, p, v, bad)
	}

	ty := v.Type()
	if !(ty.IsListType() || ty.IsTupleType() || ty.IsSetType()) || v.LengthInt() != p.ArrayLen {
		return cty.NilVal, bad("expected %d elements", p.ArrayLen)
	}
	elems := make([]cty.Value, 0, p.ArrayLen)
	for it := v.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		cv, err := coerceElem(self, p, ev, bad)
		if err != nil {
			return cty.NilVal, err
		}
		elems = append(elems, cv)
	}
	return cty.ListVal(elems), nil
}

func coerceElem(self rtti.Ptr, p *rtti.ParamDef, v cty.Value, bad func(string, ...any) error) (cty.Value, error) {
	switch p.Kind {
	case rtti.KindPointer:
		target, ok := rtti.PtrFromValue(v)
		if !ok {
			return cty.NilVal, bad("expected an instance, got %s", v.Type().FriendlyName())
		}
		if p.Target != nil && !target.Type.IsA(p.Target) {
			return cty.NilVal, bad("instance of %s is not a %s", target.Type.ID, p.Target.ID)
		}
		if err := target.Check(); err != nil {
			return cty.NilVal, bad("%v", err)
		}
		return v, nil

	case rtti.KindEnum:
		s, err := convert.Convert(v, cty.String)
		if err != nil {
			return cty.NilVal, bad("enum identifier must be a string")
		}
		if _, ok := p.Enum.ByID(self, s.AsString()); !ok {
			return cty.NilVal, bad("%q is not a valid item", s.AsString())
		}
		return s, nil

	case rtti.KindInt, rtti.KindFloat:
		n, err := convert.Convert(v, cty.Number)
		if err != nil {
			return cty.NilVal, bad("%v", err)
		}
		bf := n.AsBigFloat()
		if p.Kind == rtti.KindInt && !bf.IsInt() {
			return cty.NilVal, bad("%s is not a whole number", bf.Text('g', -1))
		}
		if !inRange(bf, p.Range) {
			return cty.NilVal, bad("%s outside [%v, %v]", bf.Text('g', -1), p.Range.Min, p.Range.Max)
		}
		return n, nil

	default:
		out, err := convert.Convert(v, p.Kind.CtyType())
		if err != nil {
			return cty.NilVal, bad("%v", err)
		}
		return out, nil
	}
}

func inRange(bf *big.Float, r rtti.Range) bool {
	f, _ := bf.Float64()
	return r.Contains(f)
}
