package invoke

import (
	"context"
	"maps"
	"slices"

	"github.com/specialistvlad/rtprop/internal/ctxlog"
	"github.com/specialistvlad/rtprop/internal/report"
	"github.com/specialistvlad/rtprop/internal/rtti"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Call validates args against fn and dispatches it on self. The returned
// value has fn's declared return type, or is cty.NilVal for functions that
// return nothing.
func Call(ctx context.Context, reg *rtti.Registry, self rtti.Ptr, fn *rtti.FnDef, args map[string]cty.Value) (cty.Value, error) {
	b := NewArgs(fn)
	for _, id := range slices.Sorted(maps.Keys(args)) {
		b.Set(id, args[id])
	}
	return CallArgs(ctx, reg, self, fn, b)
}

// CallByName looks fn up on the refined type of self and calls it.
func CallByName(ctx context.Context, reg *rtti.Registry, self rtti.Ptr, fnID string, args map[string]cty.Value) (cty.Value, error) {
	if err := self.Check(); err != nil {
		return cty.NilVal, report.Err(ctx, err)
	}
	fn, ok := reg.Refine(ctx, self).Fn(fnID)
	if !ok {
		return cty.NilVal, report.Err(ctx, rtti.Errorf(rtti.KindUnresolvedCallee, "%s has no function %q", self.Type.ID, fnID))
	}
	return Call(ctx, reg, self, fn, args)
}

// CallArgs dispatches fn with a prepared argument builder.
func CallArgs(ctx context.Context, reg *rtti.Registry, self rtti.Ptr, fn *rtti.FnDef, b *Args) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)
	if err := self.Check(); err != nil {
		return cty.NilVal, report.Err(ctx, err)
	}
	if !self.Type.IsA(fn.Owner) {
		return cty.NilVal, report.Err(ctx, rtti.Errorf(rtti.KindTypeMismatch, "%s has no function %s", self.Type.ID, fn))
	}
	values, err := b.Build(self)
	if err != nil {
		logger.Debug("Call rejected.", "fn", fn.String(), "error", err)
		return cty.NilVal, report.Err(ctx, err)
	}

	callee, err := resolve(ctx, reg, self, fn)
	if err != nil {
		return cty.NilVal, report.Err(ctx, err)
	}
	ret, err := callee(ctx, self, values)
	if err != nil {
		return cty.NilVal, err
	}
	ret, err = convertReturn(fn, ret)
	if err != nil {
		return cty.NilVal, report.Err(ctx, err)
	}
	logger.Debug("Function called.", "fn", fn.String(), "instance", self.String())
	return ret, nil
}

// resolve picks the implementation of fn for self. Extension callees are
// looked up on the refined type of self, then on its bases.
func resolve(ctx context.Context, reg *rtti.Registry, self rtti.Ptr, fn *rtti.FnDef) (rtti.NativeFunc, error) {
	switch c := fn.Callee.(type) {
	case rtti.NativeCallee:
		return c.Fn, nil
	case rtti.ExtensionCallee:
		for t := reg.Refine(ctx, self); t != nil; t = t.Base {
			if tr, ok := t.Ext.Trampoline(fn.ID); ok {
				return tr, nil
			}
			if t == fn.Owner {
				break
			}
		}
		return nil, rtti.Errorf(rtti.KindUnresolvedCallee, "no extension implements %s for %s", fn, self.Type.ID)
	default:
		return nil, rtti.Errorf(rtti.KindUnresolvedCallee, "%s has no callee", fn)
	}
}

func convertReturn(fn *rtti.FnDef, v cty.Value) (cty.Value, error) {
	if fn.Return == rtti.KindInvalid {
		return cty.NilVal, nil
	}
	if v == cty.NilVal {
		return cty.NullVal(fn.ReturnType()), nil
	}
	if fn.Return == rtti.KindPointer {
		if v.IsNull() {
			return cty.NullVal(rtti.InstanceType), nil
		}
		p, ok := rtti.PtrFromValue(v)
		if !ok || fn.ReturnTarget != nil && !p.Type.IsA(fn.ReturnTarget) {
			return cty.NilVal, rtti.Errorf(rtti.KindTypeMismatch, "%s returned %s", fn, v.Type().FriendlyName())
		}
		return v, nil
	}
	out, err := convert.Convert(v, fn.ReturnType())
	if err != nil {
		return cty.NilVal, &rtti.Error{Kind: rtti.KindTypeMismatch, Prop: fn.String(), Detail: "return value", Cause: err}
	}
	return out, nil
}
