package path

import (
	"context"
	"errors"

	"github.com/specialistvlad/rtprop/internal/access"
	"github.com/specialistvlad/rtprop/internal/coll"
	"github.com/specialistvlad/rtprop/internal/ctxlog"
	"github.com/specialistvlad/rtprop/internal/report"
	"github.com/specialistvlad/rtprop/internal/rtti"
	"github.com/zclconf/go-cty/cty"
)

// Result is a resolved path.
type Result struct {
	// Ptr is the instance owning Prop, refined to its most specific type.
	Ptr  rtti.Ptr
	Prop *rtti.PropDef
	// Index is the array element or collection position addressed by the
	// last segment, or -1.
	Index int
	// Item is the addressed collection item when the last segment is a
	// keyed or indexed collection.
	Item rtti.Ptr
}

// Resolve walks s from root.
func Resolve(ctx context.Context, reg *rtti.Registry, root rtti.Ptr, s string) (Result, error) {
	p, err := Parse(s)
	if err != nil {
		return Result{}, broken(ctx, err)
	}
	return ResolvePath(ctx, reg, root, p)
}

// ResolvePath walks an already parsed path from root.
func ResolvePath(ctx context.Context, reg *rtti.Registry, root rtti.Ptr, p Path) (Result, error) {
	res, err := walk(ctx, reg, root, p)
	if err != nil {
		return Result{}, broken(ctx, err)
	}
	return res, nil
}

// ResolveAnimatable resolves s and additionally requires the addressed
// property to be animatable and currently editable.
func ResolveAnimatable(ctx context.Context, reg *rtti.Registry, root rtti.Ptr, s string) (Result, error) {
	res, err := Resolve(ctx, reg, root, s)
	if err != nil {
		return Result{}, err
	}
	if err := access.CheckAnimatable(res.Ptr, res.Prop); err != nil {
		return Result{}, report.Err(ctx, err)
	}
	return res, nil
}

func broken(ctx context.Context, err error) error {
	ctxlog.FromContext(ctx).Info("Path does not resolve.", "error", err)
	return report.Err(ctx, err)
}

func walk(ctx context.Context, reg *rtti.Registry, root rtti.Ptr, p Path) (Result, error) {
	full := p.String()
	if err := root.Check(); err != nil {
		return Result{}, rtti.PathBroken(full, "root").Wrap(err)
	}
	if len(p) == 0 {
		return Result{}, rtti.PathBroken(full, "empty path")
	}

	cur := reg.RefinePtr(ctx, root)
	for i, seg := range p {
		last := i == len(p)-1
		prop, ok := cur.Type.Prop(seg.Name)
		if !ok {
			return Result{}, rtti.PathBroken(full, "%s has no property %q", cur.Type.ID, seg.Name)
		}

		switch {
		case seg.HasKey || (seg.HasIndex() && prop.Kind == rtti.KindCollection):
			if prop.Kind != rtti.KindCollection {
				return Result{}, rtti.PathBroken(full, "%s is not a collection", prop)
			}
			item, index, err := lookup(ctx, reg, cur, prop, seg)
			if err != nil {
				return Result{}, rtti.PathBroken(full, "segment %d", i).Wrap(err)
			}
			if last {
				return Result{Ptr: cur, Prop: prop, Index: index, Item: item}, nil
			}
			cur = item

		case seg.HasIndex():
			if !prop.IsArray() {
				return Result{}, rtti.PathBroken(full, "%s is not an array", prop)
			}
			if seg.Index >= prop.ArrayLen {
				return Result{}, rtti.PathBroken(full, "index %d out of range for %s", seg.Index, prop)
			}
			if !last {
				return Result{}, rtti.PathBroken(full, "cannot traverse into element of %s", prop)
			}
			return Result{Ptr: cur, Prop: prop, Index: seg.Index}, nil

		case last:
			return Result{Ptr: cur, Prop: prop, Index: -1}, nil

		case prop.Kind == rtti.KindPointer:
			next, err := deref(cur, prop)
			if err != nil {
				return Result{}, rtti.PathBroken(full, "segment %d", i).Wrap(err)
			}
			cur = reg.RefinePtr(ctx, next)

		default:
			return Result{}, rtti.PathBroken(full, "cannot traverse through %s property %s", prop.Kind, prop)
		}
	}
	// unreachable: the last segment always returns
	return Result{}, rtti.PathBroken(full, "empty path")
}

func lookup(ctx context.Context, reg *rtti.Registry, owner rtti.Ptr, prop *rtti.PropDef, seg Segment) (rtti.Ptr, int, error) {
	if seg.HasKey {
		return coll.LookupKey(ctx, reg, owner, prop, seg.Key)
	}
	item, err := coll.LookupIndex(ctx, reg, owner, prop, seg.Index)
	return item, seg.Index, err
}

func deref(owner rtti.Ptr, prop *rtti.PropDef) (rtti.Ptr, error) {
	v := prop.Get(owner)
	if v == cty.NilVal || v.IsNull() {
		return rtti.Ptr{}, errors.New("pointer is null")
	}
	next, ok := rtti.PtrFromValue(v)
	if !ok {
		return rtti.Ptr{}, errors.New("pointer getter returned a non-instance value")
	}
	if err := next.Check(); err != nil {
		return rtti.Ptr{}, err
	}
	return next, nil
}

// Get resolves s and reads the addressed value. Paths ending in a
// collection item yield that item as an instance value.
func Get(ctx context.Context, reg *rtti.Registry, root rtti.Ptr, s string) (cty.Value, error) {
	res, err := Resolve(ctx, reg, root, s)
	if err != nil {
		return cty.NilVal, err
	}
	switch {
	case !res.Item.IsNil():
		return rtti.PtrVal(res.Item), nil
	case res.Prop.Kind == rtti.KindCollection:
		return cty.NilVal, report.Err(ctx, rtti.Errorf(rtti.KindTypeMismatch, "path %q addresses a whole collection", s))
	case res.Index >= 0:
		return access.GetIndex(ctx, res.Ptr, res.Prop, res.Index)
	default:
		return access.Get(ctx, res.Ptr, res.Prop)
	}
}

// Set resolves s and writes v to the addressed property or element.
func Set(ctx context.Context, reg *rtti.Registry, root rtti.Ptr, s string, v cty.Value, opts ...access.Option) error {
	res, err := Resolve(ctx, reg, root, s)
	if err != nil {
		return err
	}
	if res.Prop.Kind == rtti.KindCollection {
		return report.Err(ctx, rtti.Errorf(rtti.KindTypeMismatch, "path %q addresses a collection", s))
	}
	if res.Index >= 0 {
		return access.SetIndex(ctx, res.Ptr, res.Prop, res.Index, v, opts...)
	}
	return access.Set(ctx, res.Ptr, res.Prop, v, opts...)
}
