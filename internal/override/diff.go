package override

import (
	"context"

	"github.com/specialistvlad/rtprop/internal/access"
	"github.com/specialistvlad/rtprop/internal/coll"
	"github.com/specialistvlad/rtprop/internal/path"
	"github.com/specialistvlad/rtprop/internal/rtti"
)

const maxDiffDepth = 16

// Diff records the ops that turn reference into local: a Replace for every
// override-able property whose value differs, and an InsertAfter for every
// keyed collection item that exists only locally. Items present in both are
// compared recursively. Pointer properties are not recorded. The result is
// ordered so that ApplyAll can replay it onto a fresh copy of reference.
func Diff(ctx context.Context, reg *rtti.Registry, local, reference rtti.Ptr) ([]Op, error) {
	if err := local.Check(); err != nil {
		return nil, err
	}
	if err := reference.Check(); err != nil {
		return nil, err
	}
	d := differ{reg: reg}
	if err := d.diff(ctx, local, reference, path.Path{}); err != nil {
		return nil, err
	}
	return d.ops, nil
}

type differ struct {
	reg *rtti.Registry
	ops []Op
}

func (d *differ) diff(ctx context.Context, local, ref rtti.Ptr, prefix path.Path) error {
	if len(prefix) >= maxDiffDepth {
		return nil
	}
	local, ref = d.reg.RefinePtr(ctx, local), d.reg.RefinePtr(ctx, ref)
	if local.Type != ref.Type {
		// The item changed type; nothing per-field can be replayed.
		return nil
	}

	for _, prop := range local.Type.Props() {
		switch prop.Kind {
		case rtti.KindPointer:
			continue
		case rtti.KindCollection:
			if err := d.diffCollection(ctx, local, ref, prop, prefix); err != nil {
				return err
			}
		default:
			if !prop.Has(rtti.FlagOverridable) {
				continue
			}
			lv, err := access.Get(ctx, local, prop)
			if err != nil {
				return err
			}
			rv, err := access.Get(ctx, ref, prop)
			if err != nil {
				return err
			}
			if !lv.RawEquals(rv) {
				d.ops = append(d.ops, NewOp(prefix.Join(path.Attr(prop.ID)).String(), Replace, lv))
			}
		}
	}
	return nil
}

func (d *differ) diffCollection(ctx context.Context, local, ref rtti.Ptr, prop *rtti.PropDef, prefix path.Path) error {
	collPath := prefix.Join(path.Attr(prop.ID)).String()
	prev := ""
	for _, item := range coll.All(ctx, d.reg, local, prop) {
		key, ok := coll.KeyOf(item)
		if !ok || key == "" {
			continue
		}
		refItem, _, err := coll.LookupKey(ctx, d.reg, ref, prop, key)
		switch {
		case err == nil:
			if err := d.diff(ctx, item, refItem, prefix.Join(path.Keyed(prop.ID, key))); err != nil {
				return err
			}
		case prop.Has(rtti.FlagOverridable):
			d.ops = append(d.ops, NewInsertAfter(collPath, prev, key))
		}
		prev = key
	}
	return nil
}
