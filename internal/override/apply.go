package override

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"

	"github.com/specialistvlad/rtprop/internal/access"
	"github.com/specialistvlad/rtprop/internal/coll"
	"github.com/specialistvlad/rtprop/internal/ctxlog"
	"github.com/specialistvlad/rtprop/internal/path"
	"github.com/specialistvlad/rtprop/internal/report"
	"github.com/specialistvlad/rtprop/internal/rtti"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Apply replays op on prop of dst. src is the local data the op was
// recorded against; it supplies copied values and inserted items.
func Apply(ctx context.Context, reg *rtti.Registry, dst, src rtti.Ptr, prop *rtti.PropDef, op Op) error {
	if err := dst.Check(); err != nil {
		return report.Err(ctx, err)
	}
	if !prop.Has(rtti.FlagOverridable) {
		return report.Err(ctx, (&rtti.Error{Kind: rtti.KindNotEditable, Detail: "property is not override-able"}).At(prop.Owner.ID, prop.ID))
	}

	var err error
	switch {
	case op.Kind == InsertAfter:
		err = insertAfter(ctx, reg, dst, src, prop, op)
	case prop.Kind == rtti.KindCollection:
		err = rtti.Errorf(rtti.KindTypeMismatch, "%s cannot be applied to a collection", op.Kind).At(prop.Owner.ID, prop.ID)
	case op.Kind == Replace:
		err = replace(ctx, dst, src, prop, op)
	case op.Kind.IsNumeric():
		err = combine(ctx, dst, prop, op)
	default:
		err = rtti.Errorf(rtti.KindTypeMismatch, "unknown op %s", op.Kind)
	}
	if err != nil {
		return report.Err(ctx, err)
	}
	ctxlog.FromContext(ctx).Debug("Override applied.", "op", op.Kind.String(), "prop", prop.String())
	return nil
}

func read(ctx context.Context, p rtti.Ptr, prop *rtti.PropDef, index int) (cty.Value, error) {
	if index >= 0 {
		return access.GetIndex(ctx, p, prop, index)
	}
	return access.Get(ctx, p, prop)
}

func write(ctx context.Context, p rtti.Ptr, prop *rtti.PropDef, index int, v cty.Value) error {
	if index >= 0 {
		return access.SetIndex(ctx, p, prop, index, v, access.IgnoreEditable())
	}
	return access.Set(ctx, p, prop, v, access.IgnoreEditable())
}

func replace(ctx context.Context, dst, src rtti.Ptr, prop *rtti.PropDef, op Op) error {
	v := op.Value
	if v == cty.NilVal || v.IsNull() && prop.Kind != rtti.KindPointer {
		if src.IsNil() {
			return rtti.Errorf(rtti.KindTypeMismatch, "replace without a value needs a source").At(prop.Owner.ID, prop.ID)
		}
		var err error
		if v, err = read(ctx, src, prop, op.Index); err != nil {
			return err
		}
	}
	return write(ctx, dst, prop, op.Index, v)
}

func combine(ctx context.Context, dst rtti.Ptr, prop *rtti.PropDef, op Op) error {
	if !prop.Kind.IsNumeric() {
		return rtti.Errorf(rtti.KindTypeMismatch, "%s needs a numeric property", op.Kind).At(prop.Owner.ID, prop.ID)
	}
	cur, err := read(ctx, dst, prop, op.Index)
	if err != nil {
		return err
	}
	next, err := arith(op.Kind, cur, op.Value)
	if err != nil {
		return (&rtti.Error{Kind: rtti.KindTypeMismatch, Detail: op.Kind.String(), Cause: err}).At(prop.Owner.ID, prop.ID)
	}
	if prop.Kind == rtti.KindInt {
		next = roundInts(next)
	}
	return write(ctx, dst, prop, op.Index, next)
}

// roundInts rounds every number in v to the nearest integer, halves away
// from zero, so fractional factors on int properties still apply.
func roundInts(v cty.Value) cty.Value {
	if v.Type().IsListType() {
		elems := v.AsValueSlice()
		for i, e := range elems {
			elems[i] = roundInts(e)
		}
		return cty.ListVal(elems)
	}
	if v.IsNull() || !v.IsKnown() || v.Type() != cty.Number {
		return v
	}
	bf := v.AsBigFloat()
	if bf.IsInf() || bf.IsInt() {
		return v
	}
	half := big.NewFloat(0.5)
	if bf.Sign() < 0 {
		half.Neg(half)
	}
	i, _ := new(big.Float).Add(bf, half).Int(nil)
	return cty.NumberVal(new(big.Float).SetInt(i))
}

// arith combines cur with delta. A scalar delta applies to every element of
// an array; an array delta combines element-wise.
func arith(kind OpKind, cur, delta cty.Value) (cty.Value, error) {
	if delta == cty.NilVal || delta.IsNull() {
		return cty.NilVal, errors.New("missing operand")
	}
	if !cur.Type().IsListType() {
		d, err := convert.Convert(delta, cty.Number)
		if err != nil {
			return cty.NilVal, err
		}
		return arithOne(kind, cur, d), nil
	}

	n := cur.LengthInt()
	deltas := make([]cty.Value, n)
	if d, err := convert.Convert(delta, cty.Number); err == nil {
		for i := range deltas {
			deltas[i] = d
		}
	} else {
		l, err := convert.Convert(delta, cty.List(cty.Number))
		if err != nil {
			return cty.NilVal, err
		}
		if l.LengthInt() != n {
			return cty.NilVal, fmt.Errorf("operand has %d elements, want %d", l.LengthInt(), n)
		}
		deltas = l.AsValueSlice()
	}

	out := make([]cty.Value, n)
	for i, elem := range cur.AsValueSlice() {
		out[i] = arithOne(kind, elem, deltas[i])
	}
	return cty.ListVal(out), nil
}

func arithOne(kind OpKind, a, b cty.Value) cty.Value {
	switch kind {
	case Add:
		return a.Add(b)
	case Subtract:
		return a.Subtract(b)
	default:
		return a.Multiply(b)
	}
}

func insertAfter(ctx context.Context, reg *rtti.Registry, dst, src rtti.Ptr, prop *rtti.PropDef, op Op) error {
	logger := ctxlog.FromContext(ctx)
	if prop.Kind != rtti.KindCollection {
		return rtti.Errorf(rtti.KindTypeMismatch, "insert_after needs a collection").At(prop.Owner.ID, prop.ID)
	}
	m, ok := prop.Collection.(rtti.Mutable)
	if !ok {
		return rtti.Errorf(rtti.KindTypeMismatch, "collection is read-only").At(prop.Owner.ID, prop.ID)
	}
	if err := src.Check(); err != nil {
		return err
	}

	item, err := sourceItem(ctx, reg, src, prop, op)
	if err != nil {
		return err
	}
	dup := m.Duplicate(item.Data)
	if dup == nil {
		return rtti.Errorf(rtti.KindTypeMismatch, "cannot duplicate %s", item.Type.ID).At(prop.Owner.ID, prop.ID)
	}

	pos := 0
	if op.hasAnchor() {
		if i, found := anchorIndex(ctx, reg, dst, prop, op); found {
			pos = i + 1
		} else {
			logger.Info("Override anchor missing; inserting at head.", "prop", prop.String(), "anchor", op.AnchorKey)
			report.Add(ctx, report.Info, rtti.KindOverrideAnchorMissing,
				"%s: anchor %q not found in %s, inserted at head", op.Path, op.AnchorKey, prop)
		}
	}

	if err := coll.Insert(ctx, dst, prop, pos, dup); err != nil {
		return err
	}
	return Uniquify(ctx, reg, dst, prop, pos)
}

// sourceItem finds the item to copy: by key, or the one after the anchor
// in the source collection.
func sourceItem(ctx context.Context, reg *rtti.Registry, src rtti.Ptr, prop *rtti.PropDef, op Op) (rtti.Ptr, error) {
	if op.ItemKey != "" {
		item, _, err := coll.LookupKey(ctx, reg, src, prop, op.ItemKey)
		return item, err
	}
	next := 0
	if op.hasAnchor() {
		i, found := anchorIndex(ctx, reg, src, prop, op)
		if !found {
			return rtti.Ptr{}, rtti.Errorf(rtti.KindCollectionKeyNotFound, "anchor %q not in source", op.AnchorKey).At(prop.Owner.ID, prop.ID)
		}
		next = i + 1
	}
	return coll.LookupIndex(ctx, reg, src, prop, next)
}

func anchorIndex(ctx context.Context, reg *rtti.Registry, owner rtti.Ptr, prop *rtti.PropDef, op Op) (int, bool) {
	if op.AnchorKey != "" {
		_, i, err := coll.LookupKey(ctx, reg, owner, prop, op.AnchorKey)
		return i, err == nil
	}
	if op.AnchorIndex >= 0 && op.AnchorIndex < coll.Len(owner, prop) {
		return op.AnchorIndex, true
	}
	return -1, false
}

var numberedName = regexp.MustCompile(`^(.*)\.(\d{3,})$`)

// Uniquify renames the item at index when another item of the collection
// already uses its key, appending the lowest free ".NNN" suffix.
func Uniquify(ctx context.Context, reg *rtti.Registry, owner rtti.Ptr, prop *rtti.PropDef, index int) error {
	item, err := coll.LookupIndex(ctx, reg, owner, prop, index)
	if err != nil {
		return err
	}
	key, ok := coll.KeyOf(item)
	if !ok {
		return nil
	}
	keyProp, _ := item.Type.KeyProp()

	taken := map[string]bool{}
	for i, other := range coll.All(ctx, reg, owner, prop) {
		if i == index {
			continue
		}
		if k, ok := coll.KeyOf(other); ok {
			taken[k] = true
		}
	}
	if !taken[key] {
		return nil
	}

	base := key
	if m := numberedName.FindStringSubmatch(key); m != nil {
		base = m[1]
	}
	for n := 1; ; n++ {
		candidate := base + "." + fmt.Sprintf("%03d", n)
		if taken[candidate] {
			continue
		}
		ctxlog.FromContext(ctx).Debug("Renaming duplicate item.", "from", key, "to", candidate)
		return access.Set(ctx, item, keyProp, cty.StringVal(candidate), access.IgnoreEditable(), access.SkipUpdates())
	}
}

// ApplyAll replays ops in order against dstRoot, resolving each path in
// both trees. A failing op is skipped and the remaining ops still run; the
// returned error joins every failure.
func ApplyAll(ctx context.Context, reg *rtti.Registry, dstRoot, srcRoot rtti.Ptr, ops []Op) error {
	var errs []error
	for i, op := range ops {
		if err := applyOne(ctx, reg, dstRoot, srcRoot, op); err != nil {
			errs = append(errs, fmt.Errorf("override %d (%s): %w", i, op.Path, err))
		}
	}
	return errors.Join(errs...)
}

func applyOne(ctx context.Context, reg *rtti.Registry, dstRoot, srcRoot rtti.Ptr, op Op) error {
	res, err := path.Resolve(ctx, reg, dstRoot, op.Path)
	if err != nil {
		return err
	}
	if !res.Item.IsNil() {
		return report.Err(ctx, rtti.PathBroken(op.Path, "override target is a collection item, not a property"))
	}
	op.Index = res.Index

	var src rtti.Ptr
	if needsSource(op) && !srcRoot.IsNil() {
		sres, err := path.Resolve(ctx, reg, srcRoot, op.Path)
		if err != nil {
			return err
		}
		src = sres.Ptr
	}
	return Apply(ctx, reg, res.Ptr, src, res.Prop, op)
}

func needsSource(op Op) bool {
	return op.Kind == InsertAfter || op.Kind == Replace && (op.Value == cty.NilVal || op.Value.IsNull())
}
