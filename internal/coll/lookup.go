package coll

import (
	"context"
	"iter"

	"github.com/specialistvlad/rtprop/internal/report"
	"github.com/specialistvlad/rtprop/internal/rtti"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// KeyOf reads the name property that keys p within its collection.
func KeyOf(p rtti.Ptr) (string, bool) {
	prop, ok := p.Type.KeyProp()
	if !ok || prop.Get == nil {
		return "", false
	}
	v := prop.Get(p)
	if v == cty.NilVal || v.IsNull() || !v.IsKnown() {
		return "", false
	}
	s, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", false
	}
	return s.AsString(), true
}

// Len returns the number of items, or 0 for an invalid owner.
func Len(owner rtti.Ptr, prop *rtti.PropDef) int {
	if check(owner, prop) != nil {
		return 0
	}
	return prop.Collection.Len(owner)
}

// LookupKey finds the item whose key equals key. Collections implementing
// rtti.Keyed answer directly; others are scanned in order.
func LookupKey(ctx context.Context, reg *rtti.Registry, owner rtti.Ptr, prop *rtti.PropDef, key string) (rtti.Ptr, int, error) {
	if err := check(owner, prop); err != nil {
		return rtti.Ptr{}, -1, err
	}
	if k, ok := prop.Collection.(rtti.Keyed); ok {
		if i, found := k.IndexOfKey(owner, key); found {
			return item(ctx, reg, owner, prop, i), i, nil
		}
		return rtti.Ptr{}, -1, keyNotFound(prop, key)
	}
	n := prop.Collection.Len(owner)
	for i := 0; i < n; i++ {
		p := item(ctx, reg, owner, prop, i)
		if p.IsNil() {
			continue
		}
		if k, ok := KeyOf(p); ok && k == key {
			return p, i, nil
		}
	}
	return rtti.Ptr{}, -1, keyNotFound(prop, key)
}

func keyNotFound(prop *rtti.PropDef, key string) error {
	return rtti.Errorf(rtti.KindCollectionKeyNotFound, "no item with key %q", key).At(prop.Owner.ID, prop.ID)
}

// LookupIndex returns the item at position i.
func LookupIndex(ctx context.Context, reg *rtti.Registry, owner rtti.Ptr, prop *rtti.PropDef, i int) (rtti.Ptr, error) {
	if err := check(owner, prop); err != nil {
		return rtti.Ptr{}, err
	}
	if i < 0 || i >= prop.Collection.Len(owner) {
		return rtti.Ptr{}, rtti.Errorf(rtti.KindCollectionKeyNotFound, "index %d out of range", i).At(prop.Owner.ID, prop.ID)
	}
	p := item(ctx, reg, owner, prop, i)
	if p.IsNil() {
		return rtti.Ptr{}, rtti.Errorf(rtti.KindCollectionKeyNotFound, "no item at index %d", i).At(prop.Owner.ID, prop.ID)
	}
	return p, nil
}

// All yields the index and refined item of every element in order. The
// sequence stops early if the collection is mutated while it runs.
func All(ctx context.Context, reg *rtti.Registry, owner rtti.Ptr, prop *rtti.PropDef) iter.Seq2[int, rtti.Ptr] {
	return func(yield func(int, rtti.Ptr) bool) {
		it, err := Begin(ctx, reg, owner, prop)
		if err != nil {
			return
		}
		defer it.End()
		for ; it.Valid(); it.Next() {
			if !yield(it.Index(), it.Get()) {
				return
			}
		}
	}
}

// Keys returns the item keys in order. Items without a key contribute an
// empty string.
func Keys(ctx context.Context, reg *rtti.Registry, owner rtti.Ptr, prop *rtti.PropDef) ([]string, error) {
	it, err := Begin(ctx, reg, owner, prop)
	if err != nil {
		return nil, err
	}
	defer it.End()
	var keys []string
	for ; it.Valid(); it.Next() {
		k, _ := it.Key()
		keys = append(keys, k)
	}
	return keys, it.Err()
}

func mutable(owner rtti.Ptr, prop *rtti.PropDef) (rtti.Mutable, error) {
	if err := check(owner, prop); err != nil {
		return nil, err
	}
	m, ok := prop.Collection.(rtti.Mutable)
	if !ok {
		return nil, rtti.Errorf(rtti.KindTypeMismatch, "collection is read-only").At(prop.Owner.ID, prop.ID)
	}
	return m, nil
}

func changed(ctx context.Context, owner rtti.Ptr, prop *rtti.PropDef) {
	for _, update := range prop.Updates {
		update(ctx, owner, prop)
	}
}

// Insert places item data at position i and runs the property's update
// callbacks.
func Insert(ctx context.Context, owner rtti.Ptr, prop *rtti.PropDef, i int, data any) error {
	m, err := mutable(owner, prop)
	if err != nil {
		return report.Err(ctx, err)
	}
	if err := m.Insert(owner, i, data); err != nil {
		return report.Err(ctx, err)
	}
	changed(ctx, owner, prop)
	return nil
}

// Remove deletes the item at position i and runs the property's update
// callbacks. Relative order of the remaining items is preserved.
func Remove(ctx context.Context, owner rtti.Ptr, prop *rtti.PropDef, i int) error {
	m, err := mutable(owner, prop)
	if err != nil {
		return report.Err(ctx, err)
	}
	if err := m.Remove(owner, i); err != nil {
		return report.Err(ctx, err)
	}
	changed(ctx, owner, prop)
	return nil
}

// RemoveKey deletes the item keyed key.
func RemoveKey(ctx context.Context, reg *rtti.Registry, owner rtti.Ptr, prop *rtti.PropDef, key string) error {
	_, i, err := LookupKey(ctx, reg, owner, prop, key)
	if err != nil {
		return report.Err(ctx, err)
	}
	return Remove(ctx, owner, prop, i)
}
