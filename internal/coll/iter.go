package coll

import (
	"context"

	"github.com/specialistvlad/rtprop/internal/rtti"
)

// Iter is a single-use cursor over one collection property. It is not safe
// for concurrent use.
type Iter struct {
	ctx   context.Context
	reg   *rtti.Registry
	owner rtti.Ptr
	prop  *rtti.PropDef
	c     rtti.Collection

	versioned rtti.Versioned
	version   uint64

	while func(rtti.Ptr) bool
	index int
	ended bool
	err   error
}

// Begin positions a new iterator on the first item of prop in owner.
func Begin(ctx context.Context, reg *rtti.Registry, owner rtti.Ptr, prop *rtti.PropDef) (*Iter, error) {
	if err := check(owner, prop); err != nil {
		return nil, err
	}
	it := &Iter{ctx: ctx, reg: reg, owner: owner, prop: prop, c: prop.Collection}
	if v, ok := prop.Collection.(rtti.Versioned); ok {
		it.versioned = v
		it.version = v.Version(owner)
	}
	return it, nil
}

// BeginWhere positions a new iterator on the first item satisfying pred.
// Every later step continues only while pred holds, so the iterator covers
// one contiguous group of a flat sequence and stops before the first item
// outside it.
func BeginWhere(ctx context.Context, reg *rtti.Registry, owner rtti.Ptr, prop *rtti.PropDef, pred func(rtti.Ptr) bool) (*Iter, error) {
	it, err := Begin(ctx, reg, owner, prop)
	if err != nil {
		return nil, err
	}
	for it.Valid() && !pred(it.Get()) {
		it.index++
	}
	it.while = pred
	return it, it.err
}

// Valid reports whether the iterator points at an item.
func (it *Iter) Valid() bool {
	if it.ended || it.err != nil {
		return false
	}
	if it.versioned != nil && it.versioned.Version(it.owner) != it.version {
		it.err = rtti.Errorf(rtti.KindIteratorInvalidated, "collection mutated during iteration").At(it.prop.Owner.ID, it.prop.ID)
		return false
	}
	return it.index < it.c.Len(it.owner)
}

// Next advances to the following item and reports whether it is valid.
// Iterators created with BeginWhere stop at the first item failing their
// predicate.
func (it *Iter) Next() bool {
	if it.while != nil {
		return it.NextWhile(it.while)
	}
	if !it.Valid() {
		return false
	}
	it.index++
	return it.Valid()
}

// NextWhile advances like Next but ends the iteration as soon as the next
// item fails pred, even when the underlying sequence continues.
func (it *Iter) NextWhile(pred func(rtti.Ptr) bool) bool {
	if !it.Valid() {
		return false
	}
	it.index++
	if it.Valid() && !pred(it.Get()) {
		it.ended = true
	}
	return it.Valid()
}

// Get returns the current item refined to its most specific type, or a nil
// Ptr when the iterator is not valid.
func (it *Iter) Get() rtti.Ptr {
	if !it.Valid() {
		return rtti.Ptr{}
	}
	return item(it.ctx, it.reg, it.owner, it.prop, it.index)
}

// Index returns the position of the current item in the collection.
func (it *Iter) Index() int {
	return it.index
}

// Key returns the key of the current item.
func (it *Iter) Key() (string, bool) {
	p := it.Get()
	if p.IsNil() {
		return "", false
	}
	return KeyOf(p)
}

// End releases the iterator. It is safe to call more than once.
func (it *Iter) End() {
	it.ended = true
	it.owner = rtti.Ptr{}
	it.versioned = nil
}

// Err returns the error that stopped the iteration, if any.
func (it *Iter) Err() error {
	return it.err
}

func check(owner rtti.Ptr, prop *rtti.PropDef) error {
	if err := owner.Check(); err != nil {
		return err
	}
	if prop == nil || prop.Kind != rtti.KindCollection {
		return rtti.Errorf(rtti.KindTypeMismatch, "not a collection property")
	}
	if !owner.Type.IsA(prop.Owner) {
		return rtti.Errorf(rtti.KindTypeMismatch, "%s has no property %s", owner.Type.ID, prop)
	}
	return nil
}

func item(ctx context.Context, reg *rtti.Registry, owner rtti.Ptr, prop *rtti.PropDef, i int) rtti.Ptr {
	data := prop.Collection.At(owner, i)
	if data == nil {
		return rtti.Ptr{}
	}
	p := owner.Child(data, prop.Target)
	if reg == nil {
		return p
	}
	return reg.RefinePtr(ctx, p)
}
