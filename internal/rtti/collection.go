package rtti

import (
	"fmt"

	"github.com/specialistvlad/rtprop/internal/listbase"
)

// Collection exposes the items of a collection-kind property. Items are raw
// instance data; their StructDef is the property's Target, refined per item.
type Collection interface {
	Len(owner Ptr) int
	At(owner Ptr, i int) any
}

// Versioned collections report a counter that changes on every structural
// mutation, letting iterators fail fast when invalidated.
type Versioned interface {
	Version(owner Ptr) uint64
}

// Keyed collections provide a direct key lookup instead of a linear scan.
type Keyed interface {
	IndexOfKey(owner Ptr, key string) (int, bool)
}

// Mutable collections support structural edits.
type Mutable interface {
	Insert(owner Ptr, i int, item any) error
	Remove(owner Ptr, i int) error
	// Duplicate returns a deep copy of item suitable for insertion.
	Duplicate(item any) any
}

// ListCollection adapts a listbase.List field of the owner's data.
type ListCollection[T any] struct {
	// List returns the list stored in owner data.
	List func(owner any) *listbase.List[T]
	// Copy deep-copies an item. Nil falls back to a shallow struct copy.
	Copy func(item *T) *T
}

// ListOf builds a ListCollection over the list returned by get.
func ListOf[T any](get func(owner any) *listbase.List[T], copyFn func(*T) *T) *ListCollection[T] {
	return &ListCollection[T]{List: get, Copy: copyFn}
}

// Len implements Collection. A nil list has no items.
func (c *ListCollection[T]) Len(owner Ptr) int {
	return c.List(owner.Data).Len()
}

// At implements Collection. It returns nil for a missing item, never a
// typed nil pointer.
func (c *ListCollection[T]) At(owner Ptr, i int) any {
	item := c.List(owner.Data).At(i)
	if item == nil {
		return nil
	}
	return item
}

// Version implements Versioned.
func (c *ListCollection[T]) Version(owner Ptr) uint64 {
	return c.List(owner.Data).Version()
}

// Insert implements Mutable. item must be a *T.
func (c *ListCollection[T]) Insert(owner Ptr, i int, item any) error {
	typed, ok := item.(*T)
	if !ok {
		return Errorf(KindTypeMismatch, "cannot insert %T into collection of %T", item, (*T)(nil))
	}
	l := c.List(owner.Data)
	if l == nil {
		return fmt.Errorf("rtti: collection list is nil")
	}
	return l.Insert(i, typed)
}

// Remove implements Mutable.
func (c *ListCollection[T]) Remove(owner Ptr, i int) error {
	l := c.List(owner.Data)
	if l == nil {
		return fmt.Errorf("rtti: collection list is nil")
	}
	return l.Remove(i)
}

// Duplicate implements Mutable using Copy, or a shallow copy without one.
func (c *ListCollection[T]) Duplicate(item any) any {
	typed, ok := item.(*T)
	if !ok || typed == nil {
		return nil
	}
	if c.Copy != nil {
		return c.Copy(typed)
	}
	dup := *typed
	return &dup
}
