// Package listbase provides the ordered, versioned container that data
// models use for collection-kind properties. Every structural mutation bumps
// the version, which is how collection iterators detect that they were
// invalidated.
package listbase

import "fmt"

// List is an ordered sequence of *T. The zero value is an empty list.
type List[T any] struct {
	items   []*T
	version uint64
}

// Of builds a list holding items in order.
func Of[T any](items ...*T) *List[T] {
	return &List[T]{items: append([]*T(nil), items...)}
}

// Len returns the number of items.
func (l *List[T]) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// At returns the item at i, or nil when out of range.
func (l *List[T]) At(i int) *T {
	if l == nil || i < 0 || i >= len(l.items) {
		return nil
	}
	return l.items[i]
}

// Version changes on every structural mutation.
func (l *List[T]) Version() uint64 {
	if l == nil {
		return 0
	}
	return l.version
}

// IndexOf returns the position of item, or -1.
func (l *List[T]) IndexOf(item *T) int {
	for i, it := range l.items {
		if it == item {
			return i
		}
	}
	return -1
}

// Append adds item at the tail.
func (l *List[T]) Append(item *T) {
	l.items = append(l.items, item)
	l.version++
}

// Insert places item at position i, shifting later items. i == Len appends.
func (l *List[T]) Insert(i int, item *T) error {
	if i < 0 || i > len(l.items) {
		return fmt.Errorf("listbase: insert index %d out of range [0,%d]", i, len(l.items))
	}
	l.items = append(l.items, nil)
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = item
	l.version++
	return nil
}

// InsertAfter places item after anchor; a nil anchor inserts at the head.
func (l *List[T]) InsertAfter(anchor, item *T) error {
	if anchor == nil {
		return l.Insert(0, item)
	}
	i := l.IndexOf(anchor)
	if i < 0 {
		return fmt.Errorf("listbase: anchor not in list")
	}
	return l.Insert(i+1, item)
}

// Remove deletes the item at i.
func (l *List[T]) Remove(i int) error {
	if i < 0 || i >= len(l.items) {
		return fmt.Errorf("listbase: remove index %d out of range [0,%d)", i, len(l.items))
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.version++
	return nil
}

// Items returns a copy of the backing slice.
func (l *List[T]) Items() []*T {
	if l == nil {
		return nil
	}
	return append([]*T(nil), l.items...)
}
