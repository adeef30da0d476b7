// Package coll implements the collection iterator protocol over
// collection-kind properties: begin, next, get, end and valid, key and index
// lookup, and grouped iteration over one slice of a flat sequence.
//
// Mutating a collection while an iterator over it is live is not supported.
// Collections that implement rtti.Versioned are checked on every step and
// the iterator stops with an IteratorInvalidated error; for other
// collections the behavior is undefined.
package coll
