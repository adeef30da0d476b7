package rtti

import (
	"context"

	"github.com/specialistvlad/rtprop/internal/ctxlog"
)

// maxRefineDepth bounds refinement chains so a misbehaving callback that
// keeps naming new subtypes cannot loop forever.
const maxRefineDepth = 8

// Refine returns the most specific registered subtype of p's declared type.
//
// The result depends only on the discriminant held in p's own data, so two
// calls on an unmutated instance agree and callers may cache the result for
// the duration of one operation. Unknown discriminants, identifiers that are
// not subtypes of the current type and panicking callbacks all yield the
// last type that was successfully resolved; Refine never fails.
func (r *Registry) Refine(ctx context.Context, p Ptr) *StructDef {
	if p.Type == nil {
		return nil
	}
	cur := p.Type
	for range maxRefineDepth {
		next := r.refineOnce(ctx, p, cur)
		if next == nil || next == cur {
			return cur
		}
		cur = next
	}
	return cur
}

// RefinePtr returns p with its Type replaced by the refined type.
func (r *Registry) RefinePtr(ctx context.Context, p Ptr) Ptr {
	p.Type = r.Refine(ctx, p)
	return p
}

func (r *Registry) refineOnce(ctx context.Context, p Ptr, cur *StructDef) (next *StructDef) {
	fn := cur.refine
	if fn == nil || p.Data == nil {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			ctxlog.FromContext(ctx).Warn("Refine callback panicked; keeping base type.", "struct", cur.ID, "panic", rec)
			next = nil
		}
	}()

	id := fn(Ptr{Data: p.Data, Type: cur, Owner: p.Owner})
	if id == "" {
		return nil
	}
	s, ok := r.structs[id]
	if !ok || !s.IsA(cur) {
		return nil
	}
	return s
}

// RefineByTag builds a RefineFunc from a discriminant reader and a table of
// discriminant values to struct identifiers.
func RefineByTag[T comparable](tag func(data any) T, table map[T]string) RefineFunc {
	return func(p Ptr) string {
		return table[tag(p.Data)]
	}
}
