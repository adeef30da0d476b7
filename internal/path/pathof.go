package path

import (
	"context"
	"reflect"

	"github.com/specialistvlad/rtprop/internal/coll"
	"github.com/specialistvlad/rtprop/internal/rtti"
)

// maxSearchDepth bounds the breadth-first search PathOf falls back to.
const maxSearchDepth = 16

// PathOf builds the path from root to (p, prop[, index]). It is the inverse
// of Resolve. For collection properties, index selects an item and the
// segment uses the item key when it has one.
//
// The instance prefix comes from the path callback of p's type when it has
// one and the callback's path resolves back to p from root. Otherwise it
// comes from a breadth-first search from root through pointer and
// collection properties, preferring key segments over positions.
func PathOf(ctx context.Context, reg *rtti.Registry, root, p rtti.Ptr, prop *rtti.PropDef, index int) (string, error) {
	if err := p.Check(); err != nil {
		return "", err
	}
	p = reg.RefinePtr(ctx, p)
	if !p.Type.IsA(prop.Owner) {
		return "", rtti.Errorf(rtti.KindTypeMismatch, "%s has no property %s", p.Type.ID, prop)
	}

	prefix, ok := prefixOf(ctx, reg, root, p)
	if !ok {
		return "", rtti.PathBroken("", "%s is not reachable from %s", p, root.Type.ID)
	}
	last, err := segmentFor(ctx, reg, p, prop, index)
	if err != nil {
		return "", err
	}
	return prefix.Join(last).String(), nil
}

func segmentFor(ctx context.Context, reg *rtti.Registry, p rtti.Ptr, prop *rtti.PropDef, index int) (Segment, error) {
	switch {
	case index < 0:
		return Attr(prop.ID), nil
	case prop.Kind == rtti.KindCollection:
		item, err := coll.LookupIndex(ctx, reg, p, prop, index)
		if err != nil {
			return Segment{}, err
		}
		return itemSegment(ctx, reg, p, prop, index, item), nil
	case prop.IsArray() && index < prop.ArrayLen:
		return Indexed(prop.ID, index), nil
	default:
		return Segment{}, rtti.Errorf(rtti.KindTypeMismatch, "index %d not valid for %s", index, prop)
	}
}

// itemSegment addresses item by key when the key is set and selects this
// item, and by position otherwise.
func itemSegment(ctx context.Context, reg *rtti.Registry, owner rtti.Ptr, prop *rtti.PropDef, index int, item rtti.Ptr) Segment {
	key, ok := coll.KeyOf(item)
	if !ok || key == "" {
		return Indexed(prop.ID, index)
	}
	if _, first, err := coll.LookupKey(ctx, reg, owner, prop, key); err != nil || first != index {
		return Indexed(prop.ID, index)
	}
	return Keyed(prop.ID, key)
}

func prefixOf(ctx context.Context, reg *rtti.Registry, root, p rtti.Ptr) (Path, bool) {
	if root.Same(p) {
		return Path{}, true
	}
	if fn := p.Type.PathFunc(); fn != nil {
		if s, ok := fn(p); ok {
			if parsed, err := Parse(s); err == nil && addresses(ctx, reg, root, parsed, p) {
				return parsed, true
			}
		}
	}
	return search(ctx, reg, root, p)
}

// addresses reports whether prefix leads from root to p. Path callbacks
// only know the instance, so a duplicate key or a foreign root makes their
// answer point elsewhere.
func addresses(ctx context.Context, reg *rtti.Registry, root rtti.Ptr, prefix Path, p rtti.Ptr) bool {
	res, err := walk(ctx, reg, root, prefix)
	if err != nil {
		return false
	}
	switch {
	case !res.Item.IsNil():
		return res.Item.Same(p)
	case res.Prop.Kind == rtti.KindPointer && res.Index < 0:
		target, err := deref(res.Ptr, res.Prop)
		return err == nil && target.Same(p)
	default:
		return false
	}
}

type node struct {
	ptr  rtti.Ptr
	path Path
}

func search(ctx context.Context, reg *rtti.Registry, root, want rtti.Ptr) (Path, bool) {
	seen := map[uintptr]bool{}
	visit := func(p rtti.Ptr) bool {
		v := reflect.ValueOf(p.Data)
		if v.Kind() != reflect.Pointer {
			return true
		}
		if seen[v.Pointer()] {
			return false
		}
		seen[v.Pointer()] = true
		return true
	}

	queue := []node{{ptr: reg.RefinePtr(ctx, root), path: Path{}}}
	visit(root)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if len(n.path) >= maxSearchDepth {
			continue
		}
		for _, prop := range n.ptr.Type.Props() {
			switch prop.Kind {
			case rtti.KindPointer:
				next, err := deref(n.ptr, prop)
				if err != nil {
					continue
				}
				next = reg.RefinePtr(ctx, next)
				seg := n.path.Join(Attr(prop.ID))
				if next.Same(want) {
					return seg, true
				}
				if visit(next) {
					queue = append(queue, node{ptr: next, path: seg})
				}
			case rtti.KindCollection:
				for i, item := range coll.All(ctx, reg, n.ptr, prop) {
					if item.IsNil() {
						continue
					}
					sub := n.path.Join(itemSegment(ctx, reg, n.ptr, prop, i, item))
					if item.Same(want) {
						return sub, true
					}
					if visit(item) {
						queue = append(queue, node{ptr: item, path: sub})
					}
				}
			}
		}
	}
	return nil, false
}
