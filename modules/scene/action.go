package scene

import (
	"context"
	"fmt"

	"github.com/specialistvlad/rtprop/internal/coll"
	"github.com/specialistvlad/rtprop/internal/path"
	"github.com/specialistvlad/rtprop/internal/rtti"
)

// GroupChannels returns the channels of group in action order. Channels of
// one group are stored contiguously in the flat channel list.
func GroupChannels(ctx context.Context, reg *rtti.Registry, action rtti.Ptr, group string) ([]rtti.Ptr, error) {
	prop, ok := action.Type.Prop("channels")
	if !ok {
		return nil, rtti.Errorf(rtti.KindTypeMismatch, "%s has no channels", action.Type.ID)
	}
	inGroup := func(p rtti.Ptr) bool {
		c, ok := p.Data.(*Channel)
		return ok && c.Group == group
	}
	it, err := coll.BeginWhere(ctx, reg, action, prop, inGroup)
	if err != nil {
		return nil, err
	}
	defer it.End()

	var out []rtti.Ptr
	for ; it.Valid(); it.Next() {
		out = append(out, it.Get())
	}
	return out, it.Err()
}

// Target is the animatable property a channel drives.
type Target struct {
	Channel *Channel
	path.Result
}

// ResolveChannels resolves every channel of action against root. Channels
// whose path no longer resolves, or whose index is outside the target
// array, are returned in broken; resolution failures are reported through
// the context's report list.
func ResolveChannels(ctx context.Context, reg *rtti.Registry, root, action rtti.Ptr) (targets []Target, broken []*Channel, err error) {
	prop, ok := action.Type.Prop("channels")
	if !ok {
		return nil, nil, rtti.Errorf(rtti.KindTypeMismatch, "%s has no channels", action.Type.ID)
	}
	it, err := coll.Begin(ctx, reg, action, prop)
	if err != nil {
		return nil, nil, err
	}
	defer it.End()

	for ; it.Valid(); it.Next() {
		ch := it.Get().Data.(*Channel)
		res, err := path.ResolveAnimatable(ctx, reg, root, ch.DataPath)
		if err != nil {
			broken = append(broken, ch)
			continue
		}
		if res.Prop.IsArray() {
			if ch.ArrayIndex >= res.Prop.ArrayLen {
				broken = append(broken, ch)
				continue
			}
			res.Index = ch.ArrayIndex
		}
		targets = append(targets, Target{Channel: ch, Result: res})
	}
	if err := it.Err(); err != nil {
		return nil, nil, fmt.Errorf("resolving channels: %w", err)
	}
	return targets, broken, nil
}
