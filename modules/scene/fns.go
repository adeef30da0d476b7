package scene

import (
	"context"
	"errors"

	"github.com/specialistvlad/rtprop/internal/access"
	"github.com/specialistvlad/rtprop/internal/coll"
	"github.com/specialistvlad/rtprop/internal/override"
	"github.com/specialistvlad/rtprop/internal/path"
	"github.com/specialistvlad/rtprop/internal/rtti"
	"github.com/zclconf/go-cty/cty"
)

func (m *Module) registerSceneFns(g *registrar, scene, layer *rtti.StructDef) {
	if g.err != nil {
		return
	}
	r := g.r
	g.fn(scene, rtti.FnSpec{
		ID:          "rename_layer",
		Description: "Rename a layer and retarget the channels animating it",
		Params: []rtti.ParamSpec{
			{ID: "old", Kind: rtti.KindString, Flags: rtti.FlagRequired},
			{ID: "new", Kind: rtti.KindString, Flags: rtti.FlagRequired},
		},
		Return: rtti.KindBool,
		Native: func(ctx context.Context, self rtti.Ptr, args []cty.Value) (cty.Value, error) {
			return renameLayer(ctx, r, self, args[0].AsString(), args[1].AsString())
		},
	})
	g.fn(scene, rtti.FnSpec{
		ID:          "add_layer",
		Description: "Insert a new layer after an existing one, or at the end",
		Params: []rtti.ParamSpec{
			{ID: "name", Kind: rtti.KindString, Flags: rtti.FlagRequired},
			{ID: "after", Kind: rtti.KindString},
		},
		Return:       rtti.KindPointer,
		ReturnTarget: layer,
		Native: func(ctx context.Context, self rtti.Ptr, args []cty.Value) (cty.Value, error) {
			return addLayer(ctx, r, self, layer, args[0].AsString(), args[1].AsString())
		},
	})
}

func sceneProp(self rtti.Ptr, id string) (*rtti.PropDef, error) {
	prop, ok := self.Type.Prop(id)
	if !ok {
		return nil, rtti.Errorf(rtti.KindTypeMismatch, "%s has no property %s", self.Type.ID, id)
	}
	return prop, nil
}

func renameLayer(ctx context.Context, reg *rtti.Registry, self rtti.Ptr, oldName, newName string) (cty.Value, error) {
	layers, err := sceneProp(self, "layers")
	if err != nil {
		return cty.NilVal, err
	}
	item, _, err := coll.LookupKey(ctx, reg, self, layers, oldName)
	if errors.Is(err, rtti.ErrCollectionKeyNotFound) {
		return cty.False, nil
	}
	if err != nil {
		return cty.NilVal, err
	}
	nameProp, _ := item.Type.KeyProp()
	if err := access.Set(ctx, item, nameProp, cty.StringVal(newName)); err != nil {
		return cty.NilVal, err
	}
	// MaxLen may have shortened it.
	got, err := access.Get(ctx, item, nameProp)
	if err != nil {
		return cty.NilVal, err
	}
	if err := retargetChannels(ctx, reg, self, oldName, got.AsString()); err != nil {
		return cty.NilVal, err
	}
	return cty.True, nil
}

// retargetChannels rewrites channel data paths addressing layers[oldName].
func retargetChannels(ctx context.Context, reg *rtti.Registry, self rtti.Ptr, oldName, newName string) error {
	actions, err := sceneProp(self, "actions")
	if err != nil {
		return err
	}
	var errs []error
	for _, action := range coll.All(ctx, reg, self, actions) {
		channels, _ := action.Type.Prop("channels")
		for _, ch := range coll.All(ctx, reg, action, channels) {
			dp, _ := ch.Type.Prop("data_path")
			cur, err := access.Get(ctx, ch, dp)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if next, ok := path.RenameKey(cur.AsString(), "layers", oldName, newName); ok {
				errs = append(errs, access.Set(ctx, ch, dp, cty.StringVal(next)))
			}
		}
	}
	return errors.Join(errs...)
}

func addLayer(ctx context.Context, reg *rtti.Registry, self rtti.Ptr, layer *rtti.StructDef, name, after string) (cty.Value, error) {
	layers, err := sceneProp(self, "layers")
	if err != nil {
		return cty.NilVal, err
	}
	at := coll.Len(self, layers)
	if after != "" {
		_, i, err := coll.LookupKey(ctx, reg, self, layers, after)
		if err != nil {
			return cty.NilVal, err
		}
		at = i + 1
	}
	l := NewLayer(name)
	if err := coll.Insert(ctx, self, layers, at, l); err != nil {
		return cty.NilVal, err
	}
	if err := override.Uniquify(ctx, reg, self, layers, at); err != nil {
		return cty.NilVal, err
	}
	return rtti.PtrVal(self.Child(l, layer)), nil
}
