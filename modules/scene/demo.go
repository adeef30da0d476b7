package scene

import (
	"context"
	"fmt"

	"github.com/specialistvlad/rtprop/internal/entitystore"
	"github.com/specialistvlad/rtprop/internal/rtti"
)

// DemoData builds the sample scene used by the CLI: three layers, a cube
// with a modifier stack, a lamp parented to the cube and one action with
// two channel groups. Every call returns independent data, so a second
// copy can act as the library original for overrides.
func DemoData() *Scene {
	s := NewScene("Scene")
	s.Frame = 1

	bg := NewLayer("Background")
	bg.Locked = true
	paint := NewLayer("Paint")
	paint.Opacity = 0.8
	glow := NewLayer("Glow")
	glow.Blend, glow.Tint = BlendAdd, []float64{1, 0.9, 0.6}
	for _, l := range []*Layer{bg, paint, glow} {
		s.Layers.Append(l)
	}
	s.Active = paint

	cube := NewObject("Cube")
	cube.Modifiers.Append(&Modifier{Name: "Subdivision", Type: ModifierSubsurf, Show: true, Levels: 2})
	cube.Modifiers.Append(&Modifier{Name: "Wave", Type: ModifierWave, Show: true, Strength: 0.5, Speed: 0.25})
	lamp := NewObject("Lamp")
	lamp.Location = []float64{4, 1, 6}
	lamp.Parent, lamp.Pivot = cube, PivotParent
	s.Objects.Append(cube)
	s.Objects.Append(lamp)

	act := NewAction("CubeAction")
	act.Groups.Append(&Group{Name: "Object Transforms"})
	act.Groups.Append(&Group{Name: "Layers"})
	act.Channels.Append(&Channel{DataPath: `objects["Cube"].location`, ArrayIndex: 0, Group: "Object Transforms"})
	act.Channels.Append(&Channel{DataPath: `objects["Cube"].location`, ArrayIndex: 2, Group: "Object Transforms"})
	act.Channels.Append(&Channel{DataPath: `layers["Paint"].opacity`, Group: "Layers"})
	act.Channels.Append(&Channel{DataPath: `layers["Glow"].tint`, ArrayIndex: 1, Group: "Layers"})
	s.Actions.Append(act)
	return s
}

// NewDemo stores DemoData in store and returns the scene root.
func NewDemo(ctx context.Context, reg *rtti.Registry, store *entitystore.Store) (rtti.Ptr, error) {
	typ, ok := reg.Struct(SceneID)
	if !ok {
		return rtti.Ptr{}, fmt.Errorf("scene schema is not registered")
	}
	return store.Add(ctx, DemoData(), typ), nil
}

// Library wraps data as an untracked root, the shape override sources take.
func Library(reg *rtti.Registry, data *Scene) (rtti.Ptr, error) {
	typ, ok := reg.Struct(SceneID)
	if !ok {
		return rtti.Ptr{}, fmt.Errorf("scene schema is not registered")
	}
	return rtti.NewPtr(data, typ, rtti.OwnerRef{ID: "library"}), nil
}
