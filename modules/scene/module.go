package scene

import (
	"context"
	"fmt"

	"github.com/specialistvlad/rtprop/internal/listbase"
	"github.com/specialistvlad/rtprop/internal/notify"
	"github.com/specialistvlad/rtprop/internal/rtti"
	"github.com/zclconf/go-cty/cty"
)

// Struct identifiers registered by Module.
const (
	SceneID           = "Scene"
	LayerID           = "Layer"
	ObjectID          = "Object"
	ModifierID        = "Modifier"
	WaveModifierID    = "WaveModifier"
	SubsurfModifierID = "SubsurfModifier"
	ActionID          = "Action"
	GroupID           = "ActionGroup"
	ChannelID         = "Channel"
)

// Module implements the rtti.Module interface for the scene schema.
type Module struct {
	// Sink receives a change event from every property update callback.
	// Nil disables notifications.
	Sink notify.Sink
}

// registrar threads the first registration error through a sequence of
// calls so Register reads as a flat schema listing.
type registrar struct {
	ctx context.Context
	r   *rtti.Registry
	err error
}

func (g *registrar) strct(id string, base *rtti.StructDef, opts ...rtti.StructOption) *rtti.StructDef {
	if g.err != nil {
		return nil
	}
	s, err := g.r.RegisterStruct(g.ctx, id, base, opts...)
	g.err = err
	return s
}

func (g *registrar) prop(s *rtti.StructDef, spec rtti.PropSpec) *rtti.PropDef {
	if g.err != nil {
		return nil
	}
	p, err := g.r.RegisterProp(g.ctx, s, spec)
	g.err = err
	return p
}

func (g *registrar) fn(s *rtti.StructDef, spec rtti.FnSpec) *rtti.FnDef {
	if g.err != nil {
		return nil
	}
	f, err := g.r.RegisterFn(g.ctx, s, spec)
	g.err = err
	return f
}

// field binds a property to the exported Go field of the same data struct.
func field(id, goField string, kind rtti.Kind, flags rtti.Flag) rtti.PropSpec {
	spec := rtti.PropSpec{ID: id, Kind: kind, Flags: flags, Get: rtti.FieldGetter(goField)}
	if flags.Has(rtti.FlagEditable) {
		spec.Set = rtti.FieldSetter(goField)
	}
	return spec
}

func (m *Module) updates(tags notify.Tag) []rtti.UpdateFunc {
	if m.Sink == nil {
		return nil
	}
	return []rtti.UpdateFunc{notify.OnChange(m.Sink, tags)}
}

const (
	editable    = rtti.FlagEditable
	animatable  = rtti.FlagEditable | rtti.FlagAnimatable
	overridable = rtti.FlagOverridable
)

var blendItems = []rtti.EnumItem{
	{ID: "MIX", Value: BlendMix, Name: "Mix"},
	{ID: "ADD", Value: BlendAdd, Name: "Add"},
	{ID: "MULTIPLY", Value: BlendMultiply, Name: "Multiply"},
}

// pivotItems offers PARENT only to objects that have one.
func pivotItems(p rtti.Ptr) []rtti.EnumItem {
	items := []rtti.EnumItem{{ID: "ORIGIN", Value: PivotOrigin, Name: "Origin"}}
	if o, ok := p.Data.(*Object); ok && o.Parent != nil {
		items = append(items, rtti.EnumItem{ID: "PARENT", Value: PivotParent, Name: "Parent"})
	}
	return append(items, rtti.EnumItem{ID: "CURSOR", Value: PivotCursor, Name: "3D Cursor"})
}

func unlocked(p rtti.Ptr, _ int) (bool, string) {
	if l, ok := p.Data.(*Layer); ok && l.Locked {
		return false, fmt.Sprintf("layer %q is locked", l.Name)
	}
	return true, ""
}

func refineModifier(p rtti.Ptr) string {
	mod, ok := p.Data.(*Modifier)
	if !ok {
		return ""
	}
	switch mod.Type {
	case ModifierWave:
		return WaveModifierID
	case ModifierSubsurf:
		return SubsurfModifierID
	case ModifierScript:
		return mod.Script
	}
	return ""
}

// Register installs the scene schema.
func (m *Module) Register(ctx context.Context, r *rtti.Registry) error {
	g := &registrar{ctx: ctx, r: r}
	redraw := m.updates(notify.Redraw)
	recompute := m.updates(notify.Recompute | notify.Redraw)
	local := m.updates(notify.Recompute | notify.Redraw | notify.OverrideDirty)

	// Modifiers
	modifier := g.strct(ModifierID, nil, rtti.WithNameProp("name"), rtti.WithRefine(refineModifier),
		rtti.WithDescription("Procedural operation applied to an object"))
	name := field("name", "Name", rtti.KindString, editable|overridable)
	name.MaxLen, name.Updates = 63, recompute
	g.prop(modifier, name)
	g.prop(modifier, field("type", "Type", rtti.KindString, 0))
	show := field("show_viewport", "Show", rtti.KindBool, animatable|overridable)
	show.Default, show.Updates = cty.True, local
	g.prop(modifier, show)
	g.fn(modifier, rtti.FnSpec{ID: "describe", Description: "Human readable summary, provided by script modifiers", Return: rtti.KindString})

	wave := g.strct(WaveModifierID, modifier)
	strength := field("strength", "Strength", rtti.KindFloat, animatable|overridable)
	strength.Range = &rtti.Range{Min: -100, Max: 100, SoftMin: -2, SoftMax: 2}
	strength.Default, strength.Updates = cty.NumberFloatVal(0.5), local
	g.prop(wave, strength)
	speed := field("speed", "Speed", rtti.KindFloat, animatable|overridable)
	speed.Range = &rtti.Range{Min: -2, Max: 2, SoftMin: -2, SoftMax: 2}
	speed.Default, speed.Updates = cty.NumberFloatVal(0.25), local
	g.prop(wave, speed)

	subsurf := g.strct(SubsurfModifierID, modifier)
	levels := field("levels", "Levels", rtti.KindInt, editable|overridable)
	levels.Range = &rtti.Range{Min: 0, Max: 6, SoftMin: 0, SoftMax: 6}
	levels.Default, levels.Updates = cty.NumberIntVal(1), local
	g.prop(subsurf, levels)

	// Layers
	layer := g.strct(LayerID, nil, rtti.WithNameProp("name"), rtti.WithPath(func(p rtti.Ptr) (string, bool) {
		l, ok := p.Data.(*Layer)
		if !ok || l.Name == "" {
			return "", false
		}
		return fmt.Sprintf("layers[%q]", l.Name), true
	}))
	lname := field("name", "Name", rtti.KindString, editable|overridable)
	lname.MaxLen, lname.Updates = 63, recompute
	g.prop(layer, lname)
	hide := field("hide", "Hide", rtti.KindBool, animatable|overridable)
	hide.Default, hide.EditableFn, hide.Updates = cty.False, unlocked, local
	g.prop(layer, hide)
	g.prop(layer, field("lock", "Locked", rtti.KindBool, editable))
	opacity := field("opacity", "Opacity", rtti.KindFloat, animatable|overridable)
	opacity.Range = &rtti.Range{Min: 0, Max: 1, SoftMin: 0, SoftMax: 1}
	opacity.Default, opacity.EditableFn, opacity.Updates = cty.NumberFloatVal(1), unlocked, local
	g.prop(layer, opacity)
	blend := field("blend_mode", "Blend", rtti.KindEnum, editable|overridable)
	blend.Enum, blend.Default, blend.EditableFn, blend.Updates = &rtti.EnumDef{Static: blendItems}, cty.StringVal("MIX"), unlocked, local
	g.prop(layer, blend)
	tint := field("tint", "Tint", rtti.KindFloat, animatable|overridable)
	tint.ArrayLen, tint.Range = 3, &rtti.Range{Min: 0, Max: 1, SoftMin: 0, SoftMax: 1}
	tint.Default, tint.EditableFn, tint.Updates = cty.NumberIntVal(1), unlocked, local
	g.prop(layer, tint)

	// Objects
	object := g.strct(ObjectID, nil, rtti.WithNameProp("name"))
	oname := field("name", "Name", rtti.KindString, editable)
	oname.MaxLen, oname.Updates = 63, recompute
	g.prop(object, oname)
	loc := field("location", "Location", rtti.KindFloat, animatable|overridable)
	loc.ArrayLen, loc.Updates = 3, local
	g.prop(object, loc)
	pivot := field("pivot", "Pivot", rtti.KindEnum, editable|overridable)
	pivot.Enum, pivot.Updates = &rtti.EnumDef{Dynamic: pivotItems}, local
	g.prop(object, pivot)
	g.prop(object, rtti.PropSpec{
		ID: "parent", Kind: rtti.KindPointer, Flags: editable, Target: object,
		Get: rtti.PtrFieldGetter("Parent", object), Set: rtti.PtrFieldSetter("Parent"),
		EditableFn: func(p rtti.Ptr, _ int) (bool, string) {
			if o, ok := p.Data.(*Object); ok && o.Pivot == PivotParent {
				return false, "pivot uses the parent"
			}
			return true, ""
		},
		Updates: recompute,
	})
	g.prop(object, rtti.PropSpec{
		ID: "modifiers", Kind: rtti.KindCollection, Flags: overridable, Target: modifier,
		Collection: rtti.ListOf(func(o any) *listbase.List[Modifier] { return o.(*Object).Modifiers }, copyModifier),
		Updates:    local,
	})

	// Actions
	group := g.strct(GroupID, nil, rtti.WithNameProp("name"))
	g.prop(group, field("name", "Name", rtti.KindString, editable))

	channel := g.strct(ChannelID, nil)
	dataPath := field("data_path", "DataPath", rtti.KindString, editable)
	dataPath.Updates = recompute
	g.prop(channel, dataPath)
	index := field("array_index", "ArrayIndex", rtti.KindInt, editable)
	index.Range, index.Updates = &rtti.Range{Min: 0, Max: 1 << 16, SoftMin: 0, SoftMax: 3}, recompute
	g.prop(channel, index)
	g.prop(channel, field("group", "Group", rtti.KindString, editable))

	action := g.strct(ActionID, nil, rtti.WithNameProp("name"))
	g.prop(action, field("name", "Name", rtti.KindString, editable))
	g.prop(action, rtti.PropSpec{
		ID: "groups", Kind: rtti.KindCollection, Target: group,
		Collection: rtti.ListOf(func(o any) *listbase.List[Group] { return o.(*Action).Groups }, nil),
	})
	g.prop(action, rtti.PropSpec{
		ID: "channels", Kind: rtti.KindCollection, Target: channel,
		Collection: rtti.ListOf(func(o any) *listbase.List[Channel] { return o.(*Action).Channels }, nil),
		Updates:    recompute,
	})

	// Scene
	scene := g.strct(SceneID, nil, rtti.WithDescription("Top-level entity owning layers, objects and actions"))
	g.prop(scene, field("name", "Name", rtti.KindString, editable))
	frame := field("frame_current", "Frame", rtti.KindInt, animatable)
	frame.Range, frame.Updates = &rtti.Range{Min: 0, Max: 1048574, SoftMin: 0, SoftMax: 250}, recompute
	g.prop(scene, frame)
	g.prop(scene, rtti.PropSpec{
		ID: "layers", Kind: rtti.KindCollection, Flags: overridable, Target: layer,
		Collection: rtti.ListOf(func(o any) *listbase.List[Layer] { return o.(*Scene).Layers }, copyLayer),
		Updates:    local,
	})
	g.prop(scene, rtti.PropSpec{
		ID: "objects", Kind: rtti.KindCollection, Flags: overridable, Target: object,
		Collection: rtti.ListOf(func(o any) *listbase.List[Object] { return o.(*Scene).Objects }, copyObject),
		Updates:    local,
	})
	g.prop(scene, rtti.PropSpec{
		ID: "actions", Kind: rtti.KindCollection, Target: action,
		Collection: rtti.ListOf(func(o any) *listbase.List[Action] { return o.(*Scene).Actions }, copyAction),
	})
	g.prop(scene, rtti.PropSpec{
		ID: "active_layer", Kind: rtti.KindPointer, Flags: editable, Target: layer,
		Get: rtti.PtrFieldGetter("Active", layer), Set: rtti.PtrFieldSetter("Active"),
		Updates: redraw,
	})
	m.registerSceneFns(g, scene, layer)

	if g.err != nil {
		return fmt.Errorf("registering scene schema: %w", g.err)
	}
	return nil
}

// RegisterScriptModifier registers a script-provided modifier type. Modifier
// instances whose Type is SCRIPT and whose Script equals id refine to it, and
// describe dispatches to the given trampoline.
func RegisterScriptModifier(ctx context.Context, r *rtti.Registry, id, owner string, describe rtti.NativeFunc, props ...rtti.PropSpec) (*rtti.StructDef, error) {
	base, ok := r.Struct(ModifierID)
	if !ok {
		return nil, fmt.Errorf("scene schema is not registered")
	}
	ext := &rtti.Extension{Owner: owner, Calls: map[string]rtti.NativeFunc{}}
	if describe != nil {
		ext.Calls["describe"] = describe
	}
	s, err := r.RegisterExtension(ctx, id, base, ext)
	if err != nil {
		return nil, err
	}
	for _, spec := range props {
		if _, err := r.RegisterProp(ctx, s, spec); err != nil {
			_ = r.UnregisterStruct(ctx, id)
			return nil, fmt.Errorf("script modifier %s: %w", id, err)
		}
	}
	return s, nil
}
