package scene

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/rtprop/internal/access"
	"github.com/specialistvlad/rtprop/internal/coll"
	"github.com/specialistvlad/rtprop/internal/entitystore"
	"github.com/specialistvlad/rtprop/internal/invoke"
	"github.com/specialistvlad/rtprop/internal/notify"
	"github.com/specialistvlad/rtprop/internal/override"
	"github.com/specialistvlad/rtprop/internal/path"
	"github.com/specialistvlad/rtprop/internal/report"
	"github.com/specialistvlad/rtprop/internal/rtti"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

type fixture struct {
	reg    *rtti.Registry
	store  *entitystore.Store
	events *notify.Recorder
	root   rtti.Ptr
	data   *Scene
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{reg: rtti.New(), store: entitystore.New(), events: &notify.Recorder{}}
	require.NoError(t, f.reg.Install(ctx, &Module{Sink: f.events}))
	root, err := NewDemo(ctx, f.reg, f.store)
	require.NoError(t, err)
	f.root, f.data = root, root.Data.(*Scene)
	return f
}

func (f *fixture) prop(t *testing.T, structID, propID string) *rtti.PropDef {
	t.Helper()
	s, ok := f.reg.Struct(structID)
	require.True(t, ok, structID)
	p, ok := s.Prop(propID)
	require.True(t, ok, propID)
	return p
}

func (f *fixture) layer(t *testing.T, name string) rtti.Ptr {
	t.Helper()
	p, _, err := coll.LookupKey(context.Background(), f.reg, f.root, f.prop(t, SceneID, "layers"), name)
	require.NoError(t, err)
	return p
}

func layerNames(s *Scene) []string {
	var out []string
	for _, l := range s.Layers.Items() {
		out = append(out, l.Name)
	}
	return out
}

func TestLayerHide_SetGetResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	paint := f.layer(t, "Paint")
	hide := f.prop(t, LayerID, "hide")

	assert.Equal(t, cty.False, hide.Default)
	require.NoError(t, access.Set(ctx, paint, hide, cty.True))
	got, err := access.Get(ctx, paint, hide)
	require.NoError(t, err)
	assert.Equal(t, cty.True, got)

	res, err := path.Resolve(ctx, f.reg, paint, "hide")
	require.NoError(t, err)
	assert.True(t, res.Ptr.Same(paint))
	assert.Equal(t, hide, res.Prop)
	assert.Equal(t, -1, res.Index)

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, notify.Event{
		OwnerID: f.root.Owner.ID, StructID: LayerID, PropID: "hide",
		Tags: notify.Recompute | notify.Redraw | notify.OverrideDirty,
	}, events[0])
}

func TestLayerPathOf_DuplicateAndRenamedKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hide := f.prop(t, LayerID, "hide")
	paint, glow := f.layer(t, "Paint"), f.layer(t, "Glow")

	got, err := path.PathOf(ctx, f.reg, f.root, paint, hide, -1)
	require.NoError(t, err)
	assert.Equal(t, `layers["Paint"].hide`, got)

	// Names are editable, so two layers can share one.
	require.NoError(t, access.Set(ctx, glow, f.prop(t, LayerID, "name"), cty.StringVal("Paint")))

	for _, want := range []rtti.Ptr{paint, glow} {
		s, err := path.PathOf(ctx, f.reg, f.root, want, hide, -1)
		require.NoError(t, err)
		res, err := path.Resolve(ctx, f.reg, f.root, s)
		require.NoError(t, err, s)
		assert.True(t, res.Ptr.Same(want), s)
	}
	got, err = path.PathOf(ctx, f.reg, f.root, glow, hide, -1)
	require.NoError(t, err)
	assert.Equal(t, "layers[2].hide", got)
}

func TestLayerPathOf_ForeignRootAndDetached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hide := f.prop(t, LayerID, "hide")
	layerDef, ok := f.reg.Struct(LayerID)
	require.True(t, ok)

	lib, err := Library(f.reg, DemoData())
	require.NoError(t, err)
	libPaint, _, err := coll.LookupKey(ctx, f.reg, lib, f.prop(t, SceneID, "layers"), "Paint")
	require.NoError(t, err)

	_, err = path.PathOf(ctx, f.reg, f.root, libPaint, hide, -1)
	require.ErrorIs(t, err, rtti.ErrPathBroken, "a layer of another scene")

	_, err = path.PathOf(ctx, f.reg, f.root, f.root.Child(NewLayer("Loose"), layerDef), hide, -1)
	require.ErrorIs(t, err, rtti.ErrPathBroken, "a layer in no scene")
}

func TestLayerTint_MissingOrShortData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.data.Layers.Append(&Layer{Name: "Raw"})
	f.data.Layers.Append(&Layer{Name: "Short", Tint: []float64{1}})

	for _, p := range []string{`layers["Raw"].tint[0]`, `layers["Short"].tint[2]`, `layers["Short"].tint`} {
		require.NotPanics(t, func() {
			_, err := path.Get(ctx, f.reg, f.root, p)
			require.ErrorIs(t, err, rtti.ErrTypeMismatch, p)
		}, p)
	}

	// Writing the whole array repairs it.
	require.NoError(t, path.Set(ctx, f.reg, f.root, `layers["Raw"].tint`, cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.Zero, cty.Zero})))
	v, err := path.Get(ctx, f.reg, f.root, `layers["Raw"].tint[0]`)
	require.NoError(t, err)
	assert.True(t, v.RawEquals(cty.NumberIntVal(1)))
}

func TestLockedLayerRejectsEdits(t *testing.T) {
	f := newFixture(t)
	reports := &report.List{}
	ctx := report.WithList(context.Background(), reports)
	bg := f.layer(t, "Background")

	err := access.Set(ctx, bg, f.prop(t, LayerID, "opacity"), cty.NumberFloatVal(0.5))
	require.ErrorIs(t, err, rtti.ErrNotEditable)
	assert.ErrorContains(t, err, `layer "Background" is locked`)
	assert.Equal(t, 1.0, f.data.Layers.At(0).Opacity)

	// The lock itself stays editable.
	require.NoError(t, access.Set(ctx, bg, f.prop(t, LayerID, "lock"), cty.False))
	require.NoError(t, access.Set(ctx, bg, f.prop(t, LayerID, "opacity"), cty.NumberFloatVal(0.5)))
	assert.Equal(t, 0.5, f.data.Layers.At(0).Opacity)
}

func TestLayerValuesAreConstrained(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	glow := f.layer(t, "Glow")

	require.NoError(t, access.Set(ctx, glow, f.prop(t, LayerID, "opacity"), cty.NumberFloatVal(3)))
	assert.Equal(t, 1.0, f.data.Layers.At(2).Opacity)

	blend := f.prop(t, LayerID, "blend_mode")
	got, err := access.Get(ctx, glow, blend)
	require.NoError(t, err)
	assert.Equal(t, cty.StringVal("ADD"), got)
	require.NoError(t, access.Set(ctx, glow, blend, cty.StringVal("MULTIPLY")))
	assert.Equal(t, BlendMultiply, f.data.Layers.At(2).Blend)
	assert.ErrorIs(t, access.Set(ctx, glow, blend, cty.StringVal("SCREEN")), rtti.ErrTypeMismatch)

	tint := f.prop(t, LayerID, "tint")
	err = access.Set(ctx, glow, tint, cty.ListVal([]cty.Value{cty.NumberIntVal(0), cty.NumberIntVal(1)}))
	require.ErrorIs(t, err, rtti.ErrTypeMismatch)
	assert.Equal(t, []float64{1, 0.9, 0.6}, f.data.Layers.At(2).Tint)
}

func TestPivotItemsDependOnParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	objects := f.prop(t, SceneID, "objects")
	pivot := f.prop(t, ObjectID, "pivot")

	cube, _, err := coll.LookupKey(ctx, f.reg, f.root, objects, "Cube")
	require.NoError(t, err)
	lamp, _, err := coll.LookupKey(ctx, f.reg, f.root, objects, "Lamp")
	require.NoError(t, err)

	assert.ErrorIs(t, access.Set(ctx, cube, pivot, cty.StringVal("PARENT")), rtti.ErrTypeMismatch)
	got, err := access.Get(ctx, lamp, pivot)
	require.NoError(t, err)
	assert.Equal(t, cty.StringVal("PARENT"), got)

	// A parent-relative pivot pins the parent pointer.
	parent := f.prop(t, ObjectID, "parent")
	assert.ErrorIs(t, access.Set(ctx, lamp, parent, cty.NullVal(rtti.InstanceType)), rtti.ErrNotEditable)
	require.NoError(t, access.Set(ctx, lamp, pivot, cty.StringVal("CURSOR")))
	require.NoError(t, access.Set(ctx, lamp, parent, cty.NullVal(rtti.InstanceType)))
	assert.Nil(t, f.data.Objects.At(1).Parent)
}

func TestLayers_LookupAndRemovePreserveOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	layers := f.prop(t, SceneID, "layers")

	p, i, err := coll.LookupKey(ctx, f.reg, f.root, layers, "Paint")
	require.NoError(t, err)
	assert.Equal(t, 1, i)
	assert.Same(t, f.data.Layers.At(1), p.Data)

	require.NoError(t, coll.RemoveKey(ctx, f.reg, f.root, layers, "Paint"))
	keys, err := coll.Keys(ctx, f.reg, f.root, layers)
	require.NoError(t, err)
	assert.Equal(t, []string{"Background", "Glow"}, keys)

	_, _, err = coll.LookupKey(ctx, f.reg, f.root, layers, "Paint")
	assert.ErrorIs(t, err, rtti.ErrCollectionKeyNotFound)
}

func TestGroupChannels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	action, _, err := coll.LookupKey(ctx, f.reg, f.root, f.prop(t, SceneID, "actions"), "CubeAction")
	require.NoError(t, err)

	var got []string
	transforms, err := GroupChannels(ctx, f.reg, action, "Object Transforms")
	require.NoError(t, err)
	for _, ch := range transforms {
		got = append(got, ch.Data.(*Channel).DataPath)
	}
	assert.Equal(t, []string{`objects["Cube"].location`, `objects["Cube"].location`}, got)

	layers, err := GroupChannels(ctx, f.reg, action, "Layers")
	require.NoError(t, err)
	assert.Len(t, layers, 2)

	none, err := GroupChannels(ctx, f.reg, action, "Missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestResolveChannels(t *testing.T) {
	f := newFixture(t)
	reports := &report.List{}
	ctx := report.WithList(context.Background(), reports)
	action, _, err := coll.LookupKey(ctx, f.reg, f.root, f.prop(t, SceneID, "actions"), "CubeAction")
	require.NoError(t, err)

	targets, broken, err := ResolveChannels(ctx, f.reg, f.root, action)
	require.NoError(t, err)
	assert.Empty(t, broken)
	require.Len(t, targets, 4)
	assert.Equal(t, 2, targets[1].Index)
	assert.Equal(t, "tint", targets[3].Prop.ID)

	require.NoError(t, coll.RemoveKey(ctx, f.reg, f.root, f.prop(t, SceneID, "layers"), "Glow"))
	targets, broken, err = ResolveChannels(ctx, f.reg, f.root, action)
	require.NoError(t, err)
	assert.Len(t, targets, 3)
	require.Len(t, broken, 1)
	assert.Equal(t, `layers["Glow"].tint`, broken[0].DataPath)
	assert.True(t, reports.Has(rtti.KindPathBroken))
}

func TestModifierRefinement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := path.Resolve(ctx, f.reg, f.root, `objects["Cube"].modifiers["Wave"].strength`)
	require.NoError(t, err)
	assert.Equal(t, WaveModifierID, res.Ptr.Type.ID)

	v, err := path.Get(ctx, f.reg, f.root, `objects["Cube"].modifiers[0].levels`)
	require.NoError(t, err)
	assert.Equal(t, cty.NumberIntVal(2), v)

	_, err = path.Resolve(ctx, f.reg, f.root, `objects["Cube"].modifiers["Subdivision"].strength`)
	assert.ErrorIs(t, err, rtti.ErrPathBroken)
}

func TestScriptModifierDescribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := RegisterScriptModifier(ctx, f.reg, "OutlineModifier", "outline.py",
		func(ctx context.Context, self rtti.Ptr, args []cty.Value) (cty.Value, error) {
			return cty.StringVal("outline " + self.Data.(*Modifier).Name), nil
		},
		rtti.PropSpec{ID: "thickness", Kind: rtti.KindFloat, Flags: rtti.FlagEditable,
			Get: rtti.FieldGetter("Strength"), Set: rtti.FieldSetter("Strength")})
	require.NoError(t, err)

	cube := f.data.Objects.At(0)
	cube.Modifiers.Append(&Modifier{Name: "Outline", Type: ModifierScript, Script: "OutlineModifier", Strength: 0.1})

	res, err := path.Resolve(ctx, f.reg, f.root, `objects["Cube"].modifiers["Outline"].thickness`)
	require.NoError(t, err)
	assert.Equal(t, "OutlineModifier", res.Ptr.Type.ID)

	got, err := invoke.CallByName(ctx, f.reg, res.Ptr, "describe", nil)
	require.NoError(t, err)
	assert.Equal(t, cty.StringVal("outline Outline"), got)

	wave, err := path.Resolve(ctx, f.reg, f.root, `objects["Cube"].modifiers["Wave"].strength`)
	require.NoError(t, err)
	_, err = invoke.CallByName(ctx, f.reg, wave.Ptr, "describe", nil)
	assert.ErrorIs(t, err, rtti.ErrUnresolvedCallee)

	// Unloading the script leaves its instances as plain modifiers.
	require.NoError(t, f.reg.UnregisterStruct(ctx, "OutlineModifier"))
	_, err = path.Resolve(ctx, f.reg, f.root, `objects["Cube"].modifiers["Outline"].thickness`)
	assert.ErrorIs(t, err, rtti.ErrPathBroken)
}

func TestRenameLayer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := invoke.CallByName(ctx, f.reg, f.root, "rename_layer", map[string]cty.Value{
		"old": cty.StringVal("Paint"), "new": cty.StringVal("Ink"),
	})
	require.NoError(t, err)
	assert.Equal(t, cty.True, got)
	assert.Equal(t, []string{"Background", "Ink", "Glow"}, layerNames(f.data))
	assert.Equal(t, `layers["Ink"].opacity`, f.data.Actions.At(0).Channels.At(2).DataPath)

	got, err = invoke.CallByName(ctx, f.reg, f.root, "rename_layer", map[string]cty.Value{
		"old": cty.StringVal("Paint"), "new": cty.StringVal("Other"),
	})
	require.NoError(t, err)
	assert.Equal(t, cty.False, got)

	_, err = invoke.CallByName(ctx, f.reg, f.root, "rename_layer", map[string]cty.Value{"old": cty.StringVal("Ink")})
	require.ErrorIs(t, err, rtti.ErrBadArgument)
	var re *rtti.Error
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "new", re.Param)
	assert.Equal(t, []string{"Background", "Ink", "Glow"}, layerNames(f.data))
}

func TestAddLayer_Uniquifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := invoke.CallByName(ctx, f.reg, f.root, "add_layer", map[string]cty.Value{
		"name": cty.StringVal("Paint"), "after": cty.StringVal("Paint"),
	})
	require.NoError(t, err)
	added, ok := rtti.PtrFromValue(got)
	require.True(t, ok)
	assert.Equal(t, "Paint.001", added.Data.(*Layer).Name)
	assert.Equal(t, []string{"Background", "Paint", "Paint.001", "Glow"}, layerNames(f.data))

	_, err = invoke.CallByName(ctx, f.reg, f.root, "add_layer", map[string]cty.Value{"name": cty.StringVal("Top")})
	require.NoError(t, err)
	assert.Equal(t, "Top", f.data.Layers.At(4).Name)

	_, err = invoke.CallByName(ctx, f.reg, f.root, "add_layer", map[string]cty.Value{
		"name": cty.StringVal("X"), "after": cty.StringVal("Nope"),
	})
	assert.ErrorIs(t, err, rtti.ErrCollectionKeyNotFound)
}

func TestOverride_InsertAfterMissingAnchor(t *testing.T) {
	f := newFixture(t)
	reports := &report.List{}
	ctx := report.WithList(context.Background(), reports)

	lib := DemoData()
	lib.Layers.Append(NewLayer("Sketch"))
	src, err := Library(f.reg, lib)
	require.NoError(t, err)

	ops := []override.Op{override.NewInsertAfter("layers", "Draft", "Sketch")}
	require.NoError(t, override.ApplyAll(ctx, f.reg, f.root, src, ops))
	assert.Equal(t, []string{"Sketch", "Background", "Paint", "Glow"}, layerNames(f.data))
	assert.True(t, reports.Has(rtti.KindOverrideAnchorMissing))
}

func TestOverride_DiffReplaysOntoFreshLibrary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lib, err := Library(f.reg, DemoData())
	require.NoError(t, err)

	require.NoError(t, path.Set(ctx, f.reg, f.root, `layers["Paint"].opacity`, cty.NumberFloatVal(0.25)))
	require.NoError(t, path.Set(ctx, f.reg, f.root, `objects["Cube"].modifiers["Wave"].strength`, cty.NumberFloatVal(1.5)))
	_, err = invoke.CallByName(ctx, f.reg, f.root, "add_layer", map[string]cty.Value{
		"name": cty.StringVal("Sketch"), "after": cty.StringVal("Paint"),
	})
	require.NoError(t, err)

	ops, err := override.Diff(ctx, f.reg, f.root, lib)
	require.NoError(t, err)
	require.Len(t, ops, 3)

	fresh, err := Library(f.reg, DemoData())
	require.NoError(t, err)
	require.NoError(t, override.ApplyAll(ctx, f.reg, fresh, f.root, ops))

	got := fresh.Data.(*Scene)
	assert.Equal(t, layerNames(f.data), layerNames(got))
	assert.Empty(t, cmp.Diff(f.data.Layers.Items(), got.Layers.Items()))
	assert.Equal(t, 1.5, got.Objects.At(0).Modifiers.At(1).Strength)
}

func TestStaleSceneIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	paint := f.layer(t, "Paint")

	require.True(t, f.store.Remove(ctx, f.root.Owner.Handle))
	_, err := access.Get(ctx, paint, f.prop(t, LayerID, "hide"))
	assert.ErrorIs(t, err, rtti.ErrStaleInstance)
	_, err = path.Resolve(ctx, f.reg, f.root, "frame_current")
	assert.ErrorIs(t, err, rtti.ErrStaleInstance)
}

func TestSchemaListsSceneTypes(t *testing.T) {
	f := newFixture(t)
	infos, err := f.reg.Schema()
	require.NoError(t, err)
	var ids []string
	for _, s := range infos {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{ModifierID, WaveModifierID, SubsurfModifierID, LayerID, ObjectID, GroupID, ChannelID, ActionID, SceneID}, ids)
}
