package path

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/specialistvlad/rtprop/internal/ctxlog"
	"github.com/specialistvlad/rtprop/internal/listbase"
	"github.com/specialistvlad/rtprop/internal/report"
	"github.com/specialistvlad/rtprop/internal/rtti"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

type modifier struct {
	Name     string
	Type     string
	Strength float64
}

type layer struct {
	Name      string
	Hide      bool
	Color     []float64
	Modifiers *listbase.List[modifier]
}

type scene struct {
	Layers *listbase.List[layer]
	Active *layer
}

type fixture struct {
	reg                              *rtti.Registry
	scene, layer, modifier, wave     *rtti.StructDef
	layers, active, hide, color, str *rtti.PropDef
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{reg: rtti.New()}
	r := f.reg

	f.modifier = rtti.Must(r.RegisterStruct(ctx, "Modifier", nil, rtti.WithNameProp("name"),
		rtti.WithRefine(rtti.RefineByTag(func(d any) string { return d.(*modifier).Type }, map[string]string{"WAVE": "WaveModifier"}))))
	rtti.Must(r.RegisterProp(ctx, f.modifier, rtti.PropSpec{ID: "name", Kind: rtti.KindString, Flags: rtti.FlagEditable, Get: rtti.FieldGetter("Name"), Set: rtti.FieldSetter("Name")}))
	f.wave = rtti.Must(r.RegisterStruct(ctx, "WaveModifier", f.modifier))
	f.str = rtti.Must(r.RegisterProp(ctx, f.wave, rtti.PropSpec{ID: "strength", Kind: rtti.KindFloat, Flags: rtti.FlagEditable | rtti.FlagAnimatable, Get: rtti.FieldGetter("Strength"), Set: rtti.FieldSetter("Strength")}))

	f.layer = rtti.Must(r.RegisterStruct(ctx, "Layer", nil, rtti.WithNameProp("name")))
	rtti.Must(r.RegisterProp(ctx, f.layer, rtti.PropSpec{ID: "name", Kind: rtti.KindString, Flags: rtti.FlagEditable, Get: rtti.FieldGetter("Name"), Set: rtti.FieldSetter("Name")}))
	f.hide = rtti.Must(r.RegisterProp(ctx, f.layer, rtti.PropSpec{ID: "hide", Kind: rtti.KindBool, Flags: rtti.FlagEditable, Get: rtti.FieldGetter("Hide"), Set: rtti.FieldSetter("Hide")}))
	f.color = rtti.Must(r.RegisterProp(ctx, f.layer, rtti.PropSpec{ID: "color", Kind: rtti.KindFloat, ArrayLen: 3, Flags: rtti.FlagEditable | rtti.FlagAnimatable, Get: rtti.FieldGetter("Color"), Set: rtti.FieldSetter("Color")}))
	rtti.Must(r.RegisterProp(ctx, f.layer, rtti.PropSpec{
		ID: "modifiers", Kind: rtti.KindCollection, Target: f.modifier,
		Collection: rtti.ListOf(func(o any) *listbase.List[modifier] { return o.(*layer).Modifiers }, nil),
	}))

	f.scene = rtti.Must(r.RegisterStruct(ctx, "Scene", nil))
	f.layers = rtti.Must(r.RegisterProp(ctx, f.scene, rtti.PropSpec{
		ID: "layers", Kind: rtti.KindCollection, Target: f.layer,
		Collection: rtti.ListOf(func(o any) *listbase.List[layer] { return o.(*scene).Layers }, nil),
	}))
	f.active = rtti.Must(r.RegisterProp(ctx, f.scene, rtti.PropSpec{
		ID: "active_layer", Kind: rtti.KindPointer, Target: f.layer, Flags: rtti.FlagEditable,
		Get: rtti.PtrFieldGetter("Active", f.layer), Set: rtti.PtrFieldSetter("Active"),
	}))
	return f
}

func newScene() *scene {
	base := &layer{Name: "Base", Color: []float64{0, 0, 0}, Modifiers: listbase.Of[modifier]()}
	paint := &layer{Name: "Paint", Color: []float64{1, 0.5, 0}, Modifiers: listbase.Of(
		&modifier{Name: "Smooth", Type: "SMOOTH"},
		&modifier{Name: "Wave", Type: "WAVE", Strength: 0.5},
	)}
	return &scene{Layers: listbase.Of(base, paint), Active: paint}
}

func (f *fixture) root(s *scene) rtti.Ptr {
	return rtti.NewPtr(s, f.scene, rtti.OwnerRef{ID: "scene"})
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := newScene()
	paint := s.Layers.At(1)

	testCases := []struct {
		name  string
		path  string
		data  any
		prop  string
		index int
	}{
		{"keyed item attribute", `layers["Paint"].hide`, paint, "hide", -1},
		{"pointer dereference", "active_layer.color[2]", paint, "color", 2},
		{"positional item", "layers[1].color", paint, "color", -1},
		{"refined subtype prop", `layers["Paint"].modifiers["Wave"].strength`, paint.Modifiers.At(1), "strength", -1},
		{"collection item", `layers["Base"]`, s, "layers", 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Resolve(ctx, f.reg, f.root(s), tc.path)
			require.NoError(t, err)
			assert.Same(t, tc.data, res.Ptr.Data)
			assert.Equal(t, tc.prop, res.Prop.ID)
			assert.Equal(t, tc.index, res.Index)
		})
	}

	res, err := Resolve(ctx, f.reg, f.root(s), `layers["Paint"].modifiers["Wave"]`)
	require.NoError(t, err)
	assert.Equal(t, "WaveModifier", res.Item.Type.ID)
}

func TestResolve_BrokenIsInfo(t *testing.T) {
	f := newFixture(t)
	s := newScene()

	var logs bytes.Buffer
	reports := &report.List{}
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&logs, nil)))
	ctx = report.WithList(ctx, reports)

	for _, p := range []string{
		`layers["Gone"].hide`,
		"layers[7].hide",
		"hide",
		"active_layer.hide.x",
		"active_layer.color[3]",
		`layers["Paint"].modifiers["Smooth"].strength`,
		"layers[",
	} {
		t.Run(p, func(t *testing.T) {
			_, err := Resolve(ctx, f.reg, f.root(s), p)
			require.ErrorIs(t, err, rtti.ErrPathBroken)
		})
	}

	for _, r := range reports.Items() {
		assert.Equal(t, report.Info, r.Severity, r.Message)
	}
	assert.Equal(t, 7, reports.Len())
	assert.NotContains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "level=INFO")

	s.Active = nil
	_, err := Resolve(ctx, f.reg, f.root(s), "active_layer.hide")
	require.ErrorIs(t, err, rtti.ErrPathBroken)
}

func TestResolveAnimatable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.root(newScene())

	_, err := ResolveAnimatable(ctx, f.reg, root, "active_layer.color[0]")
	require.NoError(t, err)
	_, err = ResolveAnimatable(ctx, f.reg, root, "active_layer.hide")
	require.ErrorIs(t, err, rtti.ErrNotAnimatable)
}

func TestGetSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := newScene()
	root := f.root(s)

	require.NoError(t, Set(ctx, f.reg, root, `layers["Paint"].modifiers["Wave"].strength`, cty.NumberFloatVal(2)))
	assert.Equal(t, 2.0, s.Layers.At(1).Modifiers.At(1).Strength)

	require.NoError(t, Set(ctx, f.reg, root, "active_layer.color[1]", cty.NumberFloatVal(0.25)))
	v, err := Get(ctx, f.reg, root, `layers["Paint"].color[1]`)
	require.NoError(t, err)
	assert.True(t, v.RawEquals(cty.NumberFloatVal(0.25)))

	v, err = Get(ctx, f.reg, root, `layers["Base"]`)
	require.NoError(t, err)
	item, ok := rtti.PtrFromValue(v)
	require.True(t, ok)
	assert.Same(t, s.Layers.At(0), item.Data)

	require.ErrorIs(t, Set(ctx, f.reg, root, "layers", cty.True), rtti.ErrTypeMismatch)
}

func TestPathOf_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := newScene()
	root := f.root(s)
	base, paint := s.Layers.At(0), s.Layers.At(1)

	testCases := []struct {
		data  any
		typ   *rtti.StructDef
		prop  *rtti.PropDef
		index int
		want  string
	}{
		{s, f.scene, f.active, -1, "active_layer"},
		{s, f.scene, f.layers, 1, `layers["Paint"]`},
		{base, f.layer, f.hide, -1, `layers["Base"].hide`},
		{paint, f.layer, f.color, 2, `layers["Paint"].color[2]`},
		{paint.Modifiers.At(1), f.modifier, f.str, -1, `layers["Paint"].modifiers["Wave"].strength`},
	}
	for _, tc := range testCases {
		t.Run(tc.want, func(t *testing.T) {
			p := root.Child(tc.data, tc.typ)
			got, err := PathOf(ctx, f.reg, root, p, tc.prop, tc.index)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			res, err := Resolve(ctx, f.reg, root, got)
			require.NoError(t, err)
			assert.Same(t, tc.prop, res.Prop)
			assert.Equal(t, tc.index, res.Index)
			if tc.prop.Kind == rtti.KindCollection {
				assert.True(t, res.Ptr.Same(p))
			} else {
				assert.Same(t, tc.data, res.Ptr.Data)
			}
		})
	}
}

func TestPathOf_DuplicateKeysFallBackToIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := newScene()
	require.NoError(t, s.Layers.Insert(0, &layer{Name: "Paint", Modifiers: listbase.Of[modifier]()}))
	root := f.root(s)

	got, err := PathOf(ctx, f.reg, root, root.Child(s.Layers.At(2), f.layer), f.hide, -1)
	require.NoError(t, err)
	assert.Equal(t, "layers[2].hide", got)
}

func TestPathOf_Unreachable(t *testing.T) {
	f := newFixture(t)
	root := f.root(newScene())
	_, err := PathOf(context.Background(), f.reg, root, root.Child(&layer{Name: "Loose"}, f.layer), f.hide, -1)
	require.ErrorIs(t, err, rtti.ErrPathBroken)
}
