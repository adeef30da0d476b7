package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/specialistvlad/rtprop/internal/rtti"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestRun_SetThenGet(t *testing.T) {
	a, out, _ := SetupAppTest(t, &Config{
		Sets: []Assignment{
			{Path: `layers["Paint"].opacity`, Value: "0.25"},
			{Path: `objects["Cube"].location`, Value: "[1, 2, 3]"},
		},
		Gets: []string{`layers["Paint"].opacity`, `objects["Cube"].location`, "active_layer"},
	})

	require.NoError(t, a.Run(context.Background()))
	assert.Contains(t, out.String(), `layers["Paint"].opacity = 0.25`)
	assert.Contains(t, out.String(), `objects["Cube"].location = [1, 2, 3]`)
	assert.Contains(t, out.String(), "active_layer = Layer@")
}

func TestRun_FailuresAreJoined(t *testing.T) {
	a, out, logs := SetupAppTest(t, &Config{
		Sets: []Assignment{
			{Path: `layers["Background"].opacity`, Value: "0.5"},
			{Path: `layers["Paint"].hide`, Value: "true"},
		},
		Gets: []string{`layers["Missing"].hide`, `layers["Paint"].hide`},
	})

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, rtti.ErrNotEditable)
	assert.ErrorIs(t, err, rtti.ErrPathBroken)
	assert.Contains(t, out.String(), `layers["Paint"].hide = true`)
	assert.Contains(t, logs.String(), "path_broken")
}

func TestRun_RenamedLayerBreaksChannel(t *testing.T) {
	a, _, logs := SetupAppTest(t, &Config{
		Sets: []Assignment{{Path: `layers["Glow"].name`, Value: `"Shine"`}},
	})

	require.NoError(t, a.Run(context.Background()))
	assert.Contains(t, logs.String(), "Animation channel no longer resolves.")
	assert.Contains(t, logs.String(), `layers[\"Glow\"].tint`)
}

func TestRun_OverridesFromHCL(t *testing.T) {
	dir := t.TempDir()
	doc := `
override {
  path  = "layers[\"Paint\"].opacity"
  value = 0.5
}
override {
  path  = "objects[\"Cube\"].location"
  op    = "add"
  value = [1, 0, 0]
}
override {
  path   = "layers"
  op     = "insert_after"
  anchor = "Background"
  item   = "Glow"
}
override {
  path  = "layers[\"Nope\"].hide"
  value = true
}
`
	file := filepath.Join(dir, "local.hcl")
	require.NoError(t, os.WriteFile(file, []byte(doc), 0600))

	a, out, logs := SetupAppTest(t, &Config{
		OverridesPath: dir,
		Gets:          []string{`layers["Paint"].opacity`, `objects["Cube"].location`, `layers[1].name`},
	})

	require.NoError(t, a.Run(context.Background()))
	assert.Contains(t, out.String(), `layers["Paint"].opacity = 0.5`)
	assert.Contains(t, out.String(), `objects["Cube"].location = [1, 0, 0]`)
	assert.Contains(t, out.String(), `layers[1].name = "Glow.001"`)
	assert.Contains(t, logs.String(), "Some overrides were skipped.")
	assert.Contains(t, logs.String(), "dirty=true")
}

func TestRun_ManyOverridesDoNotRaceRecompute(t *testing.T) {
	var doc strings.Builder
	for i := range 200 {
		doc.WriteString("override {\n  path   = \"layers\"\n  op     = \"insert_after\"\n  anchor = \"Background\"\n  item   = \"Glow\"\n}\n")
		fmt.Fprintf(&doc, "override {\n  path  = \"layers[\\\"Paint\\\"].opacity\"\n  value = %g\n}\n", float64(i%10)/10)
	}
	file := filepath.Join(t.TempDir(), "many.hcl")
	require.NoError(t, os.WriteFile(file, []byte(doc.String()), 0600))

	a, out, logs := SetupAppTest(t, &Config{
		OverridesPath: file,
		Gets:          []string{`layers["Paint"].opacity`, `layers[202].name`},
	})

	require.NoError(t, a.Run(context.Background()))
	assert.Contains(t, out.String(), `layers["Paint"].opacity = 0.9`)
	assert.Contains(t, out.String(), `layers[202].name = "Glow"`)
	assert.Contains(t, logs.String(), "Overrides applied.")
	assert.NotContains(t, logs.String(), "Some overrides were skipped.")
}

func TestRun_DiffRoundTripsThroughJSON(t *testing.T) {
	a, out, _ := SetupAppTest(t, &Config{
		Sets:     []Assignment{{Path: `layers["Paint"].blend_mode`, Value: `"MULTIPLY"`}},
		DumpDiff: true,
	})
	require.NoError(t, a.Run(context.Background()))
	assert.Contains(t, out.String(), `"path": "layers[\"Paint\"].blend_mode"`)

	file := filepath.Join(t.TempDir(), "overrides.json")
	require.NoError(t, os.WriteFile(file, []byte(out.String()), 0600))

	b, out2, _ := SetupAppTest(t, &Config{
		OverridesPath: file,
		Gets:          []string{`layers["Paint"].blend_mode`},
	})
	require.NoError(t, b.Run(context.Background()))
	assert.Contains(t, out2.String(), `layers["Paint"].blend_mode = "MULTIPLY"`)
}

func TestRun_Schema(t *testing.T) {
	a, out, _ := SetupAppTest(t, &Config{DumpSchema: true})
	require.NoError(t, a.Run(context.Background()))
	assert.Contains(t, out.String(), `"id": "Scene"`)
	assert.Contains(t, out.String(), `"base": "Modifier"`)
}

func TestRun_MissingOverridesPath(t *testing.T) {
	a, _, _ := SetupAppTest(t, &Config{OverridesPath: filepath.Join(t.TempDir(), "missing.hcl")})
	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load overrides")
}

func TestNewConfig(t *testing.T) {
	_, err := NewConfig(Config{WorkerCount: 1})
	assert.ErrorContains(t, err, "nothing to do")

	_, err = NewConfig(Config{DumpSchema: true})
	assert.ErrorContains(t, err, "worker count")

	cfg, err := NewConfig(Config{Gets: []string{"frame_current"}, WorkerCount: 1, NotifyURL: "http://localhost:3000"})
	require.NoError(t, err)
	assert.Equal(t, "/", cfg.NotifyNamespace)
}

func TestParseAssignment(t *testing.T) {
	testCases := []struct {
		in      string
		want    Assignment
		wantErr bool
	}{
		{in: "frame_current=12", want: Assignment{Path: "frame_current", Value: "12"}},
		{in: `layers["a=b"].name = "c=d"`, want: Assignment{Path: `layers["a=b"].name`, Value: `"c=d"`}},
		{in: "frame_current", wantErr: true},
		{in: "=1", wantErr: true},
		{in: "frame_current=", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAssignment(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseAndFormatValue(t *testing.T) {
	for _, src := range []string{"true", "0.5", `"Ink"`, "[1, 0, 0]"} {
		v, err := parseValue(src)
		require.NoError(t, err, src)
		assert.Equal(t, src, formatValue(v))
	}
	_, err := parseValue("layers[")
	assert.Error(t, err)
	_, err = parseValue("var.x")
	assert.Error(t, err)

	assert.Equal(t, "null", formatValue(cty.NullVal(rtti.InstanceType)))
	assert.Equal(t, "null", formatValue(cty.NilVal))
}
