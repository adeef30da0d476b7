package scene

import (
	"slices"

	"github.com/specialistvlad/rtprop/internal/listbase"
)

// Blend modes stored in Layer.Blend.
const (
	BlendMix      = 0
	BlendAdd      = 3
	BlendMultiply = 7
)

// Pivot modes stored in Object.Pivot.
const (
	PivotOrigin = iota
	PivotParent
	PivotCursor
)

// Modifier type tags stored in Modifier.Type.
const (
	ModifierWave    = "WAVE"
	ModifierSubsurf = "SUBSURF"
	ModifierScript  = "SCRIPT"
)

type Scene struct {
	Name    string
	Frame   int
	Layers  *listbase.List[Layer]
	Objects *listbase.List[Object]
	Actions *listbase.List[Action]
	Active  *Layer
}

type Layer struct {
	Name    string
	Hide    bool
	Locked  bool
	Opacity float64
	Blend   int
	Tint    []float64
}

type Object struct {
	Name      string
	Location  []float64
	Pivot     int
	Parent    *Object
	Modifiers *listbase.List[Modifier]
}

// Modifier is the common data of every modifier. Type selects the
// registered subtype; for script modifiers Script names it directly.
type Modifier struct {
	Name     string
	Type     string
	Script   string
	Show     bool
	Strength float64
	Speed    float64
	Levels   int
}

type Action struct {
	Name     string
	Groups   *listbase.List[Group]
	Channels *listbase.List[Channel]
}

type Group struct {
	Name string
}

// Channel animates one property, or one element of an array property,
// addressed from the scene root.
type Channel struct {
	DataPath   string
	ArrayIndex int
	Group      string
}

// NewScene returns an empty scene with all collections allocated.
func NewScene(name string) *Scene {
	return &Scene{
		Name:    name,
		Layers:  listbase.Of[Layer](),
		Objects: listbase.Of[Object](),
		Actions: listbase.Of[Action](),
	}
}

// NewLayer returns a visible, fully opaque layer.
func NewLayer(name string) *Layer {
	return &Layer{Name: name, Opacity: 1, Tint: []float64{1, 1, 1}}
}

// NewObject returns an object at the origin without modifiers.
func NewObject(name string) *Object {
	return &Object{Name: name, Location: []float64{0, 0, 0}, Modifiers: listbase.Of[Modifier]()}
}

// NewAction returns an action without groups or channels.
func NewAction(name string) *Action {
	return &Action{Name: name, Groups: listbase.Of[Group](), Channels: listbase.Of[Channel]()}
}

func copyLayer(l *Layer) *Layer {
	dup := *l
	dup.Tint = slices.Clone(l.Tint)
	return &dup
}

// copyObject duplicates o and its modifier stack. Parent is shared.
func copyObject(o *Object) *Object {
	dup := *o
	dup.Location = slices.Clone(o.Location)
	dup.Modifiers = listbase.Of[Modifier]()
	for _, m := range o.Modifiers.Items() {
		dup.Modifiers.Append(copyModifier(m))
	}
	return &dup
}

func copyModifier(m *Modifier) *Modifier {
	dup := *m
	return &dup
}

func copyAction(a *Action) *Action {
	dup := NewAction(a.Name)
	for _, g := range a.Groups.Items() {
		c := *g
		dup.Groups.Append(&c)
	}
	for _, ch := range a.Channels.Items() {
		c := *ch
		dup.Channels.Append(&c)
	}
	return dup
}
