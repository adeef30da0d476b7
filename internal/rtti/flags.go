package rtti

import "strings"

// Flag is a property or parameter capability bit.
type Flag uint16

const (
	// FlagEditable allows Set through the access layer.
	FlagEditable Flag = 1 << iota
	// FlagAnimatable allows the property to be the target of an animation path.
	FlagAnimatable
	// FlagOverridable allows library overrides to write the property.
	FlagOverridable
	// FlagNeverNull marks pointer properties that always resolve to an instance.
	FlagNeverNull
	// FlagRequired marks function parameters that must be supplied.
	FlagRequired
)

// Has reports whether all bits of want are set.
func (f Flag) Has(want Flag) bool {
	return f&want == want
}

func (f Flag) String() string {
	var parts []string
	for _, n := range []struct {
		f    Flag
		name string
	}{
		{FlagEditable, "editable"},
		{FlagAnimatable, "animatable"},
		{FlagOverridable, "overridable"},
		{FlagNeverNull, "never_null"},
		{FlagRequired, "required"},
	} {
		if f.Has(n.f) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
