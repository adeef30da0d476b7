package rtti

// RefineFunc returns the identifier of the most specific registered subtype
// for p, reading only p's own data. An empty result means "no refinement".
type RefineFunc func(p Ptr) string

// PathFunc returns the path of p relative to its owning top-level entity.
type PathFunc func(p Ptr) (string, bool)

// StructDef is a registered type. Its identifier and base never change after
// registration.
type StructDef struct {
	ID          string
	Description string
	Base        *StructDef

	// NameProp is the string property used as the key when instances of this
	// type live in a collection.
	NameProp string

	// Ext carries per-type trampolines for extension (script) types.
	Ext *Extension

	props     []*PropDef
	propIndex map[string]*PropDef
	fns       []*FnDef
	fnIndex   map[string]*FnDef

	refine   RefineFunc
	pathFn   PathFunc
	dynamic  bool
	registry *Registry
}

// StructOption configures a StructDef at registration.
type StructOption func(*StructDef)

// WithDescription sets the human readable description.
func WithDescription(desc string) StructOption {
	return func(s *StructDef) { s.Description = desc }
}

// WithNameProp sets the key property used by collections.
func WithNameProp(id string) StructOption {
	return func(s *StructDef) { s.NameProp = id }
}

// WithRefine installs the refinement callback.
func WithRefine(fn RefineFunc) StructOption {
	return func(s *StructDef) { s.refine = fn }
}

// WithPath installs the callback computing an instance's path from its owner.
func WithPath(fn PathFunc) StructOption {
	return func(s *StructDef) { s.pathFn = fn }
}

// Prop looks up a property by identifier on s or any of its bases.
func (s *StructDef) Prop(id string) (*PropDef, bool) {
	for t := s; t != nil; t = t.Base {
		if p, ok := t.propIndex[id]; ok {
			return p, true
		}
	}
	return nil, false
}

// Props returns every property visible on s, base properties first.
func (s *StructDef) Props() []*PropDef {
	if s.Base == nil {
		return append([]*PropDef(nil), s.props...)
	}
	return append(s.Base.Props(), s.props...)
}

// OwnProps returns the properties registered directly on s.
func (s *StructDef) OwnProps() []*PropDef {
	return append([]*PropDef(nil), s.props...)
}

// Fn looks up a function by identifier on s or any of its bases.
func (s *StructDef) Fn(id string) (*FnDef, bool) {
	for t := s; t != nil; t = t.Base {
		if f, ok := t.fnIndex[id]; ok {
			return f, true
		}
	}
	return nil, false
}

// Fns returns every function visible on s, base functions first.
func (s *StructDef) Fns() []*FnDef {
	if s.Base == nil {
		return append([]*FnDef(nil), s.fns...)
	}
	return append(s.Base.Fns(), s.fns...)
}

// IsA reports whether s is other or derives from it.
func (s *StructDef) IsA(other *StructDef) bool {
	for t := s; t != nil; t = t.Base {
		if t == other {
			return true
		}
	}
	return false
}

// Dynamic reports whether s was registered at runtime as an extension type.
func (s *StructDef) Dynamic() bool {
	return s.dynamic
}

// PathFunc returns the path callback of s or its nearest base.
func (s *StructDef) PathFunc() PathFunc {
	for t := s; t != nil; t = t.Base {
		if t.pathFn != nil {
			return t.pathFn
		}
	}
	return nil
}

// Root returns the top of s's inheritance chain.
func (s *StructDef) Root() *StructDef {
	t := s
	for t.Base != nil {
		t = t.Base
	}
	return t
}
