// Package rtti is the runtime type registry that the rest of the property
// layer is built on.
//
// A Registry stores StructDef descriptors, each owning an ordered set of
// PropDef and FnDef descriptors. Descriptors are created once, at startup or
// when a script registers an extension type, and are never mutated after
// registration. Instances are addressed through Ptr, a transient, non-owning
// reference that pairs raw instance data with its StructDef and a weak,
// generation-checked reference to the owning top-level entity.
//
// Values cross the layer as cty.Value:
//
//	bool          cty.Bool
//	int, float    cty.Number
//	string, enum  cty.String (enums by item identifier)
//	pointer       capsule of InstanceType
//	arrays        cty.List of the element type
//
// The registry is not safe for concurrent use. Registration must not be
// interleaved with access, path resolution or override application.
package rtti
