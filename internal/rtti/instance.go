package rtti

import (
	"fmt"
	"reflect"
)

// Liveness reports whether an owner handle still refers to a live entity.
// It is implemented by the owning data model (see entitystore).
type Liveness interface {
	Alive(h Handle) bool
}

// Handle is an arena index plus generation counter. A handle whose
// generation no longer matches its slot refers to a freed entity.
type Handle struct {
	Index uint32
	Gen   uint32
}

// OwnerRef is a weak reference to the top-level entity owning an instance.
// ID is the stable identifier used to address change notifications.
type OwnerRef struct {
	ID     string
	Handle Handle
	Store  Liveness // nil when the owner is not tracked
}

// Alive reports whether the owner still exists. Untracked owners are
// always considered alive.
func (o OwnerRef) Alive() bool {
	return o.Store == nil || o.Store.Alive(o.Handle)
}

// Ptr is a transient, type-erased reference to one live instance. It never
// owns Data: the external data model does, and Data must outlive the Ptr.
// Ptr values are built fresh for each operation and must not be kept across
// collection mutation or deletion of the referenced struct.
type Ptr struct {
	Data  any
	Type  *StructDef
	Owner OwnerRef
}

// NewPtr builds a Ptr for a top-level entity.
func NewPtr(data any, typ *StructDef, owner OwnerRef) Ptr {
	return Ptr{Data: data, Type: typ, Owner: owner}
}

// Child builds a Ptr for data nested inside p's owner.
func (p Ptr) Child(data any, typ *StructDef) Ptr {
	return Ptr{Data: data, Type: typ, Owner: p.Owner}
}

// IsNil reports whether p references nothing.
func (p Ptr) IsNil() bool {
	return p.Data == nil || p.Type == nil
}

// Same reports whether p and o reference the same instance data.
func (p Ptr) Same(o Ptr) bool {
	return sameData(p.Data, o.Data)
}

// sameData compares instance data by identity. Only pointer data has
// identity; other comparable values fall back to ==.
func sameData(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta == nil {
		return true
	}
	if ta.Kind() == reflect.Pointer {
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	if ta.Kind() == reflect.Struct || !ta.Comparable() {
		return false
	}
	return a == b
}

// Check returns a KindStaleInstance error when p is nil or its owner has
// been freed.
func (p Ptr) Check() error {
	if p.IsNil() {
		return Errorf(KindStaleInstance, "nil instance")
	}
	if !p.Owner.Alive() {
		return &Error{Kind: KindStaleInstance, Struct: p.Type.ID, Detail: fmt.Sprintf("owner %s was freed", p.Owner.ID)}
	}
	return nil
}

func (p Ptr) String() string {
	if p.IsNil() {
		return "<nil>"
	}
	if p.Owner.ID != "" {
		return fmt.Sprintf("%s@%s(%p)", p.Type.ID, p.Owner.ID, p.Data)
	}
	return fmt.Sprintf("%s(%p)", p.Type.ID, p.Data)
}
