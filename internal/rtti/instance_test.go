package rtti

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLiveness struct{ gen uint32 }

func (f *fakeLiveness) Alive(h Handle) bool { return h.Gen == f.gen }

func TestPtr_Check(t *testing.T) {
	store := &fakeLiveness{gen: 1}
	def := &StructDef{ID: "Scene"}
	p := NewPtr(&object{}, def, OwnerRef{ID: "SCScene", Handle: Handle{Index: 0, Gen: 1}, Store: store})

	require.NoError(t, p.Check())

	store.gen = 2
	require.ErrorIs(t, p.Check(), ErrStaleInstance)
	require.ErrorIs(t, Ptr{}.Check(), ErrStaleInstance)
}

func TestPtr_Same(t *testing.T) {
	a := &object{}
	def := &StructDef{ID: "Object"}
	assert.True(t, NewPtr(a, def, OwnerRef{}).Same(NewPtr(a, nil, OwnerRef{})))
	assert.False(t, NewPtr(a, def, OwnerRef{}).Same(NewPtr(&object{}, def, OwnerRef{})))
	assert.False(t, NewPtr([]int{1}, def, OwnerRef{}).Same(NewPtr([]int{1}, def, OwnerRef{})), "slices have no identity")
}
