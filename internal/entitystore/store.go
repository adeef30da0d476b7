package entitystore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/specialistvlad/rtprop/internal/ctxlog"
	"github.com/specialistvlad/rtprop/internal/rtti"
)

type slot struct {
	gen  uint32
	live bool
	id   string
	data any
	typ  *rtti.StructDef
}

// Store implements rtti.Liveness over an arena of slots guarded by a mutex.
type Store struct {
	mu    sync.RWMutex
	slots []slot
	free  []uint32
	byID  map[string]uint32
}

// New creates a new, empty entity store.
func New() *Store {
	return &Store{byID: make(map[string]uint32)}
}

// Add stores data under a fresh UUID and returns a Ptr to it.
func (s *Store) Add(ctx context.Context, data any, typ *rtti.StructDef) rtti.Ptr {
	p, _ := s.AddWithID(ctx, uuid.NewString(), data, typ)
	return p
}

// AddWithID stores data under id. It fails when id is empty or already in
// use by a live entity.
func (s *Store) AddWithID(ctx context.Context, id string, data any, typ *rtti.StructDef) (rtti.Ptr, error) {
	if id == "" {
		return rtti.Ptr{}, fmt.Errorf("entity id must not be empty")
	}
	if data == nil || typ == nil {
		return rtti.Ptr{}, fmt.Errorf("entity %q: data and type are required", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[id]; exists {
		return rtti.Ptr{}, fmt.Errorf("entity %q already exists", id)
	}

	var idx uint32
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		s.slots = append(s.slots, slot{})
		idx = uint32(len(s.slots) - 1)
	}
	sl := &s.slots[idx]
	sl.gen++
	sl.live, sl.id, sl.data, sl.typ = true, id, data, typ
	s.byID[id] = idx

	ctxlog.FromContext(ctx).Debug("Entity added.", "id", id, "struct", typ.ID, "slot", idx, "gen", sl.gen)
	return s.ptrLocked(idx), nil
}

func (s *Store) ptrLocked(idx uint32) rtti.Ptr {
	sl := &s.slots[idx]
	owner := rtti.OwnerRef{ID: sl.id, Handle: rtti.Handle{Index: idx, Gen: sl.gen}, Store: s}
	return rtti.NewPtr(sl.data, sl.typ, owner)
}

// Alive reports whether h still names a live entity.
func (s *Store) Alive(h rtti.Handle) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aliveLocked(h)
}

func (s *Store) aliveLocked(h rtti.Handle) bool {
	if int(h.Index) >= len(s.slots) {
		return false
	}
	sl := &s.slots[h.Index]
	return sl.live && sl.gen == h.Gen
}

// Get returns a Ptr for the entity h refers to, if it is still alive.
func (s *Store) Get(h rtti.Handle) (rtti.Ptr, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.aliveLocked(h) {
		return rtti.Ptr{}, false
	}
	return s.ptrLocked(h.Index), true
}

// Lookup returns a Ptr for the entity with the given id.
func (s *Store) Lookup(id string) (rtti.Ptr, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return rtti.Ptr{}, false
	}
	return s.ptrLocked(idx), true
}

// Remove frees the entity h refers to. Removing a stale handle is a no-op
// and reports false.
func (s *Store) Remove(ctx context.Context, h rtti.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.aliveLocked(h) {
		return false
	}
	s.freeLocked(ctx, h.Index)
	return true
}

// RemoveID frees the entity with the given id.
func (s *Store) RemoveID(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[id]
	if !ok {
		return false
	}
	s.freeLocked(ctx, idx)
	return true
}

func (s *Store) freeLocked(ctx context.Context, idx uint32) {
	sl := &s.slots[idx]
	delete(s.byID, sl.id)
	ctxlog.FromContext(ctx).Debug("Entity removed.", "id", sl.id, "slot", idx, "gen", sl.gen)
	sl.live, sl.id, sl.data, sl.typ = false, "", nil, nil
	s.free = append(s.free, idx)
}

// Len returns the number of live entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// All returns Ptrs to every live entity in slot order.
func (s *Store) All() []rtti.Ptr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rtti.Ptr, 0, len(s.byID))
	for i := range s.slots {
		if s.slots[i].live {
			out = append(out, s.ptrLocked(uint32(i)))
		}
	}
	return out
}
