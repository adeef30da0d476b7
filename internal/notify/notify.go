// Package notify carries fire-and-forget "property changed" events from
// update callbacks to the recomputation and UI subsystems.
//
// Update callbacks built with OnChange never wait on a sink: every sink in
// this package either records the event or hands it to another goroutine.
package notify

import (
	"context"
	"strings"
	"sync"

	"github.com/specialistvlad/rtprop/internal/ctxlog"
	"github.com/specialistvlad/rtprop/internal/rtti"
)

// Tag says what a change requires downstream.
type Tag uint8

const (
	// Recompute marks the owning entity for downstream re-evaluation.
	Recompute Tag = 1 << iota
	// Redraw asks the UI to refresh views showing the property.
	Redraw
	// OverrideDirty marks the owner as diverged from its library original.
	OverrideDirty
)

func (t Tag) String() string {
	var parts []string
	if t&Recompute != 0 {
		parts = append(parts, "recompute")
	}
	if t&Redraw != 0 {
		parts = append(parts, "redraw")
	}
	if t&OverrideDirty != 0 {
		parts = append(parts, "override_dirty")
	}
	return strings.Join(parts, "|")
}

// Event is the (owner, struct, prop) triple addressed to external
// subsystems.
type Event struct {
	OwnerID  string `json:"owner_id"`
	StructID string `json:"struct_id"`
	PropID   string `json:"prop_id"`
	Tags     Tag    `json:"tags"`
}

// Sink receives events. Implementations must not block.
type Sink interface {
	Notify(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event)

func (f SinkFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }

// OnChange builds an update callback emitting an event tagged with tags.
func OnChange(sink Sink, tags Tag) rtti.UpdateFunc {
	return func(ctx context.Context, p rtti.Ptr, prop *rtti.PropDef) {
		ev := Event{OwnerID: p.Owner.ID, PropID: prop.ID, Tags: tags}
		if p.Type != nil {
			ev.StructID = p.Type.ID
		}
		sink.Notify(ctx, ev)
	}
}

// Fanout delivers each event to every sink in order.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, ev Event) {
	for _, s := range f {
		s.Notify(ctx, ev)
	}
}

// Filter forwards only events carrying at least one of Tags.
type Filter struct {
	Tags Tag
	Next Sink
}

func (f Filter) Notify(ctx context.Context, ev Event) {
	if ev.Tags&f.Tags != 0 {
		f.Next.Notify(ctx, ev)
	}
}

// Log writes each event to the context logger at debug level.
type Log struct{}

func (Log) Notify(ctx context.Context, ev Event) {
	ctxlog.FromContext(ctx).Debug("Property changed.", "owner", ev.OwnerID, "struct", ev.StructID, "prop", ev.PropID, "tags", ev.Tags.String())
}

// Recorder keeps every event it receives. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// DirtySet tracks owners marked override-dirty. It is safe for concurrent
// use.
type DirtySet struct {
	mu     sync.Mutex
	owners map[string]struct{}
}

func (d *DirtySet) Notify(_ context.Context, ev Event) {
	if ev.Tags&OverrideDirty == 0 || ev.OwnerID == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.owners == nil {
		d.owners = make(map[string]struct{})
	}
	d.owners[ev.OwnerID] = struct{}{}
}

// Dirty reports whether owner diverged from its library original.
func (d *DirtySet) Dirty(owner string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.owners[owner]
	return ok
}

// Clear forgets owner, typically after its overrides were re-recorded.
func (d *DirtySet) Clear(owner string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.owners, owner)
}
