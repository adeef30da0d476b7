package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/specialistvlad/rtprop/internal/rtti"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnChange_EmitsOwnerStructProp(t *testing.T) {
	rec := &Recorder{}
	update := OnChange(rec, Recompute|Redraw)

	layerDef := &rtti.StructDef{ID: "Layer"}
	prop := &rtti.PropDef{ID: "hide", Owner: layerDef}
	p := rtti.NewPtr(&struct{}{}, layerDef, rtti.OwnerRef{ID: "SCScene"})

	update(context.Background(), p, prop)

	require.Equal(t, []Event{{OwnerID: "SCScene", StructID: "Layer", PropID: "hide", Tags: Recompute | Redraw}}, rec.Events())
	assert.Equal(t, "recompute|redraw", rec.Events()[0].Tags.String())

	rec.Reset()
	assert.Empty(t, rec.Events())
}

func TestFanoutAndFilter(t *testing.T) {
	all, dirtyOnly := &Recorder{}, &Recorder{}
	sink := Fanout{all, Filter{Tags: OverrideDirty, Next: dirtyOnly}, Log{}}

	ctx := context.Background()
	sink.Notify(ctx, Event{OwnerID: "a", Tags: Redraw})
	sink.Notify(ctx, Event{OwnerID: "b", Tags: Redraw | OverrideDirty})

	assert.Len(t, all.Events(), 2)
	require.Len(t, dirtyOnly.Events(), 1)
	assert.Equal(t, "b", dirtyOnly.Events()[0].OwnerID)
}

func TestDirtySet(t *testing.T) {
	d := &DirtySet{}
	ctx := context.Background()

	d.Notify(ctx, Event{OwnerID: "OBCube", Tags: Redraw})
	assert.False(t, d.Dirty("OBCube"))

	d.Notify(ctx, Event{OwnerID: "OBCube", Tags: OverrideDirty})
	assert.True(t, d.Dirty("OBCube"))

	d.Clear("OBCube")
	assert.False(t, d.Dirty("OBCube"))
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (f *fakeEmitter) Emit(name string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("disconnected")
	}
	if name == EventName {
		f.events = append(f.events, args[0].(Event))
	}
	return nil
}

func TestSocketIO_ForwardsInOrder(t *testing.T) {
	em := &fakeEmitter{}
	sink := NewSocketIO(context.Background(), em, 16)

	for _, prop := range []string{"hide", "opacity", "name"} {
		sink.Notify(context.Background(), Event{OwnerID: "SCScene", PropID: prop})
	}
	sink.Close()

	require.Len(t, em.events, 3)
	assert.Equal(t, "hide", em.events[0].PropID)
	assert.Equal(t, "name", em.events[2].PropID)
}

func TestSocketIO_EmitErrorsDoNotStopForwarding(t *testing.T) {
	em := &fakeEmitter{fail: true}
	sink := NewSocketIO(context.Background(), em, 4)
	sink.Notify(context.Background(), Event{PropID: "hide"})
	sink.Close()
	assert.Empty(t, em.events)
}

func TestRecorder_ConcurrentNotify(t *testing.T) {
	rec := &Recorder{}
	var wg sync.WaitGroup
	numGoroutines := 50
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			rec.Notify(context.Background(), Event{PropID: "x"})
		}()
	}
	wg.Wait()
	assert.Len(t, rec.Events(), numGoroutines)
}
