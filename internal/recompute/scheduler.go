// Package recompute runs downstream re-evaluation of entities whose
// properties changed, on a fixed pool of workers.
//
// The Scheduler is a notify.Sink: update callbacks hand it events and
// return immediately. Events for an owner that is already queued are
// coalesced, so a burst of edits to one entity triggers one evaluation.
// An event arriving while its owner is being evaluated queues it again.
//
// Handlers read entity data, so writers Pause the scheduler for the length
// of a batch of edits and Resume it afterwards; queued events are held
// until then.
package recompute

import (
	"context"
	"sync"

	"github.com/specialistvlad/rtprop/internal/ctxlog"
	"github.com/specialistvlad/rtprop/internal/notify"
)

// Handler re-evaluates the owner named by ev.
type Handler func(ctx context.Context, ev notify.Event) error

// Scheduler queues change events per owner and dispatches them to workers.
type Scheduler struct {
	handler    Handler
	numWorkers int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []notify.Event
	pending map[string]struct{}
	closed  bool
	paused  bool
	stop    func() bool

	workers  sync.WaitGroup
	inflight sync.WaitGroup
}

// New creates a scheduler dispatching to handler on numWorkers goroutines.
// Start must be called before events are processed.
func New(handler Handler, numWorkers int) *Scheduler {
	if numWorkers < 1 {
		numWorkers = 1
	}
	s := &Scheduler{handler: handler, numWorkers: numWorkers, pending: make(map[string]struct{})}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start launches the worker pool. Cancelling ctx stops evaluation: events
// still queued are dropped and the workers exit.
func (s *Scheduler) Start(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting recompute workers.", "count", s.numWorkers)
	s.mu.Lock()
	s.workers.Add(s.numWorkers)
	for i := range s.numWorkers {
		go s.worker(ctx, i+1)
	}
	s.stop = context.AfterFunc(ctx, s.Close)
	s.mu.Unlock()
}

// Notify implements notify.Sink. It never blocks on evaluation.
func (s *Scheduler) Notify(ctx context.Context, ev notify.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		ctxlog.FromContext(ctx).Debug("Recompute scheduler closed, dropping event.", "owner", ev.OwnerID, "prop", ev.PropID)
		return
	}
	if _, queued := s.pending[ev.OwnerID]; queued {
		return
	}
	s.pending[ev.OwnerID] = struct{}{}
	s.queue = append(s.queue, ev)
	s.inflight.Add(1)
	s.cond.Signal()
}

// next blocks until an event is queued or the scheduler is closed.
func (s *Scheduler) next() (notify.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for (len(s.queue) == 0 || s.paused) && !s.closed {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return notify.Event{}, false
	}
	ev := s.queue[0]
	s.queue = s.queue[1:]
	delete(s.pending, ev.OwnerID)
	return ev, true
}

// worker is the processing loop for a single concurrent worker.
func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.workers.Done()
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for {
		ev, ok := s.next()
		if !ok {
			break
		}
		workerLogger := logger.With("workerID", workerID, "owner", ev.OwnerID)

		if ctx.Err() != nil {
			workerLogger.Debug("Context cancelled, skipping recompute.", "prop", ev.PropID)
			s.inflight.Done()
			continue
		}

		workerLogger.Debug("Recomputing owner.", "struct", ev.StructID, "prop", ev.PropID)
		if err := s.handler(ctx, ev); err != nil {
			workerLogger.Error("Recompute failed.", "error", err)
		}
		s.inflight.Done()
	}

	logger.Debug("Worker finished.", "workerID", workerID)
}

// Pause holds queued events until Resume. Events handed to a worker before
// the call may still be running; call Flush first to wait for them.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume releases the events held since Pause.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Flush waits until every event queued so far has been handled. It must
// not run concurrently with Notify, and it blocks while the scheduler is
// paused with events queued.
func (s *Scheduler) Flush() {
	s.inflight.Wait()
}

// Close stops accepting events, lets the workers drain the queue, and
// waits for them to exit. It is safe to call more than once.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	stop := s.stop
	s.cond.Broadcast()
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	s.workers.Wait()
}
