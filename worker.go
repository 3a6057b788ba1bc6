package stagepool

import (
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WorkFunc is the caller-supplied work function a worker applies to each item
// it receives. The pool never inspects items; fn may forward results to the
// downstream stage via next. Unless Options.RecoverPanics is set, a panic in
// fn is not recovered.
type WorkFunc[In, Out any] func(item In, next Link[Out])

// worker executes the pool's work function against the items in its private
// mailbox, sequentially and in the order they were accepted. It is owned
// exclusively by the pool that created it.
type worker[In, Out any] struct {
	id       uuid.UUID
	fn       WorkFunc[In, Out]
	next     Link[Out]
	mbox     *mailbox[In]
	donec    chan struct{}
	log      zerolog.Logger
	recovers bool
	metrics  *Metrics
}

// startWorker binds fn and next into a worker and spawns its run loop.
func startWorker[In, Out any](fn WorkFunc[In, Out], next Link[Out], log zerolog.Logger, recovers bool, m *Metrics) *worker[In, Out] {
	id := uuid.New()
	w := &worker[In, Out]{
		id:       id,
		fn:       fn,
		next:     next,
		mbox:     newMailbox[In](),
		donec:    make(chan struct{}),
		log:      log.With().Str("worker", id.String()).Logger(),
		recovers: recovers,
		metrics:  m,
	}
	go w.run()
	return w
}

// doWork enqueues item and returns immediately, reporting whether the worker
// accepted it. A worker that has been asked to stop rejects new items.
func (w *worker[In, Out]) doWork(item In) bool {
	return w.mbox.put(item)
}

// stop asks the worker to process everything it has already accepted and then
// terminate. Items sent concurrently with stop may be rejected: both kinds of
// request travel through the worker's single mailbox, so whichever is
// enqueued first wins. Safe to call more than once.
func (w *worker[In, Out]) stop() {
	w.mbox.close()
}

func (w *worker[In, Out]) run() {
	if w.metrics != nil {
		w.metrics.ActiveWorkers.Inc()
	}
	w.log.Debug().Msg("worker started")
	defer func() {
		if w.metrics != nil {
			w.metrics.ActiveWorkers.Dec()
		}
		w.log.Debug().Msg("worker terminated")
		close(w.donec)
	}()

	for {
		item, ok := w.mbox.take()
		if !ok {
			return
		}
		w.work(item)
	}
}

// work runs fn for a single item. With the recover policy enabled a panic is
// logged together with its stack and the worker moves on to the next item.
func (w *worker[In, Out]) work(item In) {
	if !w.recovers {
		w.fn(item, w.next)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			if w.metrics != nil {
				w.metrics.PanicsRecovered.Inc()
			}
			w.log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("work function panicked")
		}
	}()
	w.fn(item, w.next)
}
