package stagepool

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	// ErrNoWorkFunc is returned by Start if the work function is nil.
	ErrNoWorkFunc = errors.New("stagepool: work function is nil")
	// ErrNoWorkers is returned by Start if numWorkers is not positive.
	ErrNoWorkers = errors.New("stagepool: pool needs at least one worker")
)

// Options configure a Pool beyond its construction arguments.
// The zero value is ready to use.
type Options struct {
	// Name labels the stage in log events, so several pools can share one
	// logger and still be told apart.
	Name string
	// Logger receives lifecycle and failure events. nil disables logging.
	Logger *zerolog.Logger
	// Metrics, when set, is updated as the pool dispatches and drains.
	// One Metrics instance may be shared by every stage of a chain.
	Metrics *Metrics
	// RecoverPanics makes a worker survive a panicking work function: the
	// panic is logged and the worker continues with its next item. When
	// unset a panic is not recovered. Workers are never restarted either
	// way.
	RecoverPanics bool
}

// Stats is a snapshot of a pool's counters.
type Stats struct {
	// Workers is the fixed rotation size.
	Workers int
	// Dispatched counts items handed to a worker.
	Dispatched uint64
	// Dropped counts items rejected because the pool, or the worker they
	// were routed to, was already shutting down.
	Dropped uint64
}

// Pool dispatches items round-robin over a fixed rotation of workers and, on
// Finish, stops its workers and forwards the signal to the next stage.
//
// A *Pool is a Link, so pools chain: each stage signals the next one only
// after all of its own workers have fully stopped, and a shutdown started at
// the head of a chain propagates linearly to its tail.
//
// The rotation is owned by a single dispatcher goroutine draining the pool's
// mailbox, which is what makes select-head-then-rotate atomic with respect to
// concurrent Process calls.
type Pool[In, Out any] struct {
	name     string
	next     Link[Out]
	mbox     *mailbox[In]
	rotation []*worker[In, Out] // touched only by the run goroutine
	workers  int
	finished atomic.Bool
	donec    chan struct{}
	log      zerolog.Logger
	metrics  *Metrics

	dispatched atomic.Uint64
	dropped    atomic.Uint64
}

// workerFactory builds the i-th worker of a pool. A factory call may fail,
// which aborts pool construction.
type workerFactory[In, Out any] func(i int) (*worker[In, Out], error)

// Start constructs a pool of numWorkers workers bound to fn and next and
// begins dispatching. next may be nil for the last stage of a chain; the
// workers then receive a nil Link and no finish signal is forwarded.
//
// Start fails if a worker cannot be created. Workers already started by the
// failed attempt are stopped and waited for before the error is returned, so
// no partial pool is left running.
func Start[In, Out any](fn WorkFunc[In, Out], next Link[Out], numWorkers int) (*Pool[In, Out], error) {
	return StartWith(fn, next, numWorkers, Options{})
}

// StartWith is Start with explicit Options.
func StartWith[In, Out any](fn WorkFunc[In, Out], next Link[Out], numWorkers int, opts Options) (*Pool[In, Out], error) {
	if fn == nil {
		return nil, ErrNoWorkFunc
	}
	log := poolLogger(opts)
	return startPool(next, numWorkers, opts, func(int) (*worker[In, Out], error) {
		return startWorker(fn, next, log, opts.RecoverPanics, opts.Metrics), nil
	})
}

func startPool[In, Out any](next Link[Out], numWorkers int, opts Options, factory workerFactory[In, Out]) (*Pool[In, Out], error) {
	if numWorkers < 1 {
		return nil, ErrNoWorkers
	}

	rotation := make([]*worker[In, Out], 0, numWorkers)
	for i := 0; i < numWorkers; i++ {
		w, err := factory(i)
		if err != nil {
			for _, started := range rotation {
				started.stop()
			}
			for _, started := range rotation {
				<-started.donec
			}
			return nil, errors.Wrapf(err, "stagepool: starting worker %d of %d", i+1, numWorkers)
		}
		rotation = append(rotation, w)
	}

	p := &Pool[In, Out]{
		name:     opts.Name,
		next:     next,
		mbox:     newMailbox[In](),
		rotation: rotation,
		workers:  numWorkers,
		donec:    make(chan struct{}),
		log:      poolLogger(opts),
		metrics:  opts.Metrics,
	}
	go p.run()

	p.log.Info().Int("workers", numWorkers).Msg("pool started")
	return p, nil
}

// Process asks the pool to dispatch item to the worker at the head of the
// rotation and returns as soon as the request is enqueued. Nothing is ever
// reported back to the caller. Requests from a single goroutine are
// dispatched in the order they were made; there is no ordering across
// goroutines. An item arriving after Finish is dropped, never executed.
func (p *Pool[In, Out]) Process(item In) {
	if !p.mbox.put(item) {
		p.drop("pool is finishing, item dropped")
	}
}

// Finish asks the pool to drain and stop. Items already accepted are still
// dispatched and every worker is stopped exactly once; after all of them
// have terminated the next stage (if any) receives exactly one Finish.
// Only the first call has an effect. Finish returns without waiting for the
// drain; watch Done to observe completion.
func (p *Pool[In, Out]) Finish() {
	if !p.finished.CompareAndSwap(false, true) {
		return
	}
	p.log.Debug().Msg("finish requested")
	p.mbox.close()
}

// Done is closed once the pool has fully terminated: all workers stopped and
// the finish signal forwarded downstream.
func (p *Pool[In, Out]) Done() <-chan struct{} {
	return p.donec
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool[In, Out]) Stats() Stats {
	return Stats{
		Workers:    p.workers,
		Dispatched: p.dispatched.Load(),
		Dropped:    p.dropped.Load(),
	}
}

// run is the dispatcher: one message at a time, in mailbox order. Taking the
// head worker and re-appending it at the tail is what guarantees round-robin
// fairness, and doing it on a single goroutine is what makes it race-free.
func (p *Pool[In, Out]) run() {
	for {
		item, ok := p.mbox.take()
		if !ok {
			p.drain()
			return
		}

		head := p.rotation[0]
		if head.doWork(item) {
			p.dispatched.Add(1)
			if p.metrics != nil {
				p.metrics.ItemsDispatched.Inc()
			}
		} else {
			p.drop("worker already stopped, item dropped")
		}
		p.rotation = append(p.rotation[1:], head)
	}
}

// drain performs the ordered shutdown: stop every worker in the rotation,
// wait for each of them to terminate, and only then forward Finish to the
// next stage.
func (p *Pool[In, Out]) drain() {
	for _, w := range p.rotation {
		w.stop()
	}
	for _, w := range p.rotation {
		<-w.donec
	}
	p.log.Info().Uint64("dispatched", p.dispatched.Load()).Msg("all workers stopped")

	if p.next != nil {
		p.next.Finish()
		if p.metrics != nil {
			p.metrics.FinishForwarded.Inc()
		}
		p.log.Debug().Msg("finish forwarded downstream")
	}
	close(p.donec)
}

func (p *Pool[In, Out]) drop(msg string) {
	p.dropped.Add(1)
	if p.metrics != nil {
		p.metrics.ItemsDropped.Inc()
	}
	p.log.Error().Msg(msg)
}

func poolLogger(opts Options) zerolog.Logger {
	if opts.Logger == nil {
		return zerolog.Nop()
	}
	if opts.Name == "" {
		return *opts.Logger
	}
	return opts.Logger.With().Str("stage", opts.Name).Logger()
}
