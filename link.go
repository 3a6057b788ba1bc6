package stagepool

import "sync"

// Link is the handle to a downstream pipeline stage. A *Pool is itself a
// Link, so stages chain head to tail.
//
// Both methods are fire-and-forget. They return as soon as the request is
// enqueued, never when it has been acted upon; nothing is reported back to
// the caller.
type Link[T any] interface {
	// Process hands an item to the stage.
	Process(item T)
	// Finish asks the stage to drain and stop, then pass the signal onward.
	Finish()
}

// Terminal is a Link that ends a chain. Every item is handed to fn on the
// sender's goroutine. Done is closed when Finish arrives, so the owner of a
// pipeline can observe the shutdown cascade reaching the tail.
type Terminal[T any] struct {
	fn    func(T)
	once  sync.Once
	donec chan struct{}
}

// NewTerminal returns a Terminal applying fn to every item it receives.
// fn may be called from multiple goroutines at once and may be nil.
func NewTerminal[T any](fn func(T)) *Terminal[T] {
	return &Terminal[T]{fn: fn, donec: make(chan struct{})}
}

// Process applies the terminal's function to item.
func (t *Terminal[T]) Process(item T) {
	if t.fn != nil {
		t.fn(item)
	}
}

// Finish closes Done. Only the first call has an effect.
func (t *Terminal[T]) Finish() {
	t.once.Do(func() { close(t.donec) })
}

// Done is closed once Finish has reached this terminal.
func (t *Terminal[T]) Done() <-chan struct{} {
	return t.donec
}

// Discard returns a terminal Link that drops every item.
func Discard[T any]() Link[T] {
	return NewTerminal[T](nil)
}
