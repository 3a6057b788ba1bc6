package stagepool

import "sync"

// mailbox is an unbounded FIFO queue with a single blocking consumer.
//
// Every pool and every worker owns exactly one mailbox, and both work items
// and the termination request travel through it: messages from any single
// sender are therefore observed in send order, which is what resolves the
// race between a send and a concurrent termination deterministically.
type mailbox[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	closed bool
}

func newMailbox[T any]() *mailbox[T] {
	m := &mailbox[T]{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// put appends v and reports whether the mailbox accepted it. Enqueueing never
// blocks; a closed mailbox rejects the value.
func (m *mailbox[T]) put(v T) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.items = append(m.items, v)
	m.cond.Signal()
	return true
}

// take blocks until a value is available and returns it in FIFO order.
// It returns ok == false once the mailbox is closed and fully drained.
func (m *mailbox[T]) take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.items) == 0 && !m.closed {
		m.cond.Wait()
	}
	if len(m.items) == 0 {
		var zero T
		return zero, false
	}

	var zero T
	v := m.items[0]
	m.items[0] = zero // drop the reference so the backing array does not pin it
	m.items = m.items[1:]
	return v, true
}

// close rejects all further puts. Items already accepted remain takeable, so
// the consumer still drains everything enqueued before the close.
// Safe to call more than once.
func (m *mailbox[T]) close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.cond.Broadcast()
}

// size returns the number of items waiting to be taken.
func (m *mailbox[T]) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
