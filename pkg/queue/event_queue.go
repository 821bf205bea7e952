// Package queue implements the per-task event pipeline: a closable,
// tappable FIFO (EventQueue) and a registry keyed by task id (Manager).
// The FIFO has no capacity limit; Enqueue never blocks on a full buffer.
package queue

import (
	"sync"

	"github.com/theapemachine/a2a-go/pkg/a2a"
)

// PollResult reports the outcome of a non-blocking Dequeue attempt so
// "transiently empty" is distinguishable from "permanently closed".
type PollResult int

const (
	PollReady PollResult = iota
	PollEmpty
	PollClosed
)

// EventQueue is a single producer/multi-consumer FIFO of Events for one
// task. Enqueue never blocks indefinitely: once Close is called, further
// Enqueue calls are no-ops and Dequeue drains whatever remains before
// reporting PollClosed.
type EventQueue struct {
	mu     sync.Mutex
	buf    []a2a.Event
	taps   []*tap
	closed bool
	notify chan struct{}
}

// NewEventQueue creates an empty, open queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{notify: make(chan struct{}, 1)}
}

// Enqueue appends an event, fanning it out to any active taps, and wakes a
// blocked Dequeue/Wait caller. It is a no-op on a closed queue.
func (q *EventQueue) Enqueue(ev a2a.Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.buf = append(q.buf, ev)
	for _, t := range q.taps {
		t.push(ev)
	}
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the oldest buffered event, if any, without
// blocking.
func (q *EventQueue) Dequeue() (a2a.Event, PollResult) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.buf) > 0 {
		ev := q.buf[0]
		q.buf = q.buf[1:]
		return ev, PollReady
	}
	if q.closed {
		return a2a.Event{}, PollClosed
	}
	return a2a.Event{}, PollEmpty
}

// Wait returns a channel that fires after an Enqueue or Close, so a caller
// can block until an event may be available or the queue is closed.
// Callers should re-call Dequeue after it fires.
func (q *EventQueue) Wait() <-chan struct{} {
	return q.notify
}

// Tap registers a secondary cursor that receives a copy of every
// subsequently enqueued event, used by resubscribe/tail consumers. Each
// tap buffers without bound on its own goroutine, so a slow reader delays
// only itself and never drops events. The returned func deregisters the
// tap and releases its goroutine.
func (q *EventQueue) Tap() (<-chan a2a.Event, func()) {
	t := &tap{
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		out:    make(chan a2a.Event),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		close(t.out)
		return t.out, func() {}
	}
	q.taps = append(q.taps, t)
	q.mu.Unlock()

	go t.pump()
	return t.out, func() { q.untap(t) }
}

func (q *EventQueue) untap(t *tap) {
	q.mu.Lock()
	for i, cur := range q.taps {
		if cur == t {
			q.taps = append(q.taps[:i], q.taps[i+1:]...)
			break
		}
	}
	q.mu.Unlock()
	t.abort()
}

// Close marks the queue closed; buffered events remain readable until
// drained, after which Dequeue reports PollClosed. Taps drain whatever
// they have pending, then their channels close.
func (q *EventQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	taps := q.taps
	q.taps = nil
	q.mu.Unlock()

	for _, t := range taps {
		t.finish()
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Closed reports whether Close has been called.
func (q *EventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// tap is one secondary cursor on an EventQueue: events are staged into an
// unbounded buffer under the parent's Enqueue, and a dedicated pump
// goroutine hands them to the reader in order.
type tap struct {
	mu     sync.Mutex
	buf    []a2a.Event
	done   bool // parent closed: no more pushes coming
	notify chan struct{}
	stop   chan struct{} // reader gave up: abandon pending sends
	out    chan a2a.Event

	stopOnce sync.Once
}

// push stages an event; called with the parent queue's lock held so tap
// order matches the primary cursor's.
func (t *tap) push(ev a2a.Event) {
	t.mu.Lock()
	t.buf = append(t.buf, ev)
	t.mu.Unlock()
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// finish tells the pump no further events are coming; it drains what is
// buffered and then closes out.
func (t *tap) finish() {
	t.mu.Lock()
	t.done = true
	t.mu.Unlock()
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// abort stops the pump immediately, dropping anything still buffered; used
// when the reader deregisters.
func (t *tap) abort() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *tap) pump() {
	defer close(t.out)
	for {
		t.mu.Lock()
		if len(t.buf) > 0 {
			ev := t.buf[0]
			t.buf = t.buf[1:]
			t.mu.Unlock()
			select {
			case t.out <- ev:
				continue
			case <-t.stop:
				return
			}
		}
		done := t.done
		t.mu.Unlock()
		if done {
			return
		}
		select {
		case <-t.notify:
		case <-t.stop:
			return
		}
	}
}
