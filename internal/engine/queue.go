package engine

import (
	"sync"
)

// eventType distinguishes coordinator events.
type eventType int

const (
	// evStarted: a worker acquired a slot and is about to call a hook.
	evStarted eventType = iota + 1
	// evRunDone: the run phase finished, successfully or not.
	evRunDone
	// evSuspend: an external task step finished and the task is not done.
	evSuspend
	// evPollDue: the poll interval of a suspended action elapsed.
	evPollDue
	// evSkipped: a worker gave up before calling the hook.
	evSkipped
	// evCancel: Plan.Cancel was called.
	evCancel
)

func (t eventType) String() string {
	switch t {
	case evStarted:
		return "started"
	case evRunDone:
		return "run_done"
	case evSuspend:
		return "suspend"
	case evPollDue:
		return "poll_due"
	case evSkipped:
		return "skipped"
	case evCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// event is a message from workers, timers or API callers to the
// coordinator.
type event struct {
	typ    eventType
	action *Action
	err    error
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so that workers and timers never block on the
// coordinator.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the coordinator loop.
type eventQueue struct {
	mu     sync.Mutex
	events []event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return event{}, false
	}

	e := q.events[0]

	// Clear the slot so the backing array does not retain the action.
	q.events[0] = event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
