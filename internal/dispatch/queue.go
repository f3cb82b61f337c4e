package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"

	"github.com/roach88/livecoll/internal/logging"
)

// Task is a unit of work run on a queue's worker goroutine.
type Task func()

// workers maps worker goroutine ids to their queue.
var workers sync.Map // int64 -> *Queue

// GoroutineID returns the id of the calling goroutine.
func GoroutineID() int64 {
	return goid.Get()
}

// Current returns the queue whose worker is running the caller, or nil.
func Current() *Queue {
	if q, ok := workers.Load(goid.Get()); ok {
		return q.(*Queue)
	}
	return nil
}

// Queue is a serial FIFO task queue with a dedicated worker goroutine.
//
// The queue is unbounded so tasks enqueued from inside a task (deferred
// attaches, refreshes) never block the worker.
type Queue struct {
	label string

	mu     sync.Mutex
	tasks  []Task
	closed bool
	signal chan struct{} // Signals task availability (buffered, size 1)
	done   chan struct{}

	worker atomic.Int64
	ready  chan struct{}
}

// New creates a queue and starts its worker.
func New(label string) *Queue {
	q := &Queue{
		label:  label,
		tasks:  make([]Task, 0, 16),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		ready:  make(chan struct{}),
	}
	go q.run()
	<-q.ready
	return q
}

// Label returns the name given to New.
func (q *Queue) Label() string {
	return q.label
}

// WorkerID returns the goroutine id of the queue's worker.
func (q *Queue) WorkerID() int64 {
	return q.worker.Load()
}

// IsCurrent reports whether the caller is running on this queue.
func (q *Queue) IsCurrent() bool {
	return goid.Get() == q.worker.Load()
}

// Async enqueues t and returns immediately.
// Returns false if the queue is stopped.
func (q *Queue) Async(t Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.tasks = append(q.tasks, t)

	// Signal availability (non-blocking - buffer of 1 coalesces multiple signals)
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// Sync runs t on the queue and waits for it to finish. When called from the
// queue's own worker, t runs inline. Returns false if the queue is stopped.
func (q *Queue) Sync(t Task) bool {
	if q.IsCurrent() {
		t()
		return true
	}

	finished := make(chan struct{})
	if !q.Async(func() {
		defer close(finished)
		t()
	}) {
		return false
	}
	<-finished
	return true
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Stop refuses new tasks, lets the worker drain the pending ones and waits
// for it to exit. Calling Stop from the worker does not wait.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.signal)
	}
	q.mu.Unlock()

	if !q.IsCurrent() {
		<-q.done
	}
}

// Done is closed once the worker has exited.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

func (q *Queue) tryDequeue() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}

	t := q.tasks[0]
	q.tasks[0] = nil
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return t, true
}

// run is the worker loop. It exits once the queue is stopped and empty.
func (q *Queue) run() {
	id := goid.Get()
	q.worker.Store(id)
	workers.Store(id, q)
	defer func() {
		workers.Delete(id)
		close(q.done)
	}()
	close(q.ready)

	for {
		if t, ok := q.tryDequeue(); ok {
			q.execute(t)
			continue
		}

		// The signal channel closes when the queue is stopped, which makes
		// this receive fire immediately.
		if _, open := <-q.signal; !open && q.Len() == 0 {
			return
		}
	}
}

// execute runs one task. A panicking task is logged and does not kill the
// worker.
func (q *Queue) execute(t Task) {
	defer func() {
		if r := recover(); r != nil {
			logging.Logger.Errorw("dispatch task panicked", "queue", q.label, "panic", r)
		}
	}()
	t()
}
