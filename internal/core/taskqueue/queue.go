package taskqueue

import (
	"fmt"
	"sync"

	"github.com/simeonradivoev/electron-dam-sub000/internal/damerr"
)

const DefaultBacklog = 500

// Queue runs thunks FIFO with at most limit in flight. Submissions past
// the backlog cap are rejected with a queue-overflow error instead of
// blocking; that is a backpressure signal, not a crash.
type Queue struct {
	mu      sync.Mutex
	limit   int
	backlog int
	running int
	waiting []*job
}

type job struct {
	fn   func() error
	done chan error
}

func New(limit int, backlog int) *Queue {
	if limit <= 0 {
		limit = 1
	}
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Queue{limit: limit, backlog: backlog}
}

// Run enqueues fn and returns a handle that settles when fn settles. The
// handle delivers exactly one value.
func (q *Queue) Run(fn func() error) <-chan error {
	done := make(chan error, 1)
	if q == nil || fn == nil {
		done <- fmt.Errorf("queue or thunk is nil")
		return done
	}

	j := &job{fn: fn, done: done}

	q.mu.Lock()
	if q.running < q.limit {
		q.running++
		q.mu.Unlock()
		go q.exec(j)
		return done
	}
	if len(q.waiting) >= q.backlog {
		q.mu.Unlock()
		done <- damerr.Overflow(fmt.Sprintf("queue backlog limit %d reached", q.backlog))
		return done
	}
	q.waiting = append(q.waiting, j)
	q.mu.Unlock()
	return done
}

// Running reports the number of in-flight thunks.
func (q *Queue) Running() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Waiting reports the backlog depth.
func (q *Queue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

func (q *Queue) exec(j *job) {
	for j != nil {
		j.done <- call(j.fn)

		q.mu.Lock()
		if len(q.waiting) > 0 {
			j = q.waiting[0]
			q.waiting = q.waiting[1:]
		} else {
			q.running--
			j = nil
		}
		q.mu.Unlock()
	}
}

// call isolates panics so one crashing thunk cannot wedge a running slot.
func call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return fn()
}
