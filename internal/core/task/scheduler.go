package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/simeonradivoev/electron-dam-sub000/internal/core/taskqueue"
	"github.com/simeonradivoev/electron-dam-sub000/internal/damerr"
)

// Func is the unit of scheduled work. It must observe ctx at safe points;
// cancellation is cooperative, not preemptive. report takes a fraction in
// [0,1] and may be called as often as convenient; broadcasts are
// throttled by the scheduler.
type Func func(ctx context.Context, report func(float64)) error

type EventType int

const (
	EventAdded EventType = iota
	EventUpdated
	EventRemoved
)

type Event struct {
	Type EventType
	Task Snapshot
}

// Listener receives task lifecycle events. It is called from scheduler
// goroutines and must not block.
type Listener func(Event)

const progressInterval = 300 * time.Millisecond

// Scheduler wraps arbitrary work with identity, cancellation, status and
// throttled progress broadcast. All long-running operations of the core
// run through one scheduler instance per open project.
type Scheduler struct {
	queue    *taskqueue.Queue
	interval time.Duration

	mu       sync.Mutex
	tasks    map[string]*Task
	listener Listener
}

func NewScheduler(queue *taskqueue.Queue) *Scheduler {
	if queue == nil {
		queue = taskqueue.New(4, taskqueue.DefaultBacklog)
	}
	return &Scheduler{
		queue:    queue,
		interval: progressInterval,
		tasks:    map[string]*Task{},
	}
}

// SetListener installs the notification sink. Passing nil silences the
// scheduler.
func (s *Scheduler) SetListener(fn Listener) {
	s.mu.Lock()
	s.listener = fn
	s.mu.Unlock()
}

// Submit registers work under a fresh id and enqueues it atomically. The
// returned task settles with COMPLETED, FAILED or CANCELED and is removed
// from the active set right after its final broadcast.
func (s *Scheduler) Submit(label string, work Func, opts Options) *Task {
	parent := opts.Parent
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	t := &Task{
		id:     uuid.NewString(),
		label:  label,
		opts:   opts,
		cancel: cancel,
		status: StatusPending,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.tasks[t.id] = t
	s.mu.Unlock()
	s.notify(Event{Type: EventAdded, Task: t.Snapshot()})

	handle := s.queue.Run(func() error {
		s.run(ctx, cancel, t, work)
		return nil
	})
	// A rejected submission never reaches run; settle the task as failed
	// so the caller sees the backpressure instead of a forever-pending id.
	go func() {
		if err := <-handle; err != nil {
			s.reject(t, cancel, err)
		}
	}()
	return t
}

func (s *Scheduler) reject(t *Task, cancel context.CancelFunc, err error) {
	cancel()
	t.mu.Lock()
	t.status = StatusFailed
	t.errMsg = err.Error()
	t.mu.Unlock()

	final := t.Snapshot()
	s.mu.Lock()
	delete(s.tasks, t.id)
	s.mu.Unlock()

	s.notify(Event{Type: EventUpdated, Task: final})
	s.notify(Event{Type: EventRemoved, Task: final})
	close(t.done)
}

// Get returns the active task with the given id, if still tracked.
func (s *Scheduler) Get(id string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Active returns snapshots of all tracked tasks.
func (s *Scheduler) Active() []Snapshot {
	s.mu.Lock()
	tasks := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	out := make([]Snapshot, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Snapshot())
	}
	return out
}

// Cancel flips the task's abort signal. The work settles as CANCELED only
// once it observes the signal.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	t.cancel()
	return true
}

// CancelWhere cancels every tracked task matching the predicate and
// reports how many were signaled.
func (s *Scheduler) CancelWhere(pred func(Snapshot) bool) int {
	s.mu.Lock()
	tasks := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	n := 0
	for _, t := range tasks {
		if pred == nil || pred(t.Snapshot()) {
			t.cancel()
			n++
		}
	}
	return n
}

func (s *Scheduler) run(ctx context.Context, cancel context.CancelFunc, t *Task, work Func) {
	defer cancel()

	t.setStatus(StatusRunning)
	s.notify(Event{Type: EventUpdated, Task: t.Snapshot()})

	flusherDone := make(chan struct{})
	stop := make(chan struct{})
	go s.flushProgress(t, stop, flusherDone)
	var stopOnce sync.Once
	stopFlusher := func() {
		stopOnce.Do(func() {
			close(stop)
			<-flusherDone
		})
	}
	// A panicking work func unwinds through here into the queue's
	// recover; the flusher and its ticker must not outlive the task.
	defer stopFlusher()

	err := runWork(ctx, t, work)

	stopFlusher()

	switch {
	case err == nil:
		t.setStatus(StatusCompleted)
	case errors.Is(err, context.Canceled) || damerr.IsAborted(err):
		t.setStatus(StatusCanceled)
	default:
		t.mu.Lock()
		t.status = StatusFailed
		t.errMsg = err.Error()
		t.mu.Unlock()
	}

	final := t.Snapshot()
	s.mu.Lock()
	delete(s.tasks, t.id)
	s.mu.Unlock()

	s.notify(Event{Type: EventUpdated, Task: final})
	s.notify(Event{Type: EventRemoved, Task: final})
	close(t.done)
}

func runWork(ctx context.Context, t *Task, work Func) error {
	if work == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return work(ctx, t.report)
}

// flushProgress coalesces bursty report calls into a steady cadence: one
// broadcast per interval, and only when the value moved.
func (s *Scheduler) flushProgress(t *Task, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, changed := t.takeProgress(); changed {
				s.notify(Event{Type: EventUpdated, Task: t.Snapshot()})
			}
		}
	}
}

func (s *Scheduler) notify(ev Event) {
	s.mu.Lock()
	fn := s.listener
	s.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}
