package task

import (
	"context"
	"sync"
)

type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusRunning:
		return "RUNNING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusFailed:
		return "FAILED"
	case StatusCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// Options control how a task is presented; they do not affect execution.
type Options struct {
	// Parent, when set, cancels the task if it is canceled itself. The
	// effective signal is "either the scheduler's cancel or Parent fires".
	Parent context.Context

	Blocking bool
	Icon     string
	Silent   bool
}

// Snapshot is the externally visible state of one task.
type Snapshot struct {
	ID       string
	Label    string
	Status   Status
	Progress float64
	Err      string
	Options  Options
}

type Task struct {
	id    string
	label string
	opts  Options

	cancel context.CancelFunc

	mu       sync.Mutex
	status   Status
	progress float64
	errMsg   string
	// lastSent is the progress value most recently broadcast; the flusher
	// only notifies when it moved.
	lastSent float64

	done chan struct{}
}

func (t *Task) ID() string { return t.id }

func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		ID:       t.id,
		Label:    t.label,
		Status:   t.status,
		Progress: t.progress,
		Err:      t.errMsg,
		Options:  t.opts,
	}
}

// Wait blocks until the task settles and returns its terminal status.
func (t *Task) Wait() Snapshot {
	<-t.done
	return t.Snapshot()
}

func (t *Task) setStatus(s Status) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

func (t *Task) report(p float64) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	t.mu.Lock()
	t.progress = p
	t.mu.Unlock()
}

// takeProgress returns the current progress and whether it changed since
// the last flush.
func (t *Task) takeProgress() (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.progress == t.lastSent {
		return t.progress, false
	}
	t.lastSent = t.progress
	return t.progress, true
}
