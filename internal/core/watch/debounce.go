package watch

import (
	"sort"
	"strings"
	"sync"
	"time"
)

type Op int

const (
	OpAdd Op = iota
	OpChange
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpChange:
		return "change"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event is one coalesced filesystem change, path relative to the project
// root.
type Event struct {
	Op   Op
	Path string
}

// Debouncer coalesces a burst of events into one batch per path. Pushing
// restarts the timer, so a sustained burst delivers once after it quiets
// down. Ops on the same path merge: a remove wins outright, a change
// after an add stays an add, and a remove followed by a recreate within
// one window collapses to an add.
type Debouncer struct {
	delay     time.Duration
	delayFunc func(count int) time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	queued map[string]Op
	onFire func(events []Event)
}

func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	return &Debouncer{
		delay:  delay,
		queued: map[string]Op{},
	}
}

// SetDelayFunc scales the delay with the queue size, for adaptive
// debouncing under heavy churn.
func (d *Debouncer) SetDelayFunc(fn func(count int) time.Duration) {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.delayFunc = fn
	d.mu.Unlock()
}

func (d *Debouncer) DelayFor(count int) time.Duration {
	if d == nil {
		return 0
	}
	if d.delayFunc == nil {
		return d.delay
	}
	delay := d.delayFunc(count)
	if delay <= 0 {
		return d.delay
	}
	return delay
}

func (d *Debouncer) OnFire(fn func(events []Event)) {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.onFire = fn
	d.mu.Unlock()
}

func (d *Debouncer) Push(op Op, path string) {
	if d == nil {
		return
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}

	d.mu.Lock()
	if prev, ok := d.queued[path]; ok {
		op = mergeOps(prev, op)
	}
	d.queued[path] = op
	delay := d.DelayFor(len(d.queued))
	if d.timer != nil {
		_ = d.timer.Stop()
	}
	d.timer = time.AfterFunc(delay, d.fire)
	d.mu.Unlock()
}

func mergeOps(prev, next Op) Op {
	switch {
	case prev == OpRemove && next == OpAdd:
		return OpAdd
	case next == OpRemove:
		return OpRemove
	case prev == OpAdd:
		return OpAdd
	default:
		return next
	}
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	queued := d.queued
	d.queued = map[string]Op{}
	fn := d.onFire
	d.mu.Unlock()

	if fn == nil || len(queued) == 0 {
		return
	}

	events := make([]Event, 0, len(queued))
	for p, op := range queued {
		events = append(events, Event{Op: op, Path: p})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	fn(events)
}
