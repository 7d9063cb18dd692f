package task

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/simeonradivoev/electron-dam-sub000/internal/core/taskqueue"
)

func TestScheduler_CompletedLifecycle(t *testing.T) {
	s := NewScheduler(taskqueue.New(1, 10))

	var mu sync.Mutex
	var events []Event
	s.SetListener(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	tk := s.Submit("reindex", func(ctx context.Context, report func(float64)) error {
		report(0.5)
		report(1)
		return nil
	}, Options{})

	snap := tk.Wait()
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %v, want COMPLETED", snap.Status)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) < 3 {
		t.Fatalf("expected added/updated/removed events, got %d", len(events))
	}
	if events[0].Type != EventAdded {
		t.Fatalf("first event = %v, want added", events[0].Type)
	}
	if last := events[len(events)-1]; last.Type != EventRemoved || last.Task.Status != StatusCompleted {
		t.Fatalf("last event = %+v", last)
	}

	if _, ok := s.Get(snap.ID); ok {
		t.Fatal("settled task still tracked")
	}
}

func TestScheduler_FailedKeepsMessage(t *testing.T) {
	s := NewScheduler(nil)

	tk := s.Submit("broken", func(ctx context.Context, report func(float64)) error {
		return fmt.Errorf("archive corrupt")
	}, Options{})

	snap := tk.Wait()
	if snap.Status != StatusFailed {
		t.Fatalf("status = %v, want FAILED", snap.Status)
	}
	if snap.Err != "archive corrupt" {
		t.Fatalf("err = %q", snap.Err)
	}
}

func TestScheduler_CancelIsCooperative(t *testing.T) {
	s := NewScheduler(nil)

	started := make(chan struct{})
	tk := s.Submit("slow", func(ctx context.Context, report func(float64)) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, Options{})

	<-started
	if !s.Cancel(tk.ID()) {
		t.Fatal("cancel did not find task")
	}

	snap := tk.Wait()
	if snap.Status != StatusCanceled {
		t.Fatalf("status = %v, want CANCELED", snap.Status)
	}
}

func TestScheduler_ExternalParentCancels(t *testing.T) {
	s := NewScheduler(nil)

	parent, cancel := context.WithCancel(context.Background())
	tk := s.Submit("watched", func(ctx context.Context, report func(float64)) error {
		<-ctx.Done()
		return ctx.Err()
	}, Options{Parent: parent})

	cancel()
	if snap := tk.Wait(); snap.Status != StatusCanceled {
		t.Fatalf("status = %v, want CANCELED", snap.Status)
	}
}

func TestScheduler_CancelWherePredicate(t *testing.T) {
	s := NewScheduler(taskqueue.New(4, 10))

	release := make(chan struct{})
	var tasks []*Task
	for i := 0; i < 3; i++ {
		label := fmt.Sprintf("embed-%d", i)
		tasks = append(tasks, s.Submit(label, func(ctx context.Context, report func(float64)) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-release:
				return nil
			}
		}, Options{}))
	}
	other := s.Submit("other", func(ctx context.Context, report func(float64)) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-release:
			return nil
		}
	}, Options{})

	// Give the queue a moment to start everything.
	time.Sleep(20 * time.Millisecond)

	n := s.CancelWhere(func(snap Snapshot) bool {
		return len(snap.Label) > 6 && snap.Label[:6] == "embed-"
	})
	if n != 3 {
		t.Fatalf("canceled %d, want 3", n)
	}

	for _, tk := range tasks {
		if snap := tk.Wait(); snap.Status != StatusCanceled {
			t.Fatalf("task %s status = %v", snap.Label, snap.Status)
		}
	}

	close(release)
	if snap := other.Wait(); snap.Status != StatusCompleted {
		t.Fatalf("other status = %v", snap.Status)
	}
}

func TestScheduler_ProgressCoalesced(t *testing.T) {
	s := NewScheduler(nil)
	s.interval = 20 * time.Millisecond

	var mu sync.Mutex
	updates := 0
	s.SetListener(func(ev Event) {
		if ev.Type == EventUpdated && !ev.Task.Status.Terminal() && ev.Task.Progress > 0 {
			mu.Lock()
			updates++
			mu.Unlock()
		}
	})

	tk := s.Submit("bursty", func(ctx context.Context, report func(float64)) error {
		for i := 0; i < 1000; i++ {
			report(float64(i) / 1000)
		}
		time.Sleep(60 * time.Millisecond)
		return nil
	}, Options{})
	tk.Wait()

	mu.Lock()
	defer mu.Unlock()
	if updates == 0 {
		t.Fatal("expected at least one progress broadcast")
	}
	if updates > 10 {
		t.Fatalf("progress broadcasts not coalesced: %d", updates)
	}
}

func TestScheduler_PanicSettlesFailedWithoutLeakingFlusher(t *testing.T) {
	s := NewScheduler(taskqueue.New(1, 100))

	before := runtime.NumGoroutine()
	for i := 0; i < 20; i++ {
		tk := s.Submit("boom", func(ctx context.Context, report func(float64)) error {
			panic("boom")
		}, Options{})
		snap := tk.Wait()
		if snap.Status != StatusFailed || !strings.Contains(snap.Err, "panic") {
			t.Fatalf("panicked task = %+v", snap)
		}
	}

	// Each leaked progress flusher would be one extra goroutine.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if runtime.NumGoroutine() <= before+5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("goroutines = %d, started with %d", runtime.NumGoroutine(), before)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScheduler_OverflowSettlesAsFailed(t *testing.T) {
	s := NewScheduler(taskqueue.New(1, 1))

	release := make(chan struct{})
	busy := func(ctx context.Context, report func(float64)) error {
		<-release
		return nil
	}
	running := s.Submit("a", busy, Options{})
	queued := s.Submit("b", busy, Options{})
	rejected := s.Submit("c", busy, Options{})

	snap := rejected.Wait()
	if snap.Status != StatusFailed || snap.Err == "" {
		t.Fatalf("rejected task = %+v", snap)
	}

	close(release)
	if got := running.Wait().Status; got != StatusCompleted {
		t.Fatalf("running task = %v", got)
	}
	if got := queued.Wait().Status; got != StatusCompleted {
		t.Fatalf("queued task = %v", got)
	}
}
