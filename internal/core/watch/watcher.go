package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler consumes coalesced asset events. The indexer satisfies this.
type Handler interface {
	HandleAdd(ctx context.Context, rel string) error
	HandleChange(ctx context.Context, rel string) error
	HandleRemove(ctx context.Context, rel string) error
}

// Watcher mirrors filesystem activity under a project root into index
// events. Directories are watched recursively; dot-prefixed names and the
// cache directory generate nothing. Sidecar and marker files DO generate
// events, since the handler maps them back to the asset they govern.
type Watcher struct {
	rootAbs string

	handler   Handler
	debouncer *Debouncer
	debounce  time.Duration

	watcher   *fsnotify.Watcher
	closeOnce sync.Once
	closed    chan struct{}
}

type Options struct {
	Debounce         time.Duration
	AdaptiveDebounce bool
	DebounceMin      time.Duration
	DebounceMax      time.Duration
	// OnBatch replaces the default dispatch to the handler, for callers
	// wanting the raw coalesced batches.
	OnBatch func(events []Event)
}

func NewWatcher(root string, h Handler) (*Watcher, error) {
	return NewWatcherWithOptions(root, h, Options{})
}

func NewWatcherWithOptions(root string, h Handler, wopts Options) (*Watcher, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	rootAbs = filepath.Clean(rootAbs)
	if strings.TrimSpace(rootAbs) == "" {
		return nil, fmt.Errorf("root is required")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := wopts.Debounce
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	minDelay := wopts.DebounceMin
	if minDelay <= 0 {
		minDelay = 50 * time.Millisecond
	}
	maxDelay := wopts.DebounceMax
	if maxDelay <= 0 {
		maxDelay = 500 * time.Millisecond
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}

	w := &Watcher{
		rootAbs:   rootAbs,
		handler:   h,
		debouncer: NewDebouncer(debounce),
		debounce:  debounce,
		watcher:   fsw,
		closed:    make(chan struct{}),
	}
	if wopts.AdaptiveDebounce {
		w.debouncer.SetDelayFunc(func(count int) time.Duration {
			switch {
			case count <= 10:
				return minDelay
			case count <= 100:
				return minDelay * 2
			case count <= 500:
				return minDelay * 4
			default:
				return maxDelay
			}
		})
	}
	if wopts.OnBatch != nil {
		w.debouncer.OnFire(wopts.OnBatch)
	} else {
		w.debouncer.OnFire(w.dispatch)
	}

	if err := w.addExistingDirs(); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return w, nil
}

func (w *Watcher) Debounce() time.Duration {
	if w == nil {
		return 0
	}
	return w.debounce
}

func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}

	w.closeOnce.Do(func() { close(w.closed) })

	if w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}

func (w *Watcher) Run(ctx context.Context) error {
	if w == nil || w.watcher == nil {
		return fmt.Errorf("watcher is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.closed:
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (w *Watcher) dispatch(events []Event) {
	if w.handler == nil {
		return
	}
	ctx := context.Background()
	for _, ev := range events {
		switch ev.Op {
		case OpAdd:
			_ = w.handler.HandleAdd(ctx, ev.Path)
		case OpChange:
			_ = w.handler.HandleChange(ctx, ev.Path)
		case OpRemove:
			_ = w.handler.HandleRemove(ctx, ev.Path)
		}
	}
}

func (w *Watcher) addExistingDirs() error {
	return filepath.WalkDir(w.rootAbs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p == w.rootAbs {
			return w.watcher.Add(p)
		}
		if skipDirName(d.Name()) {
			return filepath.SkipDir
		}
		return w.watcher.Add(p)
	})
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	rel, ok := w.toRel(ev.Name)
	if !ok {
		return
	}
	if skipRel(rel) {
		return
	}

	if ev.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
		if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
			// a moved-in tree produces no events for its contents
			_ = w.addDirRecursive(ev.Name)
			w.debouncer.Push(OpAdd, rel)
			return
		}
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		w.debouncer.Push(OpAdd, rel)
	case ev.Op&fsnotify.Write != 0:
		w.debouncer.Push(OpChange, rel)
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.debouncer.Push(OpRemove, rel)
	}
}

func (w *Watcher) toRel(abs string) (string, bool) {
	if strings.TrimSpace(abs) == "" {
		return "", false
	}

	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(w.rootAbs, abs)
	if err != nil {
		return "", false
	}
	if rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	return rel, true
}

// skipRel drops paths with any hidden segment. The cache directory lives
// under a dot-prefixed name, so index churn never feeds back in here.
func skipRel(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if skipDirName(seg) {
			return true
		}
	}
	return false
}

func skipDirName(name string) bool {
	return strings.HasPrefix(name, ".")
}

func (w *Watcher) addDirRecursive(absDir string) error {
	absDir = filepath.Clean(absDir)

	return filepath.WalkDir(absDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != absDir && skipDirName(d.Name()) {
			return filepath.SkipDir
		}
		if _, ok := w.toRel(p); !ok {
			return nil
		}
		return w.watcher.Add(p)
	})
}
