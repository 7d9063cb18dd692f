package cache

import (
	"container/list"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ThumbExt is the on-disk format of generated previews.
const ThumbExt = ".webp"

type entry struct {
	key  string
	size int64
}

// Thumbs is a size-weighted LRU over the on-disk preview directory. Each
// entry's weight is its file size in bytes; eviction deletes the backing
// file best-effort. The cache is never persisted; it is reseeded from the
// directory on startup and whenever the budget changes.
type Thumbs struct {
	dir string

	mu     sync.Mutex
	budget int64
	total  int64
	ll     *list.List
	m      map[string]*list.Element
	gen    uint64
}

func NewThumbs(dir string, budget int64) *Thumbs {
	if budget <= 0 {
		budget = 1
	}
	return &Thumbs{
		dir:    dir,
		budget: budget,
		ll:     list.New(),
		m:      map[string]*list.Element{},
	}
}

// Key derives the cache file name for a source asset from its path and
// stat fingerprint, so a changed asset gets a fresh preview.
func Key(sourcePath string, size int64, mtime int64) string {
	h := sha1.Sum([]byte(fmt.Sprintf("%s|%d|%d", sourcePath, size, mtime)))
	return hex.EncodeToString(h[:]) + ThumbExt
}

func (c *Thumbs) Dir() string { return c.dir }

// Path returns the absolute location of a cache file.
func (c *Thumbs) Path(key string) string {
	return filepath.Join(c.dir, key)
}

// Put records a preview file and evicts least-recently-used entries past
// the budget. Evicted files are removed from disk asynchronously; removal
// failures are swallowed.
func (c *Thumbs) Put(key string, size int64) {
	if c == nil || key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.m[key]; ok {
		ent := el.Value.(*entry)
		c.total += size - ent.size
		ent.size = size
		c.ll.MoveToFront(el)
	} else {
		el := c.ll.PushFront(&entry{key: key, size: size})
		c.m[key] = el
		c.total += size
	}
	c.evictLocked()
}

// Touch marks a preview as recently used.
func (c *Thumbs) Touch(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if el, ok := c.m[key]; ok {
		c.ll.MoveToFront(el)
	}
	c.mu.Unlock()
}

func (c *Thumbs) Has(key string) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	_, ok := c.m[key]
	c.mu.Unlock()
	return ok
}

func (c *Thumbs) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *Thumbs) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// SetBudget changes the size cap and evicts down to it.
func (c *Thumbs) SetBudget(budget int64) {
	if c == nil || budget <= 0 {
		return
	}
	c.mu.Lock()
	c.budget = budget
	c.evictLocked()
	c.mu.Unlock()
}

// Rebuild reseeds the cache from the preview directory. It is meant to run
// as a scheduled task: it reports fractional progress and stops at the
// abort signal. A rebuild started after this one supersedes it: the stale
// scan abandons the cache untouched when it notices it lost.
func (c *Thumbs) Rebuild(ctx context.Context, report func(float64)) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			entries = nil
		} else {
			return err
		}
	}

	type seeded struct {
		key  string
		size int64
	}
	var found []seeded
	for i, de := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if de.IsDir() || filepath.Ext(de.Name()) != ThumbExt {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		found = append(found, seeded{key: de.Name(), size: info.Size()})
		if report != nil && len(entries) > 0 {
			report(float64(i+1) / float64(len(entries)))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return nil
	}
	c.ll.Init()
	c.m = map[string]*list.Element{}
	c.total = 0
	for _, s := range found {
		el := c.ll.PushFront(&entry{key: s.key, size: s.size})
		c.m[s.key] = el
		c.total += s.size
	}
	c.evictLocked()
	if report != nil {
		report(1)
	}
	return nil
}

func (c *Thumbs) evictLocked() {
	for c.total > c.budget {
		last := c.ll.Back()
		if last == nil {
			break
		}
		ent := last.Value.(*entry)
		delete(c.m, ent.key)
		c.ll.Remove(last)
		c.total -= ent.size
		go func(path string) { _ = os.Remove(path) }(c.Path(ent.key))
	}
}
