package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestThumbs_EvictsOverBudgetAndDeletesFile(t *testing.T) {
	dir := t.TempDir()
	c := NewThumbs(dir, 100)

	oldKey := Key("assets/a.obj", 10, 1)
	newKey := Key("assets/b.obj", 20, 2)
	oldPath := filepath.Join(dir, oldKey)
	_ = os.WriteFile(oldPath, make([]byte, 60), 0o644)
	_ = os.WriteFile(filepath.Join(dir, newKey), make([]byte, 60), 0o644)

	c.Put(oldKey, 60)
	c.Put(newKey, 60)

	if c.Has(oldKey) {
		t.Fatal("oldest entry should have been evicted")
	}
	if !c.Has(newKey) {
		t.Fatal("newest entry should survive")
	}
	if c.Total() != 60 {
		t.Fatalf("total = %d, want 60", c.Total())
	}

	// Disk removal is async best-effort.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(oldPath); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("evicted preview file not deleted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestThumbs_TouchProtectsFromEviction(t *testing.T) {
	c := NewThumbs(t.TempDir(), 100)

	c.Put("a"+ThumbExt, 50)
	c.Put("b"+ThumbExt, 50)
	c.Touch("a" + ThumbExt)
	c.Put("c"+ThumbExt, 50)

	if !c.Has("a" + ThumbExt) {
		t.Fatal("touched entry evicted")
	}
	if c.Has("b" + ThumbExt) {
		t.Fatal("least-recently-used entry kept")
	}
}

func TestThumbs_RebuildSeedsFromDirectory(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "x"+ThumbExt), make([]byte, 10), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "y"+ThumbExt), make([]byte, 30), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), make([]byte, 99), 0o644)

	c := NewThumbs(dir, 1000)
	var last float64
	if err := c.Rebuild(context.Background(), func(p float64) { last = p }); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	if c.Total() != 40 {
		t.Fatalf("total = %d, want 40", c.Total())
	}
	if last != 1 {
		t.Fatalf("final progress = %v, want 1", last)
	}
}

func TestThumbs_SetBudgetEvicts(t *testing.T) {
	c := NewThumbs(t.TempDir(), 1000)
	c.Put("a"+ThumbExt, 400)
	c.Put("b"+ThumbExt, 400)

	c.SetBudget(500)
	if c.Total() > 500 {
		t.Fatalf("total = %d after budget cut", c.Total())
	}
	if !c.Has("b" + ThumbExt) {
		t.Fatal("most recent entry should survive budget cut")
	}
}

func TestKey_ChangesWithFingerprint(t *testing.T) {
	a := Key("assets/a.obj", 10, 1)
	b := Key("assets/a.obj", 10, 2)
	if a == b {
		t.Fatal("key should change with mtime")
	}
}
