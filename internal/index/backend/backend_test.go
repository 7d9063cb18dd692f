package backend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/simeonradivoev/electron-dam-sub000/internal/index/store"
)

func TestParamsHashStableAndSensitive(t *testing.T) {
	a := Params{EmbeddingModel: "m1"}.Hash()
	b := Params{EmbeddingModel: "m1"}.Hash()
	c := Params{EmbeddingModel: "m2"}.Hash()

	if a != b {
		t.Fatal("hash not stable")
	}
	if a == c {
		t.Fatal("hash insensitive to model change")
	}
}

func TestOpenReportsExistingGeneration(t *testing.T) {
	cache := t.TempDir()
	p := Params{EmbeddingModel: "m1"}

	s, existed, err := Open(cache, p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if existed {
		t.Fatal("fresh index reported as existing")
	}
	_ = s.Upsert(store.Entry{ID: "a.obj", FileName: "a.obj", Path: "a.obj", FileType: "Model"})
	_ = s.Close()

	s2, existed, err := Open(cache, p)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if !existed {
		t.Fatal("persisted index not detected")
	}
	if n, _ := s2.Count(); n != 1 {
		t.Fatalf("count = %d after reopen", n)
	}
}

func TestOpenPrunesStaleGenerations(t *testing.T) {
	cache := t.TempDir()

	s, _, err := Open(cache, Params{EmbeddingModel: "m1"})
	if err != nil {
		t.Fatalf("open m1: %v", err)
	}
	_ = s.Close()
	oldDir := Dir(cache, Params{EmbeddingModel: "m1"})

	s2, _, err := Open(cache, Params{EmbeddingModel: "m2"})
	if err != nil {
		t.Fatalf("open m2: %v", err)
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Fatal("stale generation not pruned")
	}
	if _, err := os.Stat(Dir(cache, Params{EmbeddingModel: "m2"})); err != nil {
		t.Fatal("current generation missing")
	}
	_ = s2.Close()

	// Unrelated cache files survive pruning.
	keep := filepath.Join(cache, "thumb.webp")
	_ = os.WriteFile(keep, []byte("x"), 0o644)
	s3, _, _ := Open(cache, Params{EmbeddingModel: "m2"})
	defer s3.Close()
	if _, err := os.Stat(keep); err != nil {
		t.Fatal("unrelated cache file deleted")
	}
}
