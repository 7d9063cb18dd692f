package sidecar

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/simeonradivoev/electron-dam-sub000/internal/damerr"
	"github.com/simeonradivoev/electron-dam-sub000/internal/model"
)

func TestMutate_FileSidecarRoundTrip(t *testing.T) {
	root := t.TempDir()
	_ = os.WriteFile(filepath.Join(root, "model.obj"), []byte("x"), 0o644)

	s := NewStore(root)
	err := s.Mutate("model.obj", func(m *model.SidecarMeta) bool {
		m.Tags = []string{"y", "y", " "}
		m.Description = "a model"
		return true
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}

	meta, ok, err := s.Load("model.obj")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if len(meta.Tags) != 1 || meta.Tags[0] != "y" {
		t.Fatalf("tags = %v, want deduplicated [y]", meta.Tags)
	}
	if meta.Description != "a model" {
		t.Fatalf("description = %q", meta.Description)
	}
	if _, err := os.Stat(filepath.Join(root, "model.obj"+Ext)); err != nil {
		t.Fatalf("sidecar file: %v", err)
	}
}

func TestMutate_NoWriteWhenUnchanged(t *testing.T) {
	root := t.TempDir()
	_ = os.WriteFile(filepath.Join(root, "a.png"), []byte("x"), 0o644)

	s := NewStore(root)
	err := s.Mutate("a.png", func(m *model.SidecarMeta) bool { return false })
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a.png"+Ext)); !os.IsNotExist(err) {
		t.Fatal("sidecar written despite unchanged transform")
	}
}

func TestMutate_DirectoryRequiresBundle(t *testing.T) {
	root := t.TempDir()
	_ = os.MkdirAll(filepath.Join(root, "plain"), 0o755)

	s := NewStore(root)
	err := s.Mutate("plain", func(m *model.SidecarMeta) bool {
		m.Tags = []string{"x"}
		return true
	})
	if !damerr.IsConflict(err) {
		t.Fatalf("expected conflict for non-bundle directory, got %v", err)
	}

	// Once a marker exists, the directory is taggable.
	_ = os.WriteFile(filepath.Join(root, "plain", MarkerName), []byte("{}"), 0o644)
	err = s.Mutate("plain", func(m *model.SidecarMeta) bool {
		m.Tags = []string{"x"}
		return true
	})
	if err != nil {
		t.Fatalf("mutate bundle dir: %v", err)
	}
}

func TestMutate_ZipEntryRejected(t *testing.T) {
	s := NewStore(t.TempDir())
	err := s.Mutate("pack.zip/inner.obj", func(m *model.SidecarMeta) bool { return true })
	if !damerr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestMutate_ArchiveMarkerGovernsZip(t *testing.T) {
	root := t.TempDir()
	_ = os.WriteFile(filepath.Join(root, "pack.zip"), []byte("zip"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "pack.zip."+MarkerName), []byte(`{"name":"Pack"}`), 0o644)

	s := NewStore(root)
	meta, ok, err := s.Load("pack.zip")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if meta.Name != "Pack" {
		t.Fatalf("name = %q", meta.Name)
	}
}

func TestMutate_ConcurrentEditsDoNotLoseUpdates(t *testing.T) {
	root := t.TempDir()
	_ = os.WriteFile(filepath.Join(root, "a.obj"), []byte("x"), 0o644)

	s := NewStore(root)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		tag := string(rune('a' + i))
		go func() {
			defer wg.Done()
			_ = s.Mutate("a.obj", func(m *model.SidecarMeta) bool {
				m.Tags = append(m.Tags, tag)
				return true
			})
		}()
	}
	wg.Wait()

	meta, _, err := s.Load("a.obj")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(meta.Tags) != 20 {
		t.Fatalf("tags = %d, want 20 (lost update)", len(meta.Tags))
	}
}

func TestAssetFor(t *testing.T) {
	cases := []struct{ in, want string }{
		{"x/y.obj.dam", "x/y.obj"},
		{"x/bundle.json", "x"},
		{"x/foo.zip.bundle.json", "x/foo.zip"},
		{"bundle.json", ""},
		{"x/y.obj", "x/y.obj"},
	}
	for _, tc := range cases {
		if got := AssetFor(tc.in); got != tc.want {
			t.Errorf("AssetFor(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
