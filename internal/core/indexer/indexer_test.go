package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/simeonradivoev/electron-dam-sub000/internal/core/bundle"
	"github.com/simeonradivoev/electron-dam-sub000/internal/core/sidecar"
	"github.com/simeonradivoev/electron-dam-sub000/internal/core/walk"
	"github.com/simeonradivoev/electron-dam-sub000/internal/docstore"
	indexbleve "github.com/simeonradivoev/electron-dam-sub000/internal/index/bleve"
	"github.com/simeonradivoev/electron-dam-sub000/internal/index/store"
	"github.com/simeonradivoev/electron-dam-sub000/internal/model"
)

func writeFile(t *testing.T, root string, rel string, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newIndexer(t *testing.T, root string, opts Options) (*Indexer, store.Store) {
	t.Helper()
	w, err := walk.New(root)
	if err != nil {
		t.Fatal(err)
	}
	s, err := indexbleve.Open(filepath.Join(t.TempDir(), "idx"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	opts.Store = s
	if opts.Sidecar == nil {
		opts.Sidecar = sidecar.NewStore(root)
	}
	return New(w, opts), s
}

func entryIDs(t *testing.T, s store.Store) []string {
	t.Helper()
	var ids []string
	if err := s.ForEach(func(e store.Entry) error {
		ids = append(ids, e.ID)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	sort.Strings(ids)
	return ids
}

func TestReindexBundleAndContents(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Bundle/bundle.json", `{"name":"Scene Pack","description":"a forest scene"}`)
	writeFile(t, root, "Bundle/model.obj", "obj")
	writeFile(t, root, "loose.png", "png")

	ix, s := newIndexer(t, root, Options{})
	if err := ix.Reindex(context.Background(), nil); err != nil {
		t.Fatalf("reindex: %v", err)
	}

	want := []string{"Bundle", "Bundle/model.obj", "loose.png"}
	if got := entryIDs(t, s); !equalStrings(got, want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}

	e, ok, err := s.Get("Bundle")
	if err != nil || !ok {
		t.Fatalf("get bundle: ok=%v err=%v", ok, err)
	}
	if e.FileType != string(model.TypeBundle) || e.Description != "a forest scene" {
		t.Fatalf("bundle entry = %+v", e)
	}
	m, ok, err := s.Get("Bundle/model.obj")
	if err != nil || !ok {
		t.Fatalf("get model: ok=%v err=%v", ok, err)
	}
	if m.BundleID != "Bundle" {
		t.Fatalf("model bundle id = %q", m.BundleID)
	}

	hits, err := s.SearchLexical(store.LexicalQuery{Term: "forest", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "Bundle" {
		t.Fatalf("description search hits = %v", hits)
	}
}

func TestReindexWithRootMarker(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bundle.json", `{"name":"Library","description":"everything"}`)
	writeFile(t, root, "model.obj", "obj")

	ix, s := newIndexer(t, root, Options{})
	if err := ix.Reindex(context.Background(), nil); err != nil {
		t.Fatalf("reindex with root marker: %v", err)
	}

	want := []string{".", "model.obj"}
	if got := entryIDs(t, s); !equalStrings(got, want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}

	rb, ok, err := s.Get(bundle.RootBundlePath)
	if err != nil || !ok {
		t.Fatalf("get root bundle: ok=%v err=%v", ok, err)
	}
	if rb.FileType != string(model.TypeBundle) || rb.Description != "everything" {
		t.Fatalf("root bundle entry = %+v", rb)
	}
	m, ok, err := s.Get("model.obj")
	if err != nil || !ok {
		t.Fatalf("get model: ok=%v err=%v", ok, err)
	}
	if m.BundleID != bundle.RootBundlePath {
		t.Fatalf("model bundle id = %q", m.BundleID)
	}

	// Removing the marker drops the root's own entry and strips the
	// membership from its contents.
	if err := os.Remove(filepath.Join(root, "bundle.json")); err != nil {
		t.Fatal(err)
	}
	if err := ix.HandleRemove(context.Background(), "bundle.json"); err != nil {
		t.Fatal(err)
	}
	if got := entryIDs(t, s); !equalStrings(got, []string{"model.obj"}) {
		t.Fatalf("entries after marker removal = %v", got)
	}
	m, _, err = s.Get("model.obj")
	if err != nil {
		t.Fatal(err)
	}
	if m.BundleID != "" {
		t.Fatalf("model bundle id after marker removal = %q", m.BundleID)
	}
}

func TestSidecarChangeUpsertsTags(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Bundle/bundle.json", `{}`)
	writeFile(t, root, "Bundle/model.obj", "obj")

	ix, s := newIndexer(t, root, Options{})
	if err := ix.Reindex(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	writeFile(t, root, "Bundle/model.obj.dam", `{"tags":["lowpoly","tree"]}`)
	if err := ix.HandleChange(context.Background(), "Bundle/model.obj.dam"); err != nil {
		t.Fatal(err)
	}

	e, ok, err := s.Get("Bundle/model.obj")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if len(e.Tags) != 2 || e.Tags[0] != "lowpoly" {
		t.Fatalf("tags = %v", e.Tags)
	}
	if e.BundleID != "Bundle" {
		t.Fatalf("bundle id lost: %q", e.BundleID)
	}
	hits, err := s.SearchLexical(store.LexicalQuery{Term: "lowpoly", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "Bundle/model.obj" {
		t.Fatalf("tag search hits = %v", hits)
	}
}

func TestSidecarRemoveReindexesOwner(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "model.obj", "obj")
	writeFile(t, root, "model.obj.dam", `{"tags":["keep"]}`)

	ix, s := newIndexer(t, root, Options{})
	if err := ix.Reindex(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(filepath.Join(root, "model.obj.dam")); err != nil {
		t.Fatal(err)
	}
	if err := ix.HandleRemove(context.Background(), "model.obj.dam"); err != nil {
		t.Fatal(err)
	}
	e, ok, _ := s.Get("model.obj")
	if !ok {
		t.Fatal("entry dropped with its sidecar")
	}
	if len(e.Tags) != 0 {
		t.Fatalf("stale tags survive: %v", e.Tags)
	}
}

func TestRemoveAssetDropsSubtree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pack/bundle.json", `{}`)
	writeFile(t, root, "pack/a.obj", "a")
	writeFile(t, root, "pack/deep/b.png", "b")
	writeFile(t, root, "other.wav", "w")

	ix, s := newIndexer(t, root, Options{})
	if err := ix.Reindex(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	if err := os.RemoveAll(filepath.Join(root, "pack")); err != nil {
		t.Fatal(err)
	}
	if err := ix.HandleRemove(context.Background(), "pack"); err != nil {
		t.Fatal(err)
	}
	if got := entryIDs(t, s); !equalStrings(got, []string{"other.wav"}) {
		t.Fatalf("entries after remove = %v", got)
	}
}

func TestVirtualBundlesIndexedWithoutFilesystem(t *testing.T) {
	root := t.TempDir()
	ds, err := docstore.Open(filepath.Join(t.TempDir(), "meta.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()
	vs := bundle.NewVirtualStore(ds)

	id, err := vs.Insert(model.BundleInfo{Name: "V1", Description: "nebula skybox pack"})
	if err != nil {
		t.Fatal(err)
	}

	ix, s := newIndexer(t, root, Options{Virtual: vs})
	if err := ix.Reindex(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	e, ok, err := s.Get(id)
	if err != nil || !ok {
		t.Fatalf("virtual bundle not indexed: ok=%v err=%v", ok, err)
	}
	if !e.Virtual || e.FileName != "V1" {
		t.Fatalf("virtual entry = %+v", e)
	}
	hits, err := s.SearchLexical(store.LexicalQuery{Term: "nebula", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != id {
		t.Fatalf("virtual search hits = %v", hits)
	}

	if err := ix.HandleVirtualRemove(id); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(id); ok {
		t.Fatal("virtual entry survives removal")
	}
}

func TestReindexCancelThenRerunConverges(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, root, filepath.Join("files", string(rune('a'+i))+".obj"), "x")
	}

	ix, s := newIndexer(t, root, Options{})
	if err := ix.Reindex(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	want := entryIDs(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	err := ix.Reindex(ctx, func(p float64) {
		if p >= 0.5 {
			cancel()
		}
	})
	if err == nil {
		t.Fatal("canceled reindex returned nil")
	}
	if n, _ := s.Count(); n >= len(want) {
		t.Fatalf("expected partial index, got %d entries", n)
	}

	if err := ix.Reindex(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if got := entryIDs(t, s); !equalStrings(got, want) {
		t.Fatalf("rerun entries = %v, want %v", got, want)
	}
}

type fakeGen struct{ calls int }

func (g *fakeGen) Generate(ctx context.Context, text string) ([]float32, error) {
	g.calls++
	return []float32{float32(len(text)), 1}, nil
}

func (g *fakeGen) Model() string { return "test-model" }

func TestEmbeddingLifecycle(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "model.obj", "obj")
	writeFile(t, root, "model.obj.dam", `{"description":"old description"}`)

	gen := &fakeGen{}
	side := sidecar.NewStore(root)
	ix, s := newIndexer(t, root, Options{Sidecar: side, Embedder: gen})

	if err := ix.Reindex(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if gen.calls != 1 {
		t.Fatalf("generate calls = %d, want 1", gen.calls)
	}
	e, _, _ := s.Get("model.obj")
	if len(e.Vector) == 0 {
		t.Fatal("entry missing vector")
	}
	meta, _, err := side.Load("model.obj")
	if err != nil {
		t.Fatal(err)
	}
	if meta.Embedding == nil || meta.Embedding.Model != "test-model" {
		t.Fatalf("embedding not persisted: %+v", meta.Embedding)
	}

	// unchanged description: no regeneration on the next pass
	if err := ix.HandleChange(context.Background(), "model.obj"); err != nil {
		t.Fatal(err)
	}
	if gen.calls != 1 {
		t.Fatalf("fresh embedding regenerated, calls = %d", gen.calls)
	}

	// changed description: the stored hash no longer matches
	writeFile(t, root, "model.obj.dam", `{"description":"new description"}`)
	if err := ix.HandleChange(context.Background(), "model.obj.dam"); err != nil {
		t.Fatal(err)
	}
	if gen.calls != 2 {
		t.Fatalf("stale embedding not regenerated, calls = %d", gen.calls)
	}

	// cleared description: the embedding is deleted, not kept stale
	writeFile(t, root, "model.obj.dam", `{"tags":["x"]}`)
	if err := ix.HandleChange(context.Background(), "model.obj.dam"); err != nil {
		t.Fatal(err)
	}
	meta, _, err = side.Load("model.obj")
	if err != nil {
		t.Fatal(err)
	}
	if meta.Embedding != nil {
		t.Fatalf("embedding survives cleared description: %+v", meta.Embedding)
	}
	e, _, _ = s.Get("model.obj")
	if len(e.Vector) != 0 {
		t.Fatal("entry keeps vector after description cleared")
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
