package bundle

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/simeonradivoev/electron-dam-sub000/internal/damerr"
	"github.com/simeonradivoev/electron-dam-sub000/internal/docstore"
	"github.com/simeonradivoev/electron-dam-sub000/internal/model"
)

func TestCreateDeleteDirectoryBundle(t *testing.T) {
	root := t.TempDir()
	_ = os.MkdirAll(filepath.Join(root, "props"), 0o755)

	err := Create(root, "props", model.SidecarMeta{Description: "D", Tags: []string{"x"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	info, err := Info(root, "props")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.ID != "props" || info.Name != "props" || info.Description != "D" || info.IsVirtual {
		t.Fatalf("info = %+v", info)
	}

	if err := Create(root, "props", model.SidecarMeta{}); !damerr.IsConflict(err) {
		t.Fatalf("double create: %v", err)
	}

	if err := Delete(root, "props"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := Info(root, "props"); !damerr.IsNotFound(err) {
		t.Fatalf("info after delete: %v", err)
	}
}

func TestCreateArchiveBundleWritesAdjacentMarker(t *testing.T) {
	root := t.TempDir()
	_ = os.WriteFile(filepath.Join(root, "pack.zip"), []byte("z"), 0o644)

	if err := Create(root, "pack.zip", model.SidecarMeta{Name: "Pack"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "pack.zip.bundle.json")); err != nil {
		t.Fatalf("marker: %v", err)
	}

	info, err := Info(root, "pack.zip")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if !info.IsArchive {
		t.Fatal("archive bundle should report IsArchive")
	}
}

func TestCreateRejectsPlainFile(t *testing.T) {
	root := t.TempDir()
	_ = os.WriteFile(filepath.Join(root, "a.obj"), []byte("x"), 0o644)

	if err := Create(root, "a.obj", model.SidecarMeta{}); !damerr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := Create(root, "missing", model.SidecarMeta{}); !damerr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMoveBundle(t *testing.T) {
	root := t.TempDir()
	_ = os.WriteFile(filepath.Join(root, "pack.zip"), []byte("z"), 0o644)
	_ = Create(root, "pack.zip", model.SidecarMeta{Name: "Pack"})

	if err := Move(root, "pack.zip", "moved.zip"); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "moved.zip.bundle.json")); err != nil {
		t.Fatal("marker did not move with the archive")
	}

	_ = os.WriteFile(filepath.Join(root, "taken.zip"), []byte("z"), 0o644)
	if err := Move(root, "moved.zip", "taken.zip"); !damerr.IsConflict(err) {
		t.Fatalf("move onto existing: %v", err)
	}
}

type fileFetcher struct{ src string }

func (f fileFetcher) Fetch(ctx context.Context, url string, dest string) error {
	in, err := os.Open(f.src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

func TestVirtualBundleLifecycleAndConvert(t *testing.T) {
	root := t.TempDir()
	docs, err := docstore.Open(filepath.Join(root, ".cache", "docs.db"))
	if err != nil {
		t.Fatalf("docstore: %v", err)
	}
	defer docs.Close()
	vs := NewVirtualStore(docs)

	id, err := vs.Insert(model.BundleInfo{ID: "V1", Name: "N", Description: "virtual desc"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id != "V1" {
		t.Fatalf("id = %q", id)
	}

	got, ok, err := vs.Get("V1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !got.IsVirtual || got.Name != "N" {
		t.Fatalf("got = %+v", got)
	}

	// Source archive to "download".
	srcZip := filepath.Join(t.TempDir(), "src.zip")
	zf, _ := os.Create(srcZip)
	zw := zip.NewWriter(zf)
	w, _ := zw.Create("mesh/model.obj")
	_, _ = w.Write([]byte("obj"))
	_ = zw.Close()
	_ = zf.Close()

	err = vs.Convert(context.Background(), "V1", fileFetcher{src: srcZip}, root, "N")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "N", "mesh", "model.obj")); err != nil {
		t.Fatalf("extracted asset: %v", err)
	}
	info, err := Info(root, "N")
	if err != nil {
		t.Fatalf("on-disk info: %v", err)
	}
	if info.Description != "virtual desc" {
		t.Fatalf("description not carried over: %+v", info)
	}
	if _, ok, _ := vs.Get("V1"); ok {
		t.Fatal("virtual record should be gone after conversion")
	}

	if err := vs.Convert(context.Background(), "V1", fileFetcher{src: srcZip}, root, "N2"); !damerr.IsNotFound(err) {
		t.Fatalf("convert missing: %v", err)
	}
}
