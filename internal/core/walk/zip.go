package walk

import (
	"archive/zip"
	"context"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/simeonradivoev/electron-dam-sub000/internal/model"
)

// walkZip treats the archive as a directory whose children are its
// entries. The entry table is read once; each non-ignored entry yields one
// node carrying the archive's modify time and the entry's CRC as a version
// tag, since zip entries have no inode.
func (w *Walker) walkZip(ctx context.Context, zipRel string, bundlePath string, st os.FileInfo, visit VisitFunc) error {
	zr, err := zip.OpenReader(w.abs(zipRel))
	if err != nil {
		return nil // corrupt archive: skip its contents, keep the rest
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := path.Clean(f.Name)
		if f.FileInfo().IsDir() || name == "." || strings.HasSuffix(name, "/") {
			continue
		}
		if zipEntryIgnored(name) {
			continue
		}
		node := model.AssetNode{
			Path:       zipRel + "/" + name,
			Name:       path.Base(name),
			Kind:       model.KindZipEntry,
			BundlePath: bundlePath,
			FileType:   Classify(name),
			Size:       int64(f.UncompressedSize64),
			Inode:      uint64(f.CRC32),
			ModTime:    st.ModTime().Unix(),
		}
		if err := visit(node); err != nil {
			return err
		}
	}
	return nil
}

// listZip yields the archive's immediate children only: its top-level file
// entries, plus one directory node per distinct first path segment so a
// browser can descend further.
func (w *Walker) listZip(ctx context.Context, zipRel string, bundlePath string, st os.FileInfo, visit VisitFunc) error {
	zr, err := zip.OpenReader(w.abs(zipRel))
	if err != nil {
		return nil // corrupt archive: skip its contents, keep the rest
	}
	defer zr.Close()

	// dir name -> has at least one entry beneath it
	dirs := map[string]bool{}
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := path.Clean(f.Name)
		if name == "." || zipEntryIgnored(name) {
			continue
		}
		if i := strings.Index(name, "/"); i >= 0 {
			// anything deeper makes the first segment a non-empty dir
			dirs[name[:i]] = true
			continue
		}
		if f.FileInfo().IsDir() {
			if _, ok := dirs[name]; !ok {
				dirs[name] = false
			}
			continue
		}
		node := model.AssetNode{
			Path:       zipRel + "/" + name,
			Name:       name,
			Kind:       model.KindZipEntry,
			BundlePath: bundlePath,
			FileType:   Classify(name),
			Size:       int64(f.UncompressedSize64),
			Inode:      uint64(f.CRC32),
			ModTime:    st.ModTime().Unix(),
		}
		if err := visit(node); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(dirs))
	for name := range dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		node := model.AssetNode{
			Path:       zipRel + "/" + name,
			Name:       name,
			Kind:       model.KindDir,
			BundlePath: bundlePath,
			ModTime:    st.ModTime().Unix(),
			NonEmpty:   dirs[name],
		}
		if err := visit(node); err != nil {
			return err
		}
	}
	return nil
}

// zipEntryIgnored applies the same ignore rules inside archives as on
// disk, segment by segment.
func zipEntryIgnored(name string) bool {
	for _, seg := range strings.Split(name, "/") {
		if skipName(seg, false) {
			return true
		}
	}
	return false
}
