package sidecar

import (
	"bytes"
	"encoding/json"
	"errors"
	"hash/fnv"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/simeonradivoev/electron-dam-sub000/internal/damerr"
	"github.com/simeonradivoev/electron-dam-sub000/internal/model"
)

const (
	// Ext is the sidecar suffix for plain files: model.obj -> model.obj.dam
	Ext = ".dam"
	// MarkerName is the sidecar filename for directories and the bundle
	// marker: its presence makes the directory a bundle.
	MarkerName = "bundle.json"
)

// ArchiveMarkerFor returns the marker path adjacent to a zip archive:
// foo.zip -> foo.zip.bundle.json
func ArchiveMarkerFor(rel string) string {
	return rel + "." + MarkerName
}

// IsSidecarName reports whether a base name is sidecar metadata rather
// than an asset.
func IsSidecarName(name string) bool {
	return name == MarkerName ||
		strings.HasSuffix(name, Ext) ||
		strings.HasSuffix(name, "."+MarkerName)
}

// AssetFor maps a sidecar path back to the asset it governs.
// x/y.obj.dam -> x/y.obj; x/bundle.json -> x; x/foo.zip.bundle.json -> x/foo.zip
func AssetFor(rel string) string {
	rel = path.Clean(filepath.ToSlash(rel))
	switch {
	case path.Base(rel) == MarkerName:
		dir := path.Dir(rel)
		if dir == "." {
			return ""
		}
		return dir
	case strings.HasSuffix(rel, "."+MarkerName):
		return strings.TrimSuffix(rel, "."+MarkerName)
	case strings.HasSuffix(rel, Ext):
		return strings.TrimSuffix(rel, Ext)
	default:
		return rel
	}
}

// InsideArchive reports whether a logical path addresses an entry inside a
// zip archive. Such entries are not individually taggable.
func InsideArchive(rel string) bool {
	lower := strings.ToLower(rel)
	i := strings.Index(lower, ".zip/")
	return i >= 0
}

const lockStripes = 64

// Store reads and writes sidecar metadata under one project root.
// Mutations to the same sidecar are serialized through a striped lock so
// overlapping edits cannot lose updates.
type Store struct {
	root  string
	locks [lockStripes]sync.Mutex
}

func NewStore(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

// For resolves which sidecar file governs rel, and whether rel names a
// directory. Archives that already carry an adjacent marker are governed
// by that marker.
func (s *Store) For(rel string) (absPath string, isDir bool, err error) {
	rel = filepath.ToSlash(strings.Trim(rel, "/"))
	if InsideArchive(rel) {
		return "", false, damerr.Conflict("zip-contained assets are not individually taggable: %s", rel)
	}
	abs := filepath.Join(s.root, filepath.FromSlash(rel))
	st, statErr := os.Stat(abs)
	if statErr == nil && st.IsDir() {
		return filepath.Join(abs, MarkerName), true, nil
	}
	marker := abs + "." + MarkerName
	if _, err := os.Stat(marker); err == nil {
		return marker, false, nil
	}
	return abs + Ext, false, nil
}

// Load returns the sidecar document for rel, or an empty one when absent.
func (s *Store) Load(rel string) (model.SidecarMeta, bool, error) {
	p, _, err := s.For(rel)
	if err != nil {
		return model.SidecarMeta{}, false, err
	}
	return readMeta(p)
}

// Mutate loads the current document (or an empty one), applies fn, and
// writes back only if fn reports a change. Creating a directory sidecar
// requires the directory to already be a bundle; tagging must never create
// a bundle as a side effect.
func (s *Store) Mutate(rel string, fn func(*model.SidecarMeta) bool) error {
	p, isDir, err := s.For(rel)
	if err != nil {
		return err
	}

	lock := &s.locks[stripe(p)]
	lock.Lock()
	defer lock.Unlock()

	meta, exists, err := readMeta(p)
	if err != nil {
		return err
	}
	if isDir && !exists {
		return damerr.Conflict("directory %s is not a bundle; create the bundle first", rel)
	}

	if !fn(&meta) {
		return nil
	}
	meta.Tags = NormalizeTags(meta.Tags)
	return writeMeta(p, meta)
}

// NormalizeTags trims and de-duplicates while preserving order. The stored
// list may contain duplicates from older writers; writers clean on write.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	out := tags[:0]
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func readMeta(absPath string) (model.SidecarMeta, bool, error) {
	var meta model.SidecarMeta
	b, err := os.ReadFile(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return meta, false, nil
		}
		return meta, false, err
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return model.SidecarMeta{}, false, damerr.Wrap(err, "corrupt sidecar %s", absPath)
	}
	return meta, true, nil
}

func writeMeta(absPath string, meta model.SidecarMeta) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return err
	}
	return os.WriteFile(absPath, buf.Bytes(), 0o644)
}

func stripe(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % lockStripes)
}
