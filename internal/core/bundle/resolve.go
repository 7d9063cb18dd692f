package bundle

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/simeonradivoev/electron-dam-sub000/internal/core/sidecar"
)

// RootBundlePath is the logical id of a bundle whose marker sits at the
// project root itself. The empty path already means "no enclosing bundle",
// so the root bundle needs a distinct spelling.
const RootBundlePath = "."

// IsArchivePath reports whether a logical path names a zip archive.
func IsArchivePath(rel string) bool {
	return strings.HasSuffix(strings.ToLower(rel), ".zip")
}

// Resolve finds the nearest enclosing bundle for an asset path by walking
// the ancestor chain outward, asset first. Each level is checked for both
// marker shapes: a marker inside the ancestor when it is a directory, or a
// marker adjacent to it when the ancestor is itself a zip archive (the
// naming rule changes for that level only). Returns the bundle's path
// (RootBundlePath for a marker at the project root itself), or "" when no
// ancestor is a bundle; absence is a normal negative result.
//
// Traversal avoids paying this O(depth) walk per node by inheriting the
// bundle path during descent; this entry point serves watch events and
// one-off lookups.
func Resolve(root string, rel string) (string, error) {
	rel = path.Clean(filepath.ToSlash(strings.Trim(rel, "/")))
	if rel == "." {
		rel = ""
	}

	for p := rel; ; p = parent(p) {
		ok, err := isBundleAt(root, p)
		if err != nil {
			return "", err
		}
		if ok {
			if p == "" {
				return RootBundlePath, nil
			}
			return p, nil
		}
		if p == "" {
			return "", nil
		}
	}
}

func parent(p string) string {
	d := path.Dir(p)
	if d == "." || d == "/" {
		return ""
	}
	return d
}

// isBundleAt checks the marker shape appropriate for one ancestor level.
// Ancestors that cannot be stat'ed (segments inside an archive) are
// skipped unless the segment itself names an archive.
func isBundleAt(root string, rel string) (bool, error) {
	if IsArchivePath(rel) {
		return fileExists(filepath.Join(root, filepath.FromSlash(sidecar.ArchiveMarkerFor(rel))))
	}
	abs := filepath.Join(root, filepath.FromSlash(rel))
	st, err := os.Stat(abs)
	if err != nil || !st.IsDir() {
		return false, nil
	}
	return fileExists(filepath.Join(abs, sidecar.MarkerName))
}

func fileExists(abs string) (bool, error) {
	st, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !st.IsDir(), nil
}
