package backend

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	damBleve "github.com/simeonradivoev/electron-dam-sub000/internal/index/bleve"
	"github.com/simeonradivoev/electron-dam-sub000/internal/index/store"
)

// SchemaVersion changes whenever the index entry shape or mapping does; a
// bump invalidates persisted indexes and forces a full reindex.
const SchemaVersion = 2

const indexPrefix = "index-"

// Params are the build inputs baked into an index generation. Two indexes
// with equal params are interchangeable; differing params mean the
// persisted one is stale.
type Params struct {
	EmbeddingModel string
}

// Hash fingerprints the build parameters.
func (p Params) Hash() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("v%d|model=%s", SchemaVersion, p.EmbeddingModel)))
	return hex.EncodeToString(sum[:8])
}

// Dir returns the index location for a project and parameter set:
// <root>/.cache/index-<hash>.
func Dir(cacheDir string, p Params) string {
	return filepath.Join(cacheDir, indexPrefix+p.Hash())
}

// Open opens (or creates) the persisted index for the given build
// parameters under the project cache directory. Reopening a matching
// generation is what lets startup skip the full reindex. Stale
// generations for the same project are deleted.
func Open(cacheDir string, p Params) (store.Store, bool, error) {
	dir := Dir(cacheDir, p)
	existed := false
	if _, err := os.Stat(filepath.Join(dir, "index_meta.json")); err == nil {
		existed = true
	}

	s, err := damBleve.Open(dir)
	if err != nil {
		return nil, false, err
	}

	pruneStale(cacheDir, filepath.Base(dir))
	return s, existed, nil
}

// pruneStale removes index generations other than keep. Failures are
// swallowed: a leftover stale dir costs disk, not correctness.
func pruneStale(cacheDir string, keep string) {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !strings.HasPrefix(name, indexPrefix) || name == keep {
			continue
		}
		_ = os.RemoveAll(filepath.Join(cacheDir, name))
	}
}
