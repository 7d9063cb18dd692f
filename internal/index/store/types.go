package store

import "io"

// Entry is one row of the search index: exactly one per addressable asset,
// including on-disk and virtual bundles. ID is the asset path, or the
// bundle id for virtual bundles.
type Entry struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	Description string    `json:"description,omitempty"`
	Path        string    `json:"path"`
	FileType    string    `json:"fileType"`
	BundleID    string    `json:"bundleId,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Archived    bool      `json:"archived,omitempty"`
	Virtual     bool      `json:"virtual,omitempty"`
	Vector      []float32 `json:"vector,omitempty"`
}

type LexicalQuery struct {
	Term      string
	FileTypes []string
	Limit     int
	Offset    int
}

type LexicalHit struct {
	ID    string
	Score float64
}

// Store is the incrementally-maintained index. Upserts are idempotent and
// keyed by id, which is what makes partial reindex states safe to repair
// by rerunning.
type Store interface {
	Close() error

	Upsert(e Entry) error
	Delete(id string) error
	Get(id string) (Entry, bool, error)
	Has(id string) (bool, error)
	Count() (int, error)
	Clear() error

	// ForEach visits every entry, vectors included.
	ForEach(visit func(Entry) error) error

	SearchLexical(q LexicalQuery) ([]LexicalHit, error)

	// Export serializes the entry set, compressed, for snapshot caching.
	Export(w io.Writer) error
}
