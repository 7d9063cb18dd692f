package bleve

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	bquery "github.com/blevesearch/bleve/v2/search/query"
	"go.etcd.io/bbolt"

	"github.com/simeonradivoev/electron-dam-sub000/internal/index/store"
)

// Store backs the asset index with a bleve lexical index plus a bbolt
// sidecar holding the authoritative entry records (vectors included;
// vector scoring happens brute-force at query time, outside bleve).
type Store struct {
	mu       sync.Mutex
	path     string
	metaPath string
	idx      bleve.Index
	meta     *bbolt.DB
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("index path is required")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}

	var idx bleve.Index
	if _, err := os.Stat(filepath.Join(path, "index_meta.json")); err == nil {
		idx, err = bleve.Open(path)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		idx, err = bleve.New(path, buildMapping())
		if err != nil {
			return nil, err
		}
	}

	metaPath := filepath.Join(path, "dam-meta.db")
	meta, err := bbolt.Open(metaPath, 0o600, nil)
	if err != nil {
		_ = idx.Close()
		return nil, err
	}

	s := &Store{path: path, metaPath: metaPath, idx: idx, meta: meta}
	if err := s.ensureBuckets(); err != nil {
		_ = meta.Close()
		_ = idx.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	if s.idx != nil {
		_ = s.idx.Close()
	}
	if s.meta != nil {
		_ = s.meta.Close()
	}
	return nil
}

// Upsert writes exactly one entry per id: existence is checked first so
// reindexing the same asset twice leaves a single row.
func (s *Store) Upsert(e store.Entry) error {
	if s == nil || s.idx == nil {
		return fmt.Errorf("store is not open")
	}
	id := strings.TrimSpace(e.ID)
	if id == "" {
		return fmt.Errorf("entry id is required")
	}
	e.ID = id

	s.mu.Lock()
	defer s.mu.Unlock()

	// The index itself replaces by id; the bbolt record keeps the insert
	// vs update distinction observable and the vector authoritative.
	if err := s.idx.Index(id, indexDoc(e)); err != nil {
		return err
	}
	return s.meta.Update(func(tx *bbolt.Tx) error {
		b := mustBucket(tx, bucketEntries)
		buf, err := encode(e)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), buf)
	})
}

func (s *Store) Delete(id string) error {
	if s == nil || s.idx == nil {
		return fmt.Errorf("store is not open")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.idx.Delete(id); err != nil {
		return err
	}
	return s.meta.Update(func(tx *bbolt.Tx) error {
		return mustBucket(tx, bucketEntries).Delete([]byte(id))
	})
}

func (s *Store) Get(id string) (store.Entry, bool, error) {
	var e store.Entry
	var ok bool
	err := s.meta.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketEntries))
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(id))
		if raw == nil {
			return nil
		}
		ok = true
		return decode(raw, &e)
	})
	if err != nil || !ok {
		return store.Entry{}, false, err
	}
	return e, true, nil
}

func (s *Store) Has(id string) (bool, error) {
	var ok bool
	err := s.meta.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketEntries))
		if b == nil {
			return nil
		}
		ok = b.Get([]byte(id)) != nil
		return nil
	})
	return ok, err
}

func (s *Store) Count() (int, error) {
	n := 0
	err := s.meta.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket([]byte(bucketEntries)); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}

// Clear drops every entry; used only by explicit clear-and-reindex.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	err := s.meta.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketEntries))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return err
	}

	batch := s.idx.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := s.idx.Batch(batch); err != nil {
		return err
	}
	return s.meta.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(bucketEntries)) == nil {
			return nil
		}
		if err := tx.DeleteBucket([]byte(bucketEntries)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketEntries))
		return err
	})
}

func (s *Store) ForEach(visit func(store.Entry) error) error {
	return s.meta.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketEntries))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var e store.Entry
			if err := decode(v, &e); err != nil {
				return err
			}
			return visit(e)
		})
	})
}

// SearchLexical ranks entries by match over filename, description, tags
// and path, optionally restricted to a file-type set.
func (s *Store) SearchLexical(q store.LexicalQuery) ([]store.LexicalHit, error) {
	if s == nil || s.idx == nil {
		return nil, fmt.Errorf("store is not open")
	}
	term := strings.TrimSpace(q.Term)
	if term == "" {
		return nil, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	parts := []bquery.Query{
		matchQuery("file_name", term),
		matchQuery("description", term),
		matchQuery("tags", term),
		prefixQuery("path", term),
	}
	var full bquery.Query = bleve.NewDisjunctionQuery(parts...)

	if len(q.FileTypes) > 0 {
		types := make([]bquery.Query, 0, len(q.FileTypes))
		for _, ft := range q.FileTypes {
			types = append(types, termQuery("file_type", ft))
		}
		full = bleve.NewConjunctionQuery(full, bleve.NewDisjunctionQuery(types...))
	}

	req := bleve.NewSearchRequestOptions(full, limit, q.Offset, false)
	res, err := s.idx.Search(req)
	if err != nil {
		return nil, err
	}

	out := make([]store.LexicalHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, store.LexicalHit{ID: hit.ID, Score: hit.Score})
	}
	return out, nil
}

func buildMapping() mapping.IndexMapping {
	idxMapping := bleve.NewIndexMapping()
	idxMapping.DefaultAnalyzer = "standard"

	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"
	keyword.Store = true
	keyword.Index = true
	keyword.DocValues = true

	text := bleve.NewTextFieldMapping()
	text.Analyzer = "standard"
	text.Store = true
	text.Index = true

	boolField := bleve.NewBooleanFieldMapping()
	boolField.Store = true
	boolField.Index = true

	doc.AddFieldMappingsAt("path", keyword)
	doc.AddFieldMappingsAt("file_type", keyword)
	doc.AddFieldMappingsAt("bundle_id", keyword)
	doc.AddFieldMappingsAt("file_name", text)
	doc.AddFieldMappingsAt("description", text)
	doc.AddFieldMappingsAt("tags", text)
	doc.AddFieldMappingsAt("archived", boolField)
	doc.AddFieldMappingsAt("virtual", boolField)

	idxMapping.DefaultMapping = doc
	return idxMapping
}

// nameSplitter breaks filename separators so "red_dragon.obj" is
// searchable as "red", "dragon" and "obj". The unicode tokenizer keeps a
// dot between letters inside one token, which would hide the stem.
var nameSplitter = strings.NewReplacer(".", " ", "_", " ", "-", " ")

func searchableName(name string) string {
	split := nameSplitter.Replace(name)
	if split == name {
		return name
	}
	return name + " " + split
}

func indexDoc(e store.Entry) map[string]any {
	return map[string]any{
		"path":        e.Path,
		"file_type":   e.FileType,
		"bundle_id":   e.BundleID,
		"file_name":   searchableName(e.FileName),
		"description": e.Description,
		"tags":        e.Tags,
		"archived":    e.Archived,
		"virtual":     e.Virtual,
	}
}

func termQuery(field string, value string) bquery.Query {
	q := bleve.NewTermQuery(value)
	q.SetField(field)
	return q
}

func matchQuery(field string, value string) bquery.Query {
	q := bleve.NewMatchQuery(value)
	q.SetField(field)
	return q
}

func prefixQuery(field string, value string) bquery.Query {
	q := bleve.NewPrefixQuery(value)
	q.SetField(field)
	return q
}

// Export writes the entry set as gzip-compressed JSON lines.
func (s *Store) Export(w io.Writer) error {
	return exportEntries(s, w)
}
