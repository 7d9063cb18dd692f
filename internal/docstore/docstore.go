package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/simeonradivoev/electron-dam-sub000/internal/damerr"
)

type Op int

const (
	OpInsert Op = iota
	OpUpdate
	OpRemove
)

// Event describes one change to a collection. Raw is the stored JSON
// document; it is nil for removals.
type Event struct {
	Op  Op
	ID  string
	Raw json.RawMessage
}

// Store is an embedded collection-of-JSON-records database, opened per
// project and closed on project switch.
type Store struct {
	db *bbolt.DB

	mu   sync.Mutex
	subs map[string]map[int]func(Event)
	next int
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("docstore path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, subs: map[string]map[int]func(Event){}}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type Collection struct {
	store *Store
	name  string
}

func (s *Store) Collection(name string) *Collection {
	return &Collection{store: s, name: name}
}

// Insert stores doc under id; an empty id gets a generated one. The used
// id is returned. Inserting over an existing id is a conflict.
func (c *Collection) Insert(id string, doc any) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	err = c.store.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(c.name))
		if err != nil {
			return err
		}
		if b.Get([]byte(id)) != nil {
			return damerr.Conflict("record %q already exists in %s", id, c.name)
		}
		return b.Put([]byte(id), raw)
	})
	if err != nil {
		return "", err
	}
	c.store.publish(c.name, Event{Op: OpInsert, ID: id, Raw: raw})
	return id, nil
}

// Update replaces the record; missing ids are a NotFound error.
func (c *Collection) Update(id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	err = c.store.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(c.name))
		if b == nil || b.Get([]byte(id)) == nil {
			return damerr.NotFound("record %q not found in %s", id, c.name)
		}
		return b.Put([]byte(id), raw)
	})
	if err != nil {
		return err
	}
	c.store.publish(c.name, Event{Op: OpUpdate, ID: id, Raw: raw})
	return nil
}

// FindOne unmarshals the record into out and reports whether it exists.
func (c *Collection) FindOne(id string, out any) (bool, error) {
	var raw []byte
	err := c.store.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(c.name))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(id)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Find visits every record; the callback may return an error to stop.
func (c *Collection) Find(visit func(id string, raw json.RawMessage) error) error {
	return c.store.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(c.name))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			return visit(string(k), append(json.RawMessage(nil), v...))
		})
	})
}

// Remove deletes the record; removing a missing id is a NotFound error.
func (c *Collection) Remove(id string) error {
	err := c.store.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(c.name))
		if b == nil || b.Get([]byte(id)) == nil {
			return damerr.NotFound("record %q not found in %s", id, c.name)
		}
		return b.Delete([]byte(id))
	})
	if err != nil {
		return err
	}
	c.store.publish(c.name, Event{Op: OpRemove, ID: id})
	return nil
}

func (c *Collection) Count() (int, error) {
	n := 0
	err := c.store.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(c.name))
		if b == nil {
			return nil
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

// Subscribe registers a change callback for the collection and returns an
// unsubscribe func. Callbacks run synchronously after the write commits.
func (c *Collection) Subscribe(fn func(Event)) func() {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[c.name] == nil {
		s.subs[c.name] = map[int]func(Event){}
	}
	id := s.next
	s.next++
	s.subs[c.name][id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs[c.name], id)
		s.mu.Unlock()
	}
}

func (s *Store) publish(collection string, ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.subs[collection]))
	for _, fn := range s.subs[collection] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
