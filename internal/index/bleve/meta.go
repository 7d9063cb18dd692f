package bleve

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"io"

	"go.etcd.io/bbolt"

	"github.com/simeonradivoev/electron-dam-sub000/internal/index/store"
)

const bucketEntries = "entries"

func (s *Store) ensureBuckets() error {
	return s.meta.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketEntries))
		return err
	})
}

func mustBucket(tx *bbolt.Tx, name string) *bbolt.Bucket {
	b := tx.Bucket([]byte(name))
	if b == nil {
		b, _ = tx.CreateBucketIfNotExists([]byte(name))
	}
	return b
}

var errDecode = errors.New("decode failed")

func decode(data []byte, target any) error {
	if len(data) == 0 {
		return errDecode
	}
	return json.Unmarshal(data, target)
}

func encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// exportEntries streams every entry as one JSON object per line through a
// gzip writer.
func exportEntries(s *Store, w io.Writer) error {
	gz := gzip.NewWriter(w)
	bw := bufio.NewWriter(gz)

	err := s.ForEach(func(e store.Entry) error {
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := bw.Write(append(b, '\n')); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return gz.Close()
}

// ImportEntries reads a gzip JSONL snapshot and upserts every record.
func ImportEntries(s *Store, r io.Reader) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e store.Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		if err := s.Upsert(e); err != nil {
			return err
		}
	}
	return scanner.Err()
}
