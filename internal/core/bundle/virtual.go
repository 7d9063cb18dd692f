package bundle

import (
	"archive/zip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/simeonradivoev/electron-dam-sub000/internal/damerr"
	"github.com/simeonradivoev/electron-dam-sub000/internal/docstore"
	"github.com/simeonradivoev/electron-dam-sub000/internal/model"
)

const virtualCollection = "virtual_bundles"

// Fetcher downloads a virtual bundle's source archive to dest. The actual
// transport lives outside this core.
type Fetcher interface {
	Fetch(ctx context.Context, url string, dest string) error
}

// VirtualStore keeps not-yet-downloaded bundle records in the embedded
// document store, keyed by generated identifiers.
type VirtualStore struct {
	col *docstore.Collection
}

func NewVirtualStore(s *docstore.Store) *VirtualStore {
	return &VirtualStore{col: s.Collection(virtualCollection)}
}

type virtualRecord struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	SourceURL   string   `json:"sourceUrl,omitempty"`
	License     string   `json:"license,omitempty"`
}

// Insert stores a virtual bundle and returns its id (generated when empty).
func (v *VirtualStore) Insert(info model.BundleInfo) (string, error) {
	if strings.TrimSpace(info.Name) == "" {
		return "", damerr.Conflict("virtual bundle needs a name")
	}
	return v.col.Insert(info.ID, virtualRecord{
		Name:        info.Name,
		Description: info.Description,
		Tags:        info.Tags,
		SourceURL:   info.SourceURL,
		License:     info.License,
	})
}

func (v *VirtualStore) Get(id string) (model.BundleInfo, bool, error) {
	var rec virtualRecord
	ok, err := v.col.FindOne(id, &rec)
	if err != nil || !ok {
		return model.BundleInfo{}, ok, err
	}
	return rec.info(id), true, nil
}

func (v *VirtualStore) List() ([]model.BundleInfo, error) {
	var out []model.BundleInfo
	err := v.col.Find(func(id string, raw json.RawMessage) error {
		var rec virtualRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil // skip corrupt records, index the rest
		}
		out = append(out, rec.info(id))
		return nil
	})
	return out, err
}

func (v *VirtualStore) Remove(id string) error {
	return v.col.Remove(id)
}

// Subscribe forwards the collection's change events.
func (v *VirtualStore) Subscribe(fn func(docstore.Event)) func() {
	return v.col.Subscribe(fn)
}

func (rec virtualRecord) info(id string) model.BundleInfo {
	return model.BundleInfo{
		ID:          id,
		Name:        rec.Name,
		Description: rec.Description,
		Tags:        rec.Tags,
		SourceURL:   rec.SourceURL,
		License:     rec.License,
		IsVirtual:   true,
	}
}

// Convert materializes a virtual bundle on disk: download the source
// archive, extract it under destRel, write the bundle marker from the
// record, then delete the record. Converting a missing record is a hard
// error; everything else fails strictly so a half-converted bundle never
// survives as both virtual and on-disk.
func (v *VirtualStore) Convert(ctx context.Context, id string, fetch Fetcher, root string, destRel string) error {
	info, ok, err := v.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		return damerr.NotFound("virtual bundle %q does not exist", id)
	}
	if fetch == nil {
		return damerr.Conflict("no fetcher configured for virtual bundle conversion")
	}

	destAbs := filepath.Join(root, filepath.FromSlash(destRel))
	if _, err := os.Stat(destAbs); err == nil {
		return damerr.Conflict("destination %s already exists", destRel)
	}

	tmp, err := os.CreateTemp("", "dam-bundle-*.zip")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := fetch.Fetch(ctx, info.SourceURL, tmpPath); err != nil {
		return damerr.Wrap(err, "fetching bundle %q", info.Name)
	}
	if err := extractZip(ctx, tmpPath, destAbs); err != nil {
		_ = os.RemoveAll(destAbs)
		return damerr.Wrap(err, "extracting bundle %q", info.Name)
	}

	err = Create(root, destRel, model.SidecarMeta{
		Name:        info.Name,
		Description: info.Description,
		Tags:        info.Tags,
		SourceURL:   info.SourceURL,
		License:     info.License,
	})
	if err != nil {
		return err
	}
	return v.Remove(id)
}

func extractZip(ctx context.Context, zipPath string, destAbs string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(destAbs, 0o755); err != nil {
		return err
	}
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := filepath.Join(destAbs, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target, filepath.Clean(destAbs)+string(os.PathSeparator)) && target != filepath.Clean(destAbs) {
			continue // entry escapes the destination
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := copyZipEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func copyZipEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
