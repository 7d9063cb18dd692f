package bundle

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/simeonradivoev/electron-dam-sub000/internal/core/sidecar"
	"github.com/simeonradivoev/electron-dam-sub000/internal/damerr"
	"github.com/simeonradivoev/electron-dam-sub000/internal/model"
)

// markerPath decides where the marker for rel lives: inside rel when it is
// a directory, adjacent when it is a zip archive.
func markerPath(root string, rel string) (string, error) {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	st, err := os.Stat(abs)
	if err != nil {
		return "", damerr.NotFound("asset %s does not exist", rel)
	}
	if st.IsDir() {
		return filepath.Join(abs, sidecar.MarkerName), nil
	}
	if !IsArchivePath(rel) {
		return "", damerr.Conflict("only directories and zip archives can be bundles: %s", rel)
	}
	return filepath.Join(root, filepath.FromSlash(sidecar.ArchiveMarkerFor(rel))), nil
}

// Create turns an existing directory or zip archive into a bundle by
// writing its marker. Creating over an existing bundle is a conflict:
// partial success here would corrupt the on-disk bundle model, so mutation
// paths fail hard.
func Create(root string, rel string, meta model.SidecarMeta) error {
	rel = cleanRel(rel)
	marker, err := markerPath(root, rel)
	if err != nil {
		return err
	}
	if _, err := os.Stat(marker); err == nil {
		return damerr.Conflict("%s is already a bundle", rel)
	}
	if meta.Name == "" {
		meta.Name = path.Base(rel)
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(marker, append(b, '\n'), 0o644)
}

// Delete removes the bundle marker, leaving the assets in place.
func Delete(root string, rel string) error {
	rel = cleanRel(rel)
	marker, err := markerPath(root, rel)
	if err != nil {
		return err
	}
	if _, err := os.Stat(marker); err != nil {
		return damerr.NotFound("%s is not a bundle", rel)
	}
	return os.Remove(marker)
}

// Move renames a bundle (directory or archive plus its marker). An
// existing destination is a conflict.
func Move(root string, fromRel string, toRel string) error {
	fromRel = cleanRel(fromRel)
	toRel = cleanRel(toRel)

	fromAbs := filepath.Join(root, filepath.FromSlash(fromRel))
	toAbs := filepath.Join(root, filepath.FromSlash(toRel))

	if _, err := os.Stat(fromAbs); err != nil {
		return damerr.NotFound("bundle %s does not exist", fromRel)
	}
	if _, err := os.Stat(toAbs); err == nil {
		return damerr.Conflict("destination %s already exists", toRel)
	}

	if err := os.Rename(fromAbs, toAbs); err != nil {
		return err
	}
	if IsArchivePath(fromRel) {
		fromMarker := filepath.Join(root, filepath.FromSlash(sidecar.ArchiveMarkerFor(fromRel)))
		toMarker := filepath.Join(root, filepath.FromSlash(sidecar.ArchiveMarkerFor(toRel)))
		if _, err := os.Stat(fromMarker); err == nil {
			return os.Rename(fromMarker, toMarker)
		}
	}
	return nil
}

// Info loads an on-disk bundle's marker into the shared BundleInfo shape.
func Info(root string, rel string) (model.BundleInfo, error) {
	rel = cleanRel(rel)
	marker, err := markerPath(root, rel)
	if err != nil {
		return model.BundleInfo{}, err
	}
	b, err := os.ReadFile(marker)
	if err != nil {
		if os.IsNotExist(err) {
			return model.BundleInfo{}, damerr.NotFound("%s is not a bundle", rel)
		}
		return model.BundleInfo{}, err
	}
	var meta model.SidecarMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		return model.BundleInfo{}, damerr.Wrap(err, "corrupt bundle marker for %s", rel)
	}
	return infoFromMeta(rel, meta), nil
}

func infoFromMeta(rel string, meta model.SidecarMeta) model.BundleInfo {
	name := meta.Name
	if name == "" {
		name = path.Base(rel)
	}
	return model.BundleInfo{
		ID:          rel,
		Name:        name,
		Description: meta.Description,
		Tags:        meta.Tags,
		SourceURL:   meta.SourceURL,
		License:     meta.License,
		IsArchive:   IsArchivePath(rel),
	}
}

func cleanRel(rel string) string {
	rel = path.Clean(filepath.ToSlash(strings.Trim(rel, "/")))
	if rel == "." {
		return ""
	}
	return rel
}
