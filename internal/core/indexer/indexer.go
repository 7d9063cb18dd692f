package indexer

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/simeonradivoev/electron-dam-sub000/internal/core/bundle"
	"github.com/simeonradivoev/electron-dam-sub000/internal/core/embed"
	"github.com/simeonradivoev/electron-dam-sub000/internal/core/sidecar"
	"github.com/simeonradivoev/electron-dam-sub000/internal/core/walk"
	"github.com/simeonradivoev/electron-dam-sub000/internal/index/store"
	"github.com/simeonradivoev/electron-dam-sub000/internal/model"
)

// Options carries the collaborators an Indexer maintains the index with.
// Embedder and Virtual are optional; without an embedder the index stays
// lexical-only, without a virtual store only on-disk assets are indexed.
type Options struct {
	Store    store.Store
	Sidecar  *sidecar.Store
	Embedder embed.Generator
	Virtual  *bundle.VirtualStore
}

// Indexer keeps the search index in step with the asset namespace. Every
// operation upserts by asset path, so replaying events or rerunning an
// interrupted full reindex converges on the same state.
type Indexer struct {
	walker  *walk.Walker
	store   store.Store
	side    *sidecar.Store
	embed   embed.Generator
	virtual *bundle.VirtualStore
}

func New(w *walk.Walker, opts Options) *Indexer {
	return &Indexer{
		walker:  w,
		store:   opts.Store,
		side:    opts.Sidecar,
		embed:   opts.Embedder,
		virtual: opts.Virtual,
	}
}

var walkAll = walk.Options{Recursive: true, IncludeBundles: true}

// Reindex rebuilds the whole index: a counting pass first so that the work
// pass can report a fraction, then one entry per asset node plus the
// virtual bundles. Cancellation is honored between items; a canceled run
// leaves a partial index that the next run repairs.
func (ix *Indexer) Reindex(ctx context.Context, report func(float64)) error {
	if report == nil {
		report = func(float64) {}
	}

	total, err := ix.walker.Count(ctx, "", walkAll)
	if err != nil {
		return err
	}
	var virtuals []model.BundleInfo
	if ix.virtual != nil {
		if virtuals, err = ix.virtual.List(); err != nil {
			return err
		}
	}
	total += len(virtuals)

	if err := ix.store.Clear(); err != nil {
		return err
	}

	done := 0
	step := func() {
		done++
		if total > 0 {
			report(float64(done) / float64(total))
		}
	}

	err = ix.walker.Walk(ctx, "", walkAll, func(n model.AssetNode) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ix.indexNode(ctx, n); err != nil {
			return err
		}
		step()
		return nil
	})
	if err != nil {
		return err
	}

	for _, info := range virtuals {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ix.store.Upsert(virtualEntry(info)); err != nil {
			return err
		}
		step()
	}

	report(1)
	return nil
}

// HandleAdd indexes a newly appeared path. Additions and changes share the
// same upsert path.
func (ix *Indexer) HandleAdd(ctx context.Context, rel string) error {
	return ix.HandleChange(ctx, rel)
}

// HandleChange re-indexes the asset a changed path governs. Sidecar and
// marker writes map back to their owning asset; marker writes re-index the
// whole subtree because descendants inherit the bundle from it.
func (ix *Indexer) HandleChange(ctx context.Context, rel string) error {
	rel = cleanRel(rel)
	if sidecar.IsSidecarName(path.Base(rel)) {
		return ix.indexSubtree(ctx, sidecar.AssetFor(rel))
	}
	return ix.indexSubtree(ctx, rel)
}

// HandleRemove drops the entries for a removed path. A removed sidecar or
// marker re-indexes the owning asset if it still exists; if the asset went
// with it, its own remove event does the cleanup.
func (ix *Indexer) HandleRemove(ctx context.Context, rel string) error {
	rel = cleanRel(rel)
	if sidecar.IsSidecarName(path.Base(rel)) {
		owner := sidecar.AssetFor(rel)
		if !ix.exists(owner) {
			return nil
		}
		// A directory that lost its marker stops being an asset of its
		// own; the walk below yields only its contents. The project root
		// is indexed under its dedicated bundle id.
		if path.Base(rel) == sidecar.MarkerName {
			id := owner
			if id == "" {
				id = bundle.RootBundlePath
			}
			if err := ix.store.Delete(id); err != nil {
				return err
			}
		}
		return ix.indexSubtree(ctx, owner)
	}
	return ix.removeSubtree(rel)
}

// HandleVirtualUpsert mirrors a virtual bundle record into the index.
func (ix *Indexer) HandleVirtualUpsert(info model.BundleInfo) error {
	return ix.store.Upsert(virtualEntry(info))
}

func (ix *Indexer) HandleVirtualRemove(id string) error {
	return ix.store.Delete(id)
}

func (ix *Indexer) indexSubtree(ctx context.Context, rel string) error {
	return ix.walker.Walk(ctx, rel, walkAll, func(n model.AssetNode) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ix.indexNode(ctx, n)
	})
}

func (ix *Indexer) indexNode(ctx context.Context, n model.AssetNode) error {
	e := store.Entry{
		ID:       n.Path,
		FileName: n.Name,
		Path:     n.Path,
		FileType: string(n.FileType),
		BundleID: n.BundlePath,
		Archived: n.Kind == model.KindZipEntry,
	}
	if n.Kind != model.KindZipEntry {
		// Corrupt or unreadable sidecars degrade the entry to bare file
		// facts instead of blocking the rest of the run.
		if meta, _, err := ix.side.Load(n.Path); err == nil {
			if err := ix.refreshEmbedding(ctx, n.Path, &meta); err != nil {
				if ctx.Err() != nil {
					return err
				}
				// generation failure: entry stays lexical-only
			}
			e.Description = meta.Description
			e.Tags = meta.Tags
			if meta.Embedding != nil {
				e.Vector = meta.Embedding.Vector
			}
		}
	}
	return ix.store.Upsert(e)
}

// refreshEmbedding regenerates or deletes the persisted embedding when the
// description or model no longer matches it, updating meta in place.
func (ix *Indexer) refreshEmbedding(ctx context.Context, rel string, meta *model.SidecarMeta) error {
	if ix.embed == nil {
		return nil
	}
	if embed.ShouldDelete(meta.Embedding, meta.Description) {
		meta.Embedding = nil
		return ix.side.Mutate(rel, func(m *model.SidecarMeta) bool {
			if m.Embedding == nil {
				return false
			}
			m.Embedding = nil
			return true
		})
	}
	if !embed.Stale(meta.Embedding, meta.Description, ix.embed.Model()) {
		return nil
	}
	vec, err := ix.embed.Generate(ctx, meta.Description)
	if err != nil {
		return err
	}
	fresh := &model.Embedding{
		Model:       ix.embed.Model(),
		ContentHash: embed.ContentHash(meta.Description),
		Vector:      vec,
	}
	meta.Embedding = fresh
	return ix.side.Mutate(rel, func(m *model.SidecarMeta) bool {
		m.Embedding = fresh
		return true
	})
}

func (ix *Indexer) removeSubtree(rel string) error {
	prefix := rel + "/"
	var ids []string
	err := ix.store.ForEach(func(e store.Entry) error {
		if e.Virtual {
			return nil
		}
		if e.ID == rel || strings.HasPrefix(e.ID, prefix) {
			ids = append(ids, e.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := ix.store.Delete(id); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Indexer) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(ix.walker.Root(), filepath.FromSlash(rel)))
	return err == nil
}

func virtualEntry(info model.BundleInfo) store.Entry {
	return store.Entry{
		ID:          info.ID,
		FileName:    info.Name,
		Description: info.Description,
		Path:        info.ID,
		FileType:    string(model.TypeBundle),
		Tags:        info.Tags,
		Virtual:     true,
	}
}

func cleanRel(rel string) string {
	rel = path.Clean(filepath.ToSlash(rel))
	if rel == "." || rel == "/" {
		return ""
	}
	return strings.Trim(rel, "/")
}
