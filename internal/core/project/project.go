package project

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/simeonradivoev/electron-dam-sub000/internal/config"
	"github.com/simeonradivoev/electron-dam-sub000/internal/core/bundle"
	"github.com/simeonradivoev/electron-dam-sub000/internal/core/cache"
	"github.com/simeonradivoev/electron-dam-sub000/internal/core/embed"
	"github.com/simeonradivoev/electron-dam-sub000/internal/core/indexer"
	"github.com/simeonradivoev/electron-dam-sub000/internal/core/search"
	"github.com/simeonradivoev/electron-dam-sub000/internal/core/sidecar"
	"github.com/simeonradivoev/electron-dam-sub000/internal/core/task"
	"github.com/simeonradivoev/electron-dam-sub000/internal/core/taskqueue"
	"github.com/simeonradivoev/electron-dam-sub000/internal/core/walk"
	"github.com/simeonradivoev/electron-dam-sub000/internal/core/watch"
	"github.com/simeonradivoev/electron-dam-sub000/internal/docstore"
	"github.com/simeonradivoev/electron-dam-sub000/internal/index/backend"
	"github.com/simeonradivoev/electron-dam-sub000/internal/index/store"
	"github.com/simeonradivoev/electron-dam-sub000/internal/model"
)

const (
	configName    = "config.json"
	docstoreName  = "dam.db"
	thumbsDirName = "thumbs"

	// LabelReindex and LabelThumbnails identify the singleton maintenance
	// tasks; submitting a new one cancels its predecessor.
	LabelReindex    = "reindex"
	LabelThumbnails = "thumbnails"
)

type Options struct {
	// Embedder enables the semantic leg of search and embedding upkeep
	// during indexing. Nil keeps the project lexical-only.
	Embedder embed.Generator
	// Watch mirrors filesystem activity into the index while the project
	// is open.
	Watch        bool
	WatchOptions watch.Options
	// Config overrides the on-disk config when set.
	Config *config.Config
}

// Project is one open asset root: its stores, index, scheduler and caches,
// wired together and torn down as a unit.
type Project struct {
	root     string
	cacheDir string
	cfg      *config.Config

	docs     *docstore.Store
	index    store.Store
	walker   *walk.Walker
	sidecars *sidecar.Store
	virtual  *bundle.VirtualStore
	indexer  *indexer.Indexer
	searcher *search.Searcher
	sched    *task.Scheduler
	thumbs   *cache.Thumbs
	watcher  *watch.Watcher

	unsubscribe func()
	closeOnce   sync.Once
	closeErr    error
}

func Open(root string, opts Options) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	cacheDir := filepath.Join(abs, walk.CacheDirName)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, err
	}

	cfg := opts.Config
	if cfg == nil {
		if cfg, err = config.Load(filepath.Join(cacheDir, configName)); err != nil {
			return nil, err
		}
	}

	params := backend.Params{EmbeddingModel: cfg.EmbeddingModel}
	if opts.Embedder != nil {
		params.EmbeddingModel = opts.Embedder.Model()
	}
	idx, _, err := backend.Open(cacheDir, params)
	if err != nil {
		return nil, err
	}

	docs, err := docstore.Open(filepath.Join(cacheDir, docstoreName))
	if err != nil {
		_ = idx.Close()
		return nil, err
	}

	walker, err := walk.New(abs)
	if err != nil {
		_ = docs.Close()
		_ = idx.Close()
		return nil, err
	}

	p := &Project{
		root:     abs,
		cacheDir: cacheDir,
		cfg:      cfg,
		docs:     docs,
		index:    idx,
		walker:   walker,
		sidecars: sidecar.NewStore(abs),
		virtual:  bundle.NewVirtualStore(docs),
		sched:    task.NewScheduler(taskqueue.New(cfg.QueueConcurrency, cfg.QueueBacklog)),
		thumbs:   cache.NewThumbs(filepath.Join(cacheDir, thumbsDirName), cfg.ThumbnailBudgetBytes),
	}
	p.indexer = indexer.New(walker, indexer.Options{
		Store:    idx,
		Sidecar:  p.sidecars,
		Embedder: opts.Embedder,
		Virtual:  p.virtual,
	})
	p.searcher = search.New(search.Options{
		Store:           idx,
		Embedder:        opts.Embedder,
		PageSize:        cfg.PageSize,
		SimilarityFloor: cfg.SimilarityFloor,
	})
	p.unsubscribe = p.virtual.Subscribe(p.onVirtualEvent)

	if opts.Watch {
		w, err := watch.NewWatcherWithOptions(abs, p.indexer, opts.WatchOptions)
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		p.watcher = w
		go func() { _ = w.Run(context.Background()) }()
	}

	return p, nil
}

func (p *Project) Root() string { return p.root }

func (p *Project) Config() *config.Config { return p.cfg }

func (p *Project) Walker() *walk.Walker { return p.walker }

func (p *Project) Index() store.Store { return p.index }

func (p *Project) Scheduler() *task.Scheduler { return p.sched }

func (p *Project) Thumbs() *cache.Thumbs { return p.thumbs }

func (p *Project) Virtual() *bundle.VirtualStore { return p.virtual }

func (p *Project) Sidecars() *sidecar.Store { return p.sidecars }

// Reindex schedules a full rebuild, cancelling any rebuild already in
// flight so two never interleave over the same index.
func (p *Project) Reindex() *task.Task {
	p.sched.CancelWhere(func(s task.Snapshot) bool { return s.Label == LabelReindex })
	return p.sched.Submit(LabelReindex, p.indexer.Reindex, task.Options{})
}

// RebuildThumbnails re-seeds the thumbnail cache from disk; a newer
// rebuild supersedes an older one.
func (p *Project) RebuildThumbnails() *task.Task {
	p.sched.CancelWhere(func(s task.Snapshot) bool { return s.Label == LabelThumbnails })
	return p.sched.Submit(LabelThumbnails, p.thumbs.Rebuild, task.Options{Silent: true})
}

func (p *Project) Search(ctx context.Context, q search.Query) ([]search.Result, error) {
	return p.searcher.Search(ctx, q)
}

// List enumerates one level of the namespace, for browsing.
func (p *Project) List(ctx context.Context, rel string) ([]model.AssetNode, error) {
	return p.walker.List(ctx, rel, walk.Options{IncludeBundles: true})
}

// CreateBundle marks rel as a bundle and indexes the result.
func (p *Project) CreateBundle(ctx context.Context, rel string, meta model.SidecarMeta) error {
	if err := bundle.Create(p.root, rel, meta); err != nil {
		return err
	}
	return p.indexer.HandleAdd(ctx, markerFor(rel))
}

// DeleteBundle removes the marker; the contents stay and are re-indexed
// without their bundle id.
func (p *Project) DeleteBundle(ctx context.Context, rel string) error {
	if err := bundle.Delete(p.root, rel); err != nil {
		return err
	}
	return p.indexer.HandleRemove(ctx, markerFor(rel))
}

// ConvertVirtual materializes a virtual bundle on disk and indexes the
// result. The virtual record's index entry disappears through the
// docstore subscription when Convert removes it.
func (p *Project) ConvertVirtual(ctx context.Context, id string, fetch bundle.Fetcher, destRel string) error {
	if err := p.virtual.Convert(ctx, id, fetch, p.root, destRel); err != nil {
		return err
	}
	return p.indexer.HandleAdd(ctx, destRel)
}

// MoveBundle relocates a bundle and its marker, then swaps the index
// entries over.
func (p *Project) MoveBundle(ctx context.Context, fromRel string, toRel string) error {
	if err := bundle.Move(p.root, fromRel, toRel); err != nil {
		return err
	}
	if err := p.indexer.HandleRemove(ctx, fromRel); err != nil {
		return err
	}
	return p.indexer.HandleAdd(ctx, toRel)
}

// SetMeta edits an asset's sidecar and re-indexes it.
func (p *Project) SetMeta(ctx context.Context, rel string, fn func(*model.SidecarMeta) bool) error {
	if err := p.sidecars.Mutate(rel, fn); err != nil {
		return err
	}
	return p.indexer.HandleChange(ctx, rel)
}

func (p *Project) BundleInfo(rel string) (model.BundleInfo, error) {
	return bundle.Info(p.root, rel)
}

func (p *Project) Close() error {
	p.closeOnce.Do(func() {
		if p.unsubscribe != nil {
			p.unsubscribe()
		}
		if p.watcher != nil {
			_ = p.watcher.Close()
		}
		if p.docs != nil {
			p.closeErr = p.docs.Close()
		}
		if p.index != nil {
			if err := p.index.Close(); err != nil && p.closeErr == nil {
				p.closeErr = err
			}
		}
	})
	return p.closeErr
}

// onVirtualEvent mirrors virtual-bundle records straight into the index;
// they have no filesystem presence for the watcher to see.
func (p *Project) onVirtualEvent(ev docstore.Event) {
	if ev.Op == docstore.OpRemove {
		_ = p.indexer.HandleVirtualRemove(ev.ID)
		return
	}
	var info model.BundleInfo
	if err := json.Unmarshal(ev.Raw, &info); err != nil {
		return
	}
	info.ID = ev.ID
	info.IsVirtual = true
	_ = p.indexer.HandleVirtualUpsert(info)
}

func markerFor(rel string) string {
	if bundle.IsArchivePath(rel) {
		return sidecar.ArchiveMarkerFor(rel)
	}
	return path.Join(rel, sidecar.MarkerName)
}
