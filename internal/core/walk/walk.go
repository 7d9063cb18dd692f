package walk

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/simeonradivoev/electron-dam-sub000/internal/core/bundle"
	"github.com/simeonradivoev/electron-dam-sub000/internal/core/sidecar"
	"github.com/simeonradivoev/electron-dam-sub000/internal/model"
)

type Options struct {
	// Recursive descends into subdirectories and archives; otherwise only
	// immediate children are produced and directories report NonEmpty.
	Recursive bool
	// Parallel fans out over a directory's children concurrently. The
	// fan-out is per directory and unbounded; sibling order is not
	// guaranteed. Sequential mode visits depth-first left-to-right, which
	// callers needing monotonic progress rely on.
	Parallel bool
	// IncludeBundles additionally yields bundle-root directories and
	// archives themselves as nodes, not just their contents.
	IncludeBundles bool
}

type VisitFunc func(node model.AssetNode) error

// Walker enumerates the unified asset namespace under one project root:
// plain directories, entries inside zip archives, all behind path-like
// identifiers. Sidecar metadata, markers, dotfiles and the cache directory
// never appear as assets.
type Walker struct {
	root string
	ig   *ignoreMatcher
}

func New(root string) (*Walker, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	ig, err := loadIgnoreMatcher(abs)
	if err != nil {
		return nil, err
	}
	return &Walker{root: filepath.Clean(abs), ig: ig}, nil
}

func (w *Walker) Root() string { return w.root }

// Walk produces a node for every descendant of startRel, per opts. A
// missing start yields no nodes rather than an error; per-child failures
// are skipped so one corrupt asset cannot block the rest.
func (w *Walker) Walk(ctx context.Context, startRel string, opts Options, visit VisitFunc) error {
	startRel = cleanRel(startRel)
	abs := w.abs(startRel)
	st, err := os.Stat(abs)
	if err != nil {
		return nil
	}

	// One upward resolution at entry; descendants inherit from here.
	inherited, err := bundle.Resolve(w.root, startRel)
	if err != nil {
		return err
	}

	if opts.Parallel {
		var mu sync.Mutex
		inner := visit
		visit = func(n model.AssetNode) error {
			mu.Lock()
			defer mu.Unlock()
			return inner(n)
		}
	}

	if !st.IsDir() {
		return w.visitFile(ctx, startRel, inherited, opts, visit, nil)
	}
	return w.walkDir(ctx, startRel, inherited, opts, visit)
}

// List collects the walk into a slice.
func (w *Walker) List(ctx context.Context, startRel string, opts Options) ([]model.AssetNode, error) {
	var out []model.AssetNode
	err := w.Walk(ctx, startRel, opts, func(n model.AssetNode) error {
		out = append(out, n)
		return nil
	})
	return out, err
}

// Count walks sequentially and returns the total node count. Full reindex
// runs this as its first phase so progress can be reported as a fraction.
func (w *Walker) Count(ctx context.Context, startRel string, opts Options) (int, error) {
	opts.Parallel = false
	n := 0
	err := w.Walk(ctx, startRel, opts, func(model.AssetNode) error {
		n++
		return nil
	})
	return n, err
}

func (w *Walker) walkDir(ctx context.Context, rel string, bundlePath string, opts Options, visit VisitFunc) error {
	entries, err := os.ReadDir(w.abs(rel))
	if err != nil {
		return nil // unreadable directory: partial results over total failure
	}

	names := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		names[e.Name()] = struct{}{}
	}

	// The marker check happens once per directory; the resulting bundle
	// path is threaded to every descendant without re-checking. A marker
	// at the project root makes the root itself the bundle, under its
	// dedicated id since "" already means "no bundle".
	if _, ok := names[sidecar.MarkerName]; ok {
		bundlePath = rel
		if rel == "" {
			bundlePath = bundle.RootBundlePath
		}
		if opts.IncludeBundles {
			if node, ok := w.dirNode(rel, bundlePath, true); ok {
				if rel == "" {
					node.Path = bundle.RootBundlePath
					node.Name = filepath.Base(w.root)
				}
				if err := visit(node); err != nil {
					return err
				}
			}
		}
	}

	var g *errgroup.Group
	gctx := ctx
	if opts.Parallel {
		g, gctx = errgroup.WithContext(ctx)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		e := e
		name := e.Name()
		if skipName(name, e.IsDir()) {
			continue
		}
		childRel := joinRel(rel, name)
		if w.ig.isIgnored(childRel, e.IsDir()) {
			continue
		}

		process := func() error {
			if e.IsDir() {
				if !opts.Recursive {
					// One-level listings still need to show which child
					// directories are bundles.
					childBundle := bundlePath
					isBundle := false
					if _, err := os.Stat(w.abs(joinRel(childRel, sidecar.MarkerName))); err == nil {
						childBundle = childRel
						isBundle = true
					}
					if node, ok := w.dirNode(childRel, childBundle, isBundle); ok {
						return visit(node)
					}
					return nil
				}
				return w.walkDir(gctx, childRel, bundlePath, opts, visit)
			}
			return w.visitFile(gctx, childRel, bundlePath, opts, visit, names)
		}

		if g != nil {
			g.Go(process)
		} else if err := process(); err != nil {
			return err
		}
	}

	if g != nil {
		return g.Wait()
	}
	return nil
}

// visitFile yields a plain file or archive node and, in recursive mode,
// the archive's entries. siblings is the parent's entry-name set, used for
// the adjacent-marker check; nil means look at the filesystem directly.
func (w *Walker) visitFile(ctx context.Context, rel string, bundlePath string, opts Options, visit VisitFunc, siblings map[string]struct{}) error {
	info, err := os.Stat(w.abs(rel))
	if err != nil {
		return nil // raced away or unreadable: skip
	}

	isZip := bundle.IsArchivePath(rel)
	zipIsBundle := false
	if isZip {
		markerName := path.Base(sidecar.ArchiveMarkerFor(rel))
		if siblings != nil {
			_, zipIsBundle = siblings[markerName]
		} else if _, err := os.Stat(w.abs(sidecar.ArchiveMarkerFor(rel))); err == nil {
			zipIsBundle = true
		}
	}

	node := model.AssetNode{
		Path:       rel,
		Name:       path.Base(rel),
		Kind:       model.KindFile,
		IsArchive:  isZip,
		BundlePath: bundlePath,
		FileType:   Classify(rel),
		Size:       info.Size(),
		Inode:      sysInode(info),
		ModTime:    info.ModTime().Unix(),
	}

	entryBundle := bundlePath
	if zipIsBundle {
		entryBundle = rel
		node.BundlePath = rel
		node.FileType = model.TypeBundle
		if opts.IncludeBundles {
			if err := visit(node); err != nil {
				return err
			}
		}
	} else if err := visit(node); err != nil {
		return err
	}

	if isZip {
		if opts.Recursive {
			return w.walkZip(ctx, rel, entryBundle, info, visit)
		}
		// A walk that starts at the archive itself browses one level into
		// it; archives met as directory children stay collapsed. siblings
		// is nil exactly for the start path.
		if siblings == nil {
			return w.listZip(ctx, rel, entryBundle, info, visit)
		}
	}
	return nil
}

func (w *Walker) dirNode(rel string, bundlePath string, isBundleRoot bool) (model.AssetNode, bool) {
	info, err := os.Stat(w.abs(rel))
	if err != nil {
		return model.AssetNode{}, false
	}
	ft := model.FileType("")
	if isBundleRoot {
		ft = model.TypeBundle
	}
	return model.AssetNode{
		Path:       rel,
		Name:       path.Base(rel),
		Kind:       model.KindDir,
		BundlePath: bundlePath,
		FileType:   ft,
		Size:       info.Size(),
		Inode:      sysInode(info),
		ModTime:    info.ModTime().Unix(),
		NonEmpty:   w.hasVisibleChildren(rel),
	}, true
}

func (w *Walker) hasVisibleChildren(rel string) bool {
	entries, err := os.ReadDir(w.abs(rel))
	if err != nil {
		return false
	}
	for _, e := range entries {
		if skipName(e.Name(), e.IsDir()) {
			continue
		}
		if w.ig.isIgnored(joinRel(rel, e.Name()), e.IsDir()) {
			continue
		}
		return true
	}
	return false
}

func (w *Walker) abs(rel string) string {
	if rel == "" {
		return w.root
	}
	return filepath.Join(w.root, filepath.FromSlash(rel))
}

func cleanRel(rel string) string {
	rel = path.Clean(filepath.ToSlash(strings.Trim(rel, "/")))
	if rel == "." {
		return ""
	}
	return rel
}

func joinRel(rel string, name string) string {
	if rel == "" {
		return name
	}
	return rel + "/" + name
}
