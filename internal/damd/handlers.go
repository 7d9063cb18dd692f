package damd

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/simeonradivoev/electron-dam-sub000/internal/core/embed"
	"github.com/simeonradivoev/electron-dam-sub000/internal/core/project"
	"github.com/simeonradivoev/electron-dam-sub000/internal/core/search"
	"github.com/simeonradivoev/electron-dam-sub000/internal/core/task"
	"github.com/simeonradivoev/electron-dam-sub000/internal/model"
)

// Handlers owns the open projects of one daemon instance. Each project is
// addressed by the opaque id handed out at open time.
type Handlers struct {
	embedder embed.Generator

	mu       sync.RWMutex
	projects map[string]*project.Project
}

func NewHandlers(embedder embed.Generator) *Handlers {
	return &Handlers{
		embedder: embedder,
		projects: map[string]*project.Project{},
	}
}

func (h *Handlers) ProjectOpen(p ProjectOpenParams) (string, error) {
	if h == nil {
		return "", fmt.Errorf("handlers is nil")
	}
	root := strings.TrimSpace(p.Root)
	if root == "" {
		return "", fmt.Errorf("root is required")
	}

	proj, err := project.Open(root, project.Options{
		Embedder: h.embedder,
		Watch:    p.Watch,
	})
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	h.mu.Lock()
	h.projects[id] = proj
	h.mu.Unlock()
	return id, nil
}

func (h *Handlers) ProjectClose(p ProjectParams) (bool, error) {
	h.mu.Lock()
	proj, ok := h.projects[strings.TrimSpace(p.ProjectID)]
	if ok {
		delete(h.projects, strings.TrimSpace(p.ProjectID))
	}
	h.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("project not found")
	}
	return true, proj.Close()
}

func (h *Handlers) IndexBuild(p ProjectParams) (IndexBuildResult, error) {
	proj, ok := h.get(p.ProjectID)
	if !ok {
		return IndexBuildResult{}, fmt.Errorf("project not found")
	}
	return IndexBuildResult{TaskID: proj.Reindex().ID()}, nil
}

func (h *Handlers) Search(p SearchParams) ([]SearchResultItem, error) {
	proj, ok := h.get(p.ProjectID)
	if !ok {
		return nil, fmt.Errorf("project not found")
	}
	results, err := proj.Search(context.Background(), search.Query{
		Term:      p.Q,
		FileTypes: p.FileTypes,
		Page:      p.Page,
	})
	if err != nil {
		return nil, err
	}
	out := make([]SearchResultItem, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResultItem{
			Path:        r.Entry.Path,
			FileName:    r.Entry.FileName,
			FileType:    r.Entry.FileType,
			BundleID:    r.Entry.BundleID,
			Description: r.Entry.Description,
			Tags:        r.Entry.Tags,
			Virtual:     r.Entry.Virtual,
			Score:       r.Score,
			Lexical:     r.Lexical,
			Semantic:    r.Semantic,
			TagScores:   r.TagScores,
		})
	}
	return out, nil
}

func (h *Handlers) AssetsList(p AssetsListParams) ([]model.AssetNode, error) {
	proj, ok := h.get(p.ProjectID)
	if !ok {
		return nil, fmt.Errorf("project not found")
	}
	return proj.List(context.Background(), p.Path)
}

func (h *Handlers) BundleCreate(p BundleCreateParams) (bool, error) {
	proj, ok := h.get(p.ProjectID)
	if !ok {
		return false, fmt.Errorf("project not found")
	}
	err := proj.CreateBundle(context.Background(), p.Path, model.SidecarMeta{
		Name:        p.Name,
		Description: p.Description,
		Tags:        p.Tags,
		SourceURL:   p.SourceURL,
		License:     p.License,
	})
	return err == nil, err
}

func (h *Handlers) BundleDelete(p BundlePathParams) (bool, error) {
	proj, ok := h.get(p.ProjectID)
	if !ok {
		return false, fmt.Errorf("project not found")
	}
	err := proj.DeleteBundle(context.Background(), p.Path)
	return err == nil, err
}

func (h *Handlers) BundleInfo(p BundlePathParams) (model.BundleInfo, error) {
	proj, ok := h.get(p.ProjectID)
	if !ok {
		return model.BundleInfo{}, fmt.Errorf("project not found")
	}
	return proj.BundleInfo(p.Path)
}

func (h *Handlers) MetaSet(p MetaSetParams) (bool, error) {
	proj, ok := h.get(p.ProjectID)
	if !ok {
		return false, fmt.Errorf("project not found")
	}
	err := proj.SetMeta(context.Background(), p.Path, func(m *model.SidecarMeta) bool {
		changed := false
		if p.Description != nil && m.Description != *p.Description {
			m.Description = *p.Description
			changed = true
		}
		if p.Tags != nil {
			m.Tags = p.Tags
			changed = true
		}
		return changed
	})
	return err == nil, err
}

func (h *Handlers) VirtualAdd(p VirtualAddParams) (string, error) {
	proj, ok := h.get(p.ProjectID)
	if !ok {
		return "", fmt.Errorf("project not found")
	}
	return proj.Virtual().Insert(p.Info)
}

func (h *Handlers) VirtualList(p ProjectParams) ([]model.BundleInfo, error) {
	proj, ok := h.get(p.ProjectID)
	if !ok {
		return nil, fmt.Errorf("project not found")
	}
	return proj.Virtual().List()
}

func (h *Handlers) VirtualRemove(p VirtualRemoveParams) (bool, error) {
	proj, ok := h.get(p.ProjectID)
	if !ok {
		return false, fmt.Errorf("project not found")
	}
	err := proj.Virtual().Remove(p.ID)
	return err == nil, err
}

func (h *Handlers) TaskList(p ProjectParams) ([]TaskSnapshot, error) {
	proj, ok := h.get(p.ProjectID)
	if !ok {
		return nil, fmt.Errorf("project not found")
	}
	active := proj.Scheduler().Active()
	out := make([]TaskSnapshot, 0, len(active))
	for _, s := range active {
		out = append(out, snapshot(s))
	}
	return out, nil
}

func (h *Handlers) TaskCancel(p TaskParams) (bool, error) {
	proj, ok := h.get(p.ProjectID)
	if !ok {
		return false, fmt.Errorf("project not found")
	}
	return proj.Scheduler().Cancel(p.TaskID), nil
}

// Close tears down every open project.
func (h *Handlers) Close() error {
	h.mu.Lock()
	projects := h.projects
	h.projects = map[string]*project.Project{}
	h.mu.Unlock()

	var first error
	for _, proj := range projects {
		if err := proj.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (h *Handlers) get(id string) (*project.Project, bool) {
	h.mu.RLock()
	proj, ok := h.projects[strings.TrimSpace(id)]
	h.mu.RUnlock()
	return proj, ok
}

func snapshot(s task.Snapshot) TaskSnapshot {
	return TaskSnapshot{
		ID:       s.ID,
		Label:    s.Label,
		Status:   s.Status.String(),
		Progress: s.Progress,
		Err:      s.Err,
	}
}
