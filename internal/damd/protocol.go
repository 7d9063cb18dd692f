package damd

import (
	"encoding/json"

	"github.com/simeonradivoev/electron-dam-sub000/internal/model"
)

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type ProjectOpenParams struct {
	Root  string `json:"root"`
	Watch bool   `json:"watch,omitempty"`
}

type ProjectParams struct {
	ProjectID string `json:"project_id"`
}

type IndexBuildResult struct {
	TaskID string `json:"task_id"`
}

type SearchParams struct {
	ProjectID string   `json:"project_id"`
	Q         string   `json:"q"`
	FileTypes []string `json:"file_types,omitempty"`
	Page      int      `json:"page,omitempty"`
}

type SearchResultItem struct {
	Path        string             `json:"path"`
	FileName    string             `json:"file_name"`
	FileType    string             `json:"file_type"`
	BundleID    string             `json:"bundle_id,omitempty"`
	Description string             `json:"description,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	Virtual     bool               `json:"virtual,omitempty"`
	Score       float64            `json:"score"`
	Lexical     float64            `json:"lexical,omitempty"`
	Semantic    float64            `json:"semantic,omitempty"`
	TagScores   map[string]float64 `json:"tag_scores,omitempty"`
}

type AssetsListParams struct {
	ProjectID string `json:"project_id"`
	Path      string `json:"path,omitempty"`
}

type BundleCreateParams struct {
	ProjectID   string   `json:"project_id"`
	Path        string   `json:"path"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	SourceURL   string   `json:"source_url,omitempty"`
	License     string   `json:"license,omitempty"`
}

type BundlePathParams struct {
	ProjectID string `json:"project_id"`
	Path      string `json:"path"`
}

type MetaSetParams struct {
	ProjectID   string   `json:"project_id"`
	Path        string   `json:"path"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type VirtualAddParams struct {
	ProjectID string           `json:"project_id"`
	Info      model.BundleInfo `json:"info"`
}

type VirtualRemoveParams struct {
	ProjectID string `json:"project_id"`
	ID        string `json:"id"`
}

type TaskParams struct {
	ProjectID string `json:"project_id"`
	TaskID    string `json:"task_id"`
}

type TaskSnapshot struct {
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Err      string  `json:"error,omitempty"`
}
