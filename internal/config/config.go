package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Config holds the tunables of the indexing core. Zero values are filled
// in from DefaultConfig on load.
type Config struct {
	// EmbeddingModel is the versioned identifier of the model used to
	// generate description embeddings. Stored embeddings carrying a
	// different identifier are considered stale.
	EmbeddingModel string `json:"embedding_model"`

	// ThumbnailBudgetBytes caps the total size of generated previews kept
	// under the project cache directory.
	ThumbnailBudgetBytes int64 `json:"thumbnail_budget_bytes"`

	// PageSize is the number of search results per page.
	PageSize int `json:"page_size"`

	// SimilarityFloor is the minimum cosine similarity for the vector
	// component of a hybrid query to contribute to ranking.
	SimilarityFloor float64 `json:"similarity_floor"`

	// QueueConcurrency limits simultaneously running scheduled tasks.
	QueueConcurrency int `json:"queue_concurrency"`

	// QueueBacklog is the hard cap on queued-but-not-running tasks;
	// submissions past it are rejected.
	QueueBacklog int `json:"queue_backlog"`
}

func DefaultConfig() *Config {
	return &Config{
		EmbeddingModel:       "all-MiniLM-L6-v2",
		ThumbnailBudgetBytes: 256 << 20,
		PageSize:             50,
		SimilarityFloor:      0.8,
		QueueConcurrency:     4,
		QueueBacklog:         500,
	}
}

// Load reads the config file at path, filling defaults for missing fields.
// A missing file yields the defaults without error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = def.EmbeddingModel
	}
	if c.ThumbnailBudgetBytes <= 0 {
		c.ThumbnailBudgetBytes = def.ThumbnailBudgetBytes
	}
	if c.PageSize <= 0 {
		c.PageSize = def.PageSize
	}
	if c.SimilarityFloor <= 0 {
		c.SimilarityFloor = def.SimilarityFloor
	}
	if c.QueueConcurrency <= 0 {
		c.QueueConcurrency = def.QueueConcurrency
	}
	if c.QueueBacklog <= 0 {
		c.QueueBacklog = def.QueueBacklog
	}
}
