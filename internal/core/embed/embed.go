package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/simeonradivoev/electron-dam-sub000/internal/model"
)

// Generator produces a vector for a piece of description text. The model
// inference itself lives outside this core; only the text-in/vector-out
// contract and the versioned model identifier are known here.
type Generator interface {
	Generate(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// ContentHash fingerprints the text an embedding was generated from.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Stale reports whether a stored embedding must be regenerated for the
// current description and model: it is absent while a description exists,
// its content hash no longer matches, or it was produced by a different
// model. A cleared description never makes an embedding stale; the
// embedding is deleted instead, see ShouldDelete.
func Stale(e *model.Embedding, description string, modelID string) bool {
	if description == "" {
		return false
	}
	if e == nil {
		return true
	}
	if e.ContentHash != ContentHash(description) {
		return true
	}
	return e.Model != modelID
}

// ShouldDelete reports whether a stored embedding has lost its source text.
func ShouldDelete(e *model.Embedding, description string) bool {
	return e != nil && description == ""
}
