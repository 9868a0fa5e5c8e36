// Package embedding generates vector embeddings for reflection matching.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/replanhq/replan/internal/config"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns embeddings for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the dimensionality of produced vectors.
	Dimensions() int
	// Name identifies the backend and model.
	Name() string
}

// FromConfig constructs the embedder described by cfg.
func FromConfig(cfg config.EmbedderConfig) (Embedder, error) {
	switch cfg.Provider {
	case "", "ollama":
		return NewOllamaEmbedder(cfg.Endpoint, cfg.Model), nil
	case "genai":
		return NewGenAIEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q (use \"ollama\" or \"genai\")", cfg.Provider)
	}
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Zero-magnitude vectors yield 0 without error.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimensions differ: %d != %d", len(a), len(b))
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}

// Normalize01 clamps a cosine similarity into [0, 1]. Negatively correlated
// vectors carry no more signal than orthogonal ones for ranking purposes.
func Normalize01(cos float64) float64 {
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}

// Similarity01 computes cosine similarity clamped into [0, 1].
func Similarity01(a, b []float32) (float64, error) {
	cos, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return Normalize01(cos), nil
}
