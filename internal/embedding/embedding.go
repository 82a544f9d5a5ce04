// Package embedding turns transaction descriptions into vectors for search.
package embedding

import (
	"context"
	"log/slog"
	"math"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Fallback tries primary first and uses secondary when it fails.
type Fallback struct {
	primary   Embedder
	secondary Embedder
	logger    *slog.Logger
}

func NewFallback(primary, secondary Embedder, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *Fallback) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := f.primary.Embed(ctx, text)
	if err == nil && len(vec) > 0 {
		return vec, nil
	}
	if err != nil {
		f.logger.WarnContext(ctx, "Embedding API failed, using hash embedder", slog.String("error", err.Error()))
	}
	return f.secondary.Embed(ctx, text)
}

// Cosine returns the cosine similarity of two vectors, 0 if either is empty
// or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
