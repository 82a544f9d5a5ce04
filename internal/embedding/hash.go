package embedding

import (
	"context"
	"math"
	"strings"

	"github.com/spaolacci/murmur3"
)

const DefaultDimensions = 384

// HashEmbedder is a deterministic feature-hashing embedder. Each word and
// adjacent word pair lands in a murmur3 bucket with a hash-derived sign.
type HashEmbedder struct {
	dims int
	seed uint32
}

func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashEmbedder{dims: dims, seed: 0x9747b28c}
}

func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	words := strings.Fields(strings.ToLower(text))

	for i, w := range words {
		h.add(vec, w, 1)
		if i > 0 {
			h.add(vec, words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

func (h *HashEmbedder) add(vec []float32, token string, weight float32) {
	sum := murmur3.Sum32WithSeed([]byte(token), h.seed)
	idx := int(sum % uint32(h.dims))
	if sum&0x80000000 != 0 {
		weight = -weight
	}
	vec[idx] += weight
}
