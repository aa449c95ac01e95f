// Package hashembed provides a deterministic, offline Embedder: a seeded
// pseudo-random unit vector derived from a hash of the text. It has no
// semantic signal but is reproducible across processes, which makes it
// suitable for tests and for running the curator without a provider.
package hashembed

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/papercomputeco/playbook/pkg/embeddings"
)

// Embedder implements embeddings.Embedder with hash-derived vectors.
type Embedder struct {
	dimensions uint
}

// New creates a hash embedder producing vectors of the given dimension.
func New(dimensions uint) *Embedder {
	if dimensions == 0 {
		dimensions = 128
	}
	return &Embedder{dimensions: dimensions}
}

// Embed returns a unit vector seeded from an FNV hash of the text.
// Identical texts always produce identical vectors.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], h.Sum64())

	rng := rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(seed[:]))))
	vec := make([]float32, e.dimensions)
	var norm float64
	for i := range vec {
		vec[i] = float32(rng.Float64()*2 - 1)
		norm += float64(vec[i]) * float64(vec[i])
	}

	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

// Close is a no-op.
func (e *Embedder) Close() error {
	return nil
}

// Ensure Embedder implements embeddings.Embedder
var _ embeddings.Embedder = (*Embedder)(nil)
