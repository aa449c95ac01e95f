// Package index provides the similarity index over active bullets: nearest
// neighbours by cosine similarity, with a deterministic ordering contract.
package index

import (
	"context"
	"math"

	"github.com/papercomputeco/playbook/pkg/playbook"
)

// Entry is one indexed bullet.
type Entry struct {
	// ID is the bullet id.
	ID string

	// Kind scopes nearest-neighbour queries. Dedup only compares bullets
	// of the same kind unless cross-kind comparison is enabled.
	Kind playbook.Kind

	// Embedding is the bullet's current body embedding.
	Embedding []float32
}

// Match is one nearest-neighbour result.
type Match struct {
	ID         string
	Kind       playbook.Kind
	Similarity float64
}

// Index answers nearest-neighbour queries over the active bullets.
//
// The contract holds for every backend: results ordered by similarity
// descending, ties broken by lowest id, and only active bullets appear.
// Deactivated bullets must be removed from the index even before compaction
// physically deletes them. Internal structure (exact scan or otherwise) is
// an implementation freedom.
type Index interface {
	// Nearest returns up to limit matches for the embedding, scoped to the
	// given kind. An empty kind searches across all kinds.
	Nearest(ctx context.Context, embedding []float32, kind playbook.Kind, limit int) ([]Match, error)

	// Upsert inserts or replaces an entry.
	Upsert(ctx context.Context, entry Entry) error

	// Remove drops an entry by bullet id. Removing an absent id is a no-op.
	Remove(ctx context.Context, id string) error

	// Rebuild replaces the whole index with the given entries.
	Rebuild(ctx context.Context, entries []Entry) error

	// Close releases resources held by the index.
	Close() error
}

// Cosine returns the cosine similarity of two vectors. Zero-norm vectors
// yield 0. Lengths must match; callers validate dimensions before indexing.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
