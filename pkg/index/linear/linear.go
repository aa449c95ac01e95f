// Package linear provides an in-memory exact-scan implementation of
// index.Index. It is the baseline backend: a full scan per query, suitable
// for the active-set sizes a bounded playbook converges to, and rebuilt from
// the store on open.
package linear

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/papercomputeco/playbook/pkg/index"
	"github.com/papercomputeco/playbook/pkg/playbook"
)

// Config holds configuration for the linear index.
type Config struct {
	// Dimensions is the required embedding length. Must be non-zero.
	Dimensions uint
}

// Index implements index.Index with a mutex-guarded map and a linear scan.
type Index struct {
	dimensions uint

	mu      sync.RWMutex
	entries map[string]index.Entry
	closed  bool
}

// New creates an empty linear index.
func New(c Config) (*Index, error) {
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("linear index dimensions cannot be 0, must be configured")
	}
	return &Index{
		dimensions: c.Dimensions,
		entries:    make(map[string]index.Entry),
	}, nil
}

// Nearest scans all entries, scoring by cosine similarity. Results are
// ordered by similarity descending, ties by lowest id.
func (x *Index) Nearest(_ context.Context, embedding []float32, kind playbook.Kind, limit int) ([]index.Match, error) {
	if uint(len(embedding)) != x.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", index.ErrDimension, len(embedding), x.dimensions)
	}
	if limit <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return nil, index.ErrClosed
	}

	matches := make([]index.Match, 0, len(x.entries))
	for _, entry := range x.entries {
		if kind != "" && entry.Kind != kind {
			continue
		}
		matches = append(matches, index.Match{
			ID:         entry.ID,
			Kind:       entry.Kind,
			Similarity: index.Cosine(embedding, entry.Embedding),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Upsert inserts or replaces an entry.
func (x *Index) Upsert(_ context.Context, entry index.Entry) error {
	if uint(len(entry.Embedding)) != x.dimensions {
		return fmt.Errorf("%w: entry %s has %d, want %d", index.ErrDimension, entry.ID, len(entry.Embedding), x.dimensions)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return index.ErrClosed
	}

	// Copy the embedding so callers can't mutate indexed state.
	stored := entry
	stored.Embedding = make([]float32, len(entry.Embedding))
	copy(stored.Embedding, entry.Embedding)
	x.entries[entry.ID] = stored
	return nil
}

// Remove drops an entry by id.
func (x *Index) Remove(_ context.Context, id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return index.ErrClosed
	}
	delete(x.entries, id)
	return nil
}

// Rebuild replaces the index contents with the given entries.
func (x *Index) Rebuild(_ context.Context, entries []index.Entry) error {
	fresh := make(map[string]index.Entry, len(entries))
	for _, entry := range entries {
		if uint(len(entry.Embedding)) != x.dimensions {
			return fmt.Errorf("%w: entry %s has %d, want %d", index.ErrDimension, entry.ID, len(entry.Embedding), x.dimensions)
		}
		stored := entry
		stored.Embedding = make([]float32, len(entry.Embedding))
		copy(stored.Embedding, entry.Embedding)
		fresh[entry.ID] = stored
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return index.ErrClosed
	}
	x.entries = fresh
	return nil
}

// Close marks the index closed.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	x.entries = nil
	return nil
}

// Ensure Index implements index.Index.
var _ index.Index = (*Index)(nil)
