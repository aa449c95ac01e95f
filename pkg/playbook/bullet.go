// Package playbook defines the domain types shared across the curator:
// bullets, deltas, traces, and the reports returned by delta submission.
package playbook

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind classifies a bullet. Kinds scope deduplication and retrieval:
// by default only bullets of the same kind are compared for near-duplicates.
type Kind string

const (
	KindStrategy Kind = "strategy"
	KindRule     Kind = "rule"
	KindPitfall  Kind = "pitfall"
	KindTemplate Kind = "template"
	KindTool     Kind = "tool"
	KindConcept  Kind = "concept"
)

// Kinds lists all valid bullet kinds.
var Kinds = []Kind{KindStrategy, KindRule, KindPitfall, KindTemplate, KindTool, KindConcept}

// Valid reports whether k is a known bullet kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Bullet is a single persisted strategy note with utility counters and an
// embedding. IDs are ULIDs, so lexicographic order is creation order: the
// curator relies on this for deterministic tie-breaking ("lowest id wins"
// is "oldest bullet wins").
type Bullet struct {
	// ID is a ULID assigned on creation, immutable, unique across active
	// and inactive rows.
	ID string `json:"id"`

	Kind  Kind     `json:"kind"`
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags,omitempty"`

	// Embedding is the vector representation of Body. Recomputed whenever
	// Body changes. Every active bullet has one, at the configured dimension.
	Embedding []float32 `json:"embedding,omitempty"`

	// HelpfulCount and HarmfulCount are monotonically incremented by merge
	// operations. Only an explicit reset edit may zero them.
	HelpfulCount int `json:"helpful_count"`
	HarmfulCount int `json:"harmful_count"`

	CreatedAt time.Time `json:"created_at"`

	// LastTouchedAt updates on any counter increment or body patch.
	// Freshness scoring reads it.
	LastTouchedAt time.Time `json:"last_touched_at"`

	// Active is the soft-delete flag. Refinement deactivates bullets rather
	// than deleting them; Compact hard-deletes inactive rows past retention.
	Active bool `json:"active"`

	// Version counts body patches applied to this bullet.
	Version int `json:"version"`

	// DuplicateOf holds the representative's id when a refinement pass
	// folded this bullet into a near-duplicate cluster.
	DuplicateOf string `json:"duplicate_of,omitempty"`

	// SourceTraceIDs records the traces that produced or reinforced this
	// bullet.
	SourceTraceIDs []string `json:"source_trace_ids,omitempty"`
}

// NewBulletID returns a fresh ULID string for a bullet created now.
func NewBulletID() string {
	return ulid.Make().String()
}

// Utility is the helpful-vs-harmful ratio in [0, 1]. When both counters are
// zero it returns the neutral midpoint 0.5.
func (b *Bullet) Utility() float64 {
	const epsilon = 1e-9
	total := b.HelpfulCount + b.HarmfulCount
	if total == 0 {
		return 0.5
	}
	return float64(b.HelpfulCount) / (float64(total) + epsilon)
}

// Touched returns the timestamp freshness scoring should decay from:
// LastTouchedAt when set, CreatedAt otherwise.
func (b *Bullet) Touched() time.Time {
	if b.LastTouchedAt.IsZero() {
		return b.CreatedAt
	}
	return b.LastTouchedAt
}
