// Package store defines the interface for persisting bullets and traces.
// The store is the single source of truth; the similarity index is derived
// state rebuilt or incrementally maintained from it.
package store

import (
	"context"
	"time"

	"github.com/papercomputeco/playbook/pkg/playbook"
)

// Store is the durable bullet store. Reads may run at any time; all writes
// go through a Tx so a delta commits as a whole or not at all.
type Store interface {
	// Begin opens a write transaction.
	Begin(ctx context.Context) (Tx, error)

	// Get retrieves a bullet by id, active or not.
	Get(ctx context.Context, id string) (*playbook.Bullet, error)

	// ListActive returns all active bullets ordered by id ascending.
	ListActive(ctx context.Context) ([]*playbook.Bullet, error)

	// ListAll returns every bullet, active and inactive, ordered by id.
	ListAll(ctx context.Context) ([]*playbook.Bullet, error)

	// CountActive returns the number of active bullets.
	CountActive(ctx context.Context) (int, error)

	// ListTraces returns up to limit traces, newest first.
	ListTraces(ctx context.Context, limit int) ([]playbook.Trace, error)

	// Compact hard-deletes inactive bullets whose last touch precedes the
	// cutoff. Returns the ids removed.
	Compact(ctx context.Context, olderThan time.Time) ([]string, error)

	// Close releases the underlying resources.
	Close() error
}

// Tx is one atomic write section. Every mutation the merge engine and
// refinement policies make goes through here; Commit publishes all of them,
// Rollback discards all of them.
type Tx interface {
	// Insert stores a new bullet row.
	Insert(ctx context.Context, bullet *playbook.Bullet) error

	// Get retrieves a bullet inside the transaction.
	Get(ctx context.Context, id string) (*playbook.Bullet, error)

	// ListActive returns all active bullets ordered by id ascending,
	// observing in-transaction writes.
	ListActive(ctx context.Context) ([]*playbook.Bullet, error)

	// CountActive returns the active-bullet count inside the transaction.
	CountActive(ctx context.Context) (int, error)

	// Reinforce increments the helpful counter, touches the timestamp, and
	// unions the given tags and source trace ids into the bullet.
	Reinforce(ctx context.Context, id string, tags, traceIDs []string, now time.Time) error

	// IncrementCounter bumps the helpful or harmful counter by one and
	// touches the timestamp.
	IncrementCounter(ctx context.Context, id string, op playbook.EditOp, now time.Time) error

	// ResetCounters zeroes both counters. The only sanctioned decrement.
	ResetCounters(ctx context.Context, id string, now time.Time) error

	// PatchBody replaces the bullet's body and embedding, bumps the
	// version, and touches the timestamp.
	PatchBody(ctx context.Context, id, body string, embedding []float32, now time.Time) error

	// Deactivate soft-deletes a bullet.
	Deactivate(ctx context.Context, id string, now time.Time) error

	// Fold deactivates a bullet and records the representative it was
	// collapsed into.
	Fold(ctx context.Context, id, representativeID string, now time.Time) error

	// RecordTrace stores a task execution trace.
	RecordTrace(ctx context.Context, trace playbook.Trace) error

	Commit() error
	Rollback() error
}
