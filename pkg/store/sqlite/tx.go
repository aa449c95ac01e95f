package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/papercomputeco/playbook/pkg/playbook"
	"github.com/papercomputeco/playbook/pkg/store"
)

// sqliteTx implements store.Tx over a single *sql.Tx.
type sqliteTx struct {
	tx         *sql.Tx
	dimensions uint
}

func (t *sqliteTx) checkDimensions(embedding []float32) error {
	if uint(len(embedding)) != t.dimensions {
		return fmt.Errorf("%w: got %d, want %d", playbook.ErrDimensionMismatch, len(embedding), t.dimensions)
	}
	return nil
}

// Insert stores a new bullet row.
func (t *sqliteTx) Insert(ctx context.Context, b *playbook.Bullet) error {
	if err := t.checkDimensions(b.Embedding); err != nil {
		return err
	}

	tagsJSON, err := json.Marshal(b.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	tracesJSON, err := json.Marshal(b.SourceTraceIDs)
	if err != nil {
		return fmt.Errorf("encoding source trace ids: %w", err)
	}

	var duplicateOf any
	if b.DuplicateOf != "" {
		duplicateOf = b.DuplicateOf
	}

	active := 0
	if b.Active {
		active = 1
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO bullets (`+bulletColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID, string(b.Kind), b.Title, b.Body, string(tagsJSON),
		serializeFloat32(b.Embedding), b.HelpfulCount, b.HarmfulCount,
		formatTime(b.CreatedAt), formatTime(b.LastTouchedAt),
		active, b.Version, duplicateOf, string(tracesJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting bullet %s: %w", b.ID, err)
	}
	return nil
}

// Get retrieves a bullet inside the transaction.
func (t *sqliteTx) Get(ctx context.Context, id string) (*playbook.Bullet, error) {
	return getBullet(ctx, t.tx, id)
}

// ListActive returns active bullets observing in-transaction writes.
func (t *sqliteTx) ListActive(ctx context.Context) ([]*playbook.Bullet, error) {
	return listBullets(ctx, t.tx, true)
}

// CountActive returns the active-bullet count inside the transaction.
func (t *sqliteTx) CountActive(ctx context.Context) (int, error) {
	return countActive(ctx, t.tx)
}

// exists reports whether a bullet row exists, mapping absence to ErrNotFound.
func (t *sqliteTx) exists(ctx context.Context, id string) error {
	var one int
	err := t.tx.QueryRowContext(ctx, `SELECT 1 FROM bullets WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return store.ErrNotFound{ID: id}
	}
	if err != nil {
		return fmt.Errorf("%w: %v", playbook.ErrStoreUnavailable, err)
	}
	return nil
}

// Reinforce increments helpful_count and unions tags and trace ids.
// The existing body stays authoritative; reinforcement never rewrites text.
func (t *sqliteTx) Reinforce(ctx context.Context, id string, tags, traceIDs []string, now time.Time) error {
	b, err := t.Get(ctx, id)
	if err != nil {
		return err
	}

	merged := unionSorted(b.Tags, tags)
	mergedTraces := unionSorted(b.SourceTraceIDs, traceIDs)

	tagsJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	tracesJSON, err := json.Marshal(mergedTraces)
	if err != nil {
		return fmt.Errorf("encoding source trace ids: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		UPDATE bullets
		SET helpful_count = helpful_count + 1,
			last_touched_at = ?,
			tags = ?,
			source_trace_ids = ?
		WHERE id = ?
	`, formatTime(now), string(tagsJSON), string(tracesJSON), id)
	if err != nil {
		return fmt.Errorf("reinforcing bullet %s: %w", id, err)
	}
	return nil
}

// IncrementCounter bumps one counter and touches the timestamp.
func (t *sqliteTx) IncrementCounter(ctx context.Context, id string, op playbook.EditOp, now time.Time) error {
	if err := t.exists(ctx, id); err != nil {
		return err
	}

	var column string
	switch op {
	case playbook.OpIncHelpful:
		column = "helpful_count"
	case playbook.OpIncHarmful:
		column = "harmful_count"
	default:
		return fmt.Errorf("op %q is not a counter increment", op)
	}

	_, err := t.tx.ExecContext(ctx,
		`UPDATE bullets SET `+column+` = `+column+` + 1, last_touched_at = ? WHERE id = ?`,
		formatTime(now), id)
	if err != nil {
		return fmt.Errorf("incrementing %s for bullet %s: %w", column, id, err)
	}
	return nil
}

// ResetCounters zeroes both counters.
func (t *sqliteTx) ResetCounters(ctx context.Context, id string, now time.Time) error {
	if err := t.exists(ctx, id); err != nil {
		return err
	}

	_, err := t.tx.ExecContext(ctx,
		`UPDATE bullets SET helpful_count = 0, harmful_count = 0, last_touched_at = ? WHERE id = ?`,
		formatTime(now), id)
	if err != nil {
		return fmt.Errorf("resetting counters for bullet %s: %w", id, err)
	}
	return nil
}

// PatchBody replaces body and embedding and bumps the version.
func (t *sqliteTx) PatchBody(ctx context.Context, id, body string, embedding []float32, now time.Time) error {
	if err := t.checkDimensions(embedding); err != nil {
		return err
	}
	if err := t.exists(ctx, id); err != nil {
		return err
	}

	_, err := t.tx.ExecContext(ctx, `
		UPDATE bullets
		SET body = ?, embedding = ?, version = version + 1, last_touched_at = ?
		WHERE id = ?
	`, body, serializeFloat32(embedding), formatTime(now), id)
	if err != nil {
		return fmt.Errorf("patching bullet %s: %w", id, err)
	}
	return nil
}

// Deactivate soft-deletes a bullet.
func (t *sqliteTx) Deactivate(ctx context.Context, id string, now time.Time) error {
	if err := t.exists(ctx, id); err != nil {
		return err
	}

	_, err := t.tx.ExecContext(ctx,
		`UPDATE bullets SET active = 0, last_touched_at = ? WHERE id = ?`,
		formatTime(now), id)
	if err != nil {
		return fmt.Errorf("deactivating bullet %s: %w", id, err)
	}
	return nil
}

// Fold deactivates a bullet and records its cluster representative.
func (t *sqliteTx) Fold(ctx context.Context, id, representativeID string, now time.Time) error {
	if err := t.exists(ctx, id); err != nil {
		return err
	}

	_, err := t.tx.ExecContext(ctx,
		`UPDATE bullets SET active = 0, duplicate_of = ?, last_touched_at = ? WHERE id = ?`,
		representativeID, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("folding bullet %s into %s: %w", id, representativeID, err)
	}
	return nil
}

// RecordTrace stores a task execution trace.
func (t *sqliteTx) RecordTrace(ctx context.Context, trace playbook.Trace) error {
	selectedJSON, err := json.Marshal(trace.SelectedBulletIDs)
	if err != nil {
		return fmt.Errorf("encoding selected ids: %w", err)
	}
	usedJSON, err := json.Marshal(trace.UsedBulletIDs)
	if err != nil {
		return fmt.Errorf("encoding used ids: %w", err)
	}
	misledJSON, err := json.Marshal(trace.MisleadingBulletIDs)
	if err != nil {
		return fmt.Errorf("encoding misleading ids: %w", err)
	}

	success := 0
	if trace.Success {
		success = 1
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO traces
			(id, query, selected_bullet_ids, used_bullet_ids, misleading_bullet_ids, success, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, trace.ID, trace.Query, string(selectedJSON), string(usedJSON), string(misledJSON),
		success, formatTime(trace.CreatedAt))
	if err != nil {
		return fmt.Errorf("recording trace %s: %w", trace.ID, err)
	}
	return nil
}

func (t *sqliteTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing: %v", playbook.ErrStoreUnavailable, err)
	}
	return nil
}

func (t *sqliteTx) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("rolling back: %w", err)
	}
	return nil
}

// unionSorted merges two string sets into a sorted slice. Sorted output keeps
// row contents deterministic across merge runs.
func unionSorted(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		seen[s] = true
	}
	merged := make([]string, 0, len(seen))
	for s := range seen {
		merged = append(merged, s)
	}
	sort.Strings(merged)
	return merged
}

// Ensure sqliteTx implements store.Tx.
var _ store.Tx = (*sqliteTx)(nil)
