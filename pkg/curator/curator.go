// Package curator implements the playbook curation engine: delta ingestion
// with semantic de-duplication, grow-and-refine pruning, and hybrid
// retrieval scoring. The curator owns one store and one similarity index;
// multiple curators over different stores coexist without interference.
package curator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/config"
	"github.com/papercomputeco/playbook/pkg/embeddings"
	"github.com/papercomputeco/playbook/pkg/index"
	"github.com/papercomputeco/playbook/pkg/playbook"
	"github.com/papercomputeco/playbook/pkg/store"
)

// Curator exposes the two core entry points, SubmitDelta and Retrieve, plus
// the maintenance surface (Export, Stats, Compact).
//
// Concurrency model: submissions are serialized against each other by
// submitMu for their whole duration, embedding included. The store lock mu
// is held only for the transactional write section and the index updates
// that follow commit, never across an embedding-provider call. Readers
// (Retrieve, Export, Stats) take mu.RLock and run concurrently with each
// other, observing either the pre- or post-merge state entirely.
type Curator struct {
	cfg      *config.Config
	store    store.Store
	index    index.Index
	embedder embeddings.Embedder
	logger   *zap.Logger

	policy refinementPolicy

	grace     time.Duration
	retention time.Duration
	halfLife  time.Duration

	submitMu sync.Mutex
	mu       sync.RWMutex

	now func() time.Time
}

// Option configures a Curator created with New.
type Option func(*Curator)

// WithClock overrides the curator's time source. Tests use this to pin
// timestamps and freshness decay.
func WithClock(now func() time.Time) Option {
	return func(c *Curator) {
		c.now = now
	}
}

// New validates the configuration (failing fast on out-of-range values),
// rebuilds the similarity index from the store's active bullets, and returns
// a ready curator.
func New(cfg *config.Config, st store.Store, idx index.Index, emb embeddings.Embedder, logger *zap.Logger, opts ...Option) (*Curator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	grace, err := cfg.GracePeriod()
	if err != nil {
		return nil, err
	}
	retention, err := cfg.Retention()
	if err != nil {
		return nil, err
	}
	halfLife, err := cfg.FreshnessHalfLife()
	if err != nil {
		return nil, err
	}

	c := &Curator{
		cfg:       cfg,
		store:     st,
		index:     idx,
		embedder:  emb,
		logger:    logger,
		grace:     grace,
		retention: retention,
		halfLife:  halfLife,
		now:       time.Now,
	}

	switch cfg.Curator.RefineMode {
	case "proactive":
		c.policy = &proactivePolicy{
			threshold: cfg.Curator.DedupThreshold,
			margin:    cfg.Curator.HarmfulMargin,
			grace:     grace,
			crossKind: cfg.Curator.CrossKindDedup,
		}
	case "lazy":
		c.policy = &lazyPolicy{
			window:   cfg.Curator.LazyWindow,
			grace:    grace,
			halfLife: halfLife,
		}
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.rebuildIndex(context.Background()); err != nil {
		return nil, fmt.Errorf("rebuilding index from store: %w", err)
	}

	return c, nil
}

// rebuildIndex loads all active bullets and replaces the index contents.
// The index is derived state; the store is the single source of truth.
func (c *Curator) rebuildIndex(ctx context.Context) error {
	bullets, err := c.store.ListActive(ctx)
	if err != nil {
		return err
	}

	entries := make([]index.Entry, 0, len(bullets))
	for _, b := range bullets {
		entries = append(entries, index.Entry{
			ID:        b.ID,
			Kind:      b.Kind,
			Embedding: b.Embedding,
		})
	}
	return c.index.Rebuild(ctx, entries)
}

// SubmitDelta merges one delta into the store and runs the configured
// refinement policy. The delta commits as a whole: per-item failures are
// collected in the report, while a provider or store failure aborts with no
// state change.
func (c *Curator) SubmitDelta(ctx context.Context, delta *playbook.Delta) (*playbook.SubmitReport, error) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	now := c.now().UTC()

	// Stage and embed outside the store lock. A provider timeout here
	// aborts before anything is written.
	staged, err := c.stage(ctx, delta, now)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				c.logger.Error("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	mergeReport, mergeOps, err := c.merge(ctx, tx, staged, now)
	if err != nil {
		return nil, err
	}

	report := &playbook.SubmitReport{Merge: *mergeReport}

	refineReport, refineOps, err := c.refine(ctx, tx, now)
	if err != nil {
		return nil, err
	}
	report.Refinement = refineReport

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	// The commit is final; index updates are derived state. A failure here
	// is logged and repaired with a full rebuild rather than surfaced as a
	// submission error.
	c.applyIndexOps(ctx, append(mergeOps, refineOps...))

	c.logger.Info("delta submitted",
		zap.Int("created", len(report.Merge.CreatedIDs)),
		zap.Int("reinforced", len(report.Merge.ReinforcedIDs)),
		zap.Int("edited", len(report.Merge.EditedIDs)),
		zap.Int("failures", len(report.Merge.Failures)),
	)

	return report, nil
}

// indexOp is one deferred index mutation, applied only after the store
// transaction commits.
type indexOp struct {
	remove bool
	id     string
	entry  index.Entry
}

func (c *Curator) applyIndexOps(ctx context.Context, ops []indexOp) {
	for _, op := range ops {
		var err error
		if op.remove {
			err = c.index.Remove(ctx, op.id)
		} else {
			err = c.index.Upsert(ctx, op.entry)
		}
		if err != nil {
			c.logger.Error("index update failed, rebuilding",
				zap.String("bullet_id", op.id),
				zap.Error(err),
			)
			if rebuildErr := c.rebuildIndex(ctx); rebuildErr != nil {
				c.logger.Error("index rebuild failed", zap.Error(rebuildErr))
			}
			return
		}
	}
}

// refine dispatches to the configured policy. The lazy policy only fires
// once the active count exceeds its window; proactive runs on every merge.
func (c *Curator) refine(ctx context.Context, tx store.Tx, now time.Time) (*playbook.RefinementReport, []indexOp, error) {
	return c.policy.refine(ctx, tx, now)
}

// Export returns a point-in-time dump of all active bullets, embeddings
// stripped. Read-only; no merge semantics.
func (c *Curator) Export(ctx context.Context) ([]playbook.Bullet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	bullets, err := c.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]playbook.Bullet, 0, len(bullets))
	for _, b := range bullets {
		dump := *b
		dump.Embedding = nil
		out = append(out, dump)
	}
	return out, nil
}

// Stats summarizes the store.
type Stats struct {
	TotalBullets  int                   `json:"total_bullets"`
	ActiveBullets int                   `json:"active_bullets"`
	ByKind        map[playbook.Kind]int `json:"by_kind"`
	HelpfulTotal  int                   `json:"helpful_total"`
	HarmfulTotal  int                   `json:"harmful_total"`
}

// Stats returns store totals and per-kind counts over active bullets.
func (c *Curator) Stats(ctx context.Context) (*Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all, err := c.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalBullets: len(all),
		ByKind:       make(map[playbook.Kind]int),
	}
	for _, b := range all {
		if !b.Active {
			continue
		}
		stats.ActiveBullets++
		stats.ByKind[b.Kind]++
		stats.HelpfulTotal += b.HelpfulCount
		stats.HarmfulTotal += b.HarmfulCount
	}
	return stats, nil
}

// Compact hard-deletes inactive bullets whose last touch is older than the
// configured retention window. Deactivated bullets were already removed from
// the index, so only the store changes.
func (c *Curator) Compact(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().UTC().Add(-c.retention)
	return c.store.Compact(ctx, cutoff)
}

// Close releases the store, index, and embedder.
func (c *Curator) Close() error {
	var firstErr error
	for _, closer := range []func() error{c.index.Close, c.store.Close, c.embedder.Close} {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
