package curator

import (
	"context"
	"fmt"
	"sort"

	"github.com/papercomputeco/playbook/pkg/index"
	"github.com/papercomputeco/playbook/pkg/playbook"
)

// Retrieve embeds the query and returns the top-k active bullets by hybrid
// score. A zero or negative k falls back to the configured default. An empty
// kind searches all kinds.
//
// The score blends cosine similarity, counter-derived utility, and freshness
// decay. Weights are normalized to sum to 1, so only their ratios matter.
// Equal scores resolve to the lower bullet id, making results stable across
// runs.
func (c *Curator) Retrieve(ctx context.Context, query string, kind playbook.Kind, k int) ([]playbook.ScoredBullet, error) {
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("unknown bullet kind %q", kind)
	}
	if k <= 0 {
		k = c.cfg.Retrieval.TopK
	}

	queryEmbedding, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if uint(len(queryEmbedding)) != c.cfg.Embedding.Dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d",
			playbook.ErrDimensionMismatch, len(queryEmbedding), c.cfg.Embedding.Dimensions)
	}

	wSim, wUtil, wFresh := normalizeWeights(
		c.cfg.Retrieval.WSim, c.cfg.Retrieval.WUtil, c.cfg.Retrieval.WFresh)

	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now().UTC()

	bullets, err := c.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	scored := make([]playbook.ScoredBullet, 0, len(bullets))
	for _, b := range bullets {
		if kind != "" && b.Kind != kind {
			continue
		}
		score := wSim*index.Cosine(queryEmbedding, b.Embedding) +
			wUtil*b.Utility() +
			wFresh*freshness(b.Touched(), now, c.halfLife)
		scored = append(scored, playbook.ScoredBullet{Bullet: *b, Score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// normalizeWeights scales the three scoring weights to sum to 1. Validation
// guarantees they are non-negative and not all zero.
func normalizeWeights(wSim, wUtil, wFresh float64) (float64, float64, float64) {
	total := wSim + wUtil + wFresh
	return wSim / total, wUtil / total, wFresh / total
}
