package curator

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/papercomputeco/playbook/pkg/index"
	"github.com/papercomputeco/playbook/pkg/playbook"
	"github.com/papercomputeco/playbook/pkg/store"
)

// refinementPolicy prunes the active set inside the merge transaction.
// Implementations must be deterministic: same store state, same decisions.
type refinementPolicy interface {
	refine(ctx context.Context, tx store.Tx, now time.Time) (*playbook.RefinementReport, []indexOp, error)
}

// proactivePolicy runs after every merge. It deactivates bullets whose
// harmful count has pulled ahead of their helpful count by more than the
// margin, then collapses clusters of near-duplicate survivors into a single
// representative.
type proactivePolicy struct {
	threshold float64
	margin    int
	grace     time.Duration
	crossKind bool
}

func (p *proactivePolicy) refine(ctx context.Context, tx store.Tx, now time.Time) (*playbook.RefinementReport, []indexOp, error) {
	report := &playbook.RefinementReport{TriggeredBy: "proactive"}
	var ops []indexOp

	bullets, err := tx.ListActive(ctx)
	if err != nil {
		return nil, nil, err
	}

	survivors := make([]*playbook.Bullet, 0, len(bullets))
	for _, b := range bullets {
		if now.Sub(b.CreatedAt) < p.grace {
			survivors = append(survivors, b)
			continue
		}
		if b.HarmfulCount-b.HelpfulCount > p.margin {
			if err := tx.Deactivate(ctx, b.ID, now); err != nil {
				return nil, nil, err
			}
			report.DeactivatedIDs = append(report.DeactivatedIDs, b.ID)
			ops = append(ops, indexOp{remove: true, id: b.ID})
			continue
		}
		survivors = append(survivors, b)
	}

	folded, foldOps, err := p.collapseClusters(ctx, tx, survivors, now)
	if err != nil {
		return nil, nil, err
	}
	report.Folded = folded
	ops = append(ops, foldOps...)

	return report, ops, nil
}

// collapseClusters groups survivors whose pairwise similarity meets the
// dedup threshold and folds each group into its representative. Bullets
// still inside the grace period are never folded away, though they can
// serve as representatives.
func (p *proactivePolicy) collapseClusters(ctx context.Context, tx store.Tx, bullets []*playbook.Bullet, now time.Time) ([]playbook.FoldedBullet, []indexOp, error) {
	n := len(bullets)
	if n < 2 {
		return nil, nil, nil
	}

	// Union-find over the survivor slice, which ListActive returns in id
	// order, so cluster contents are stable across runs.
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if !p.crossKind && bullets[i].Kind != bullets[j].Kind {
				continue
			}
			if index.Cosine(bullets[i].Embedding, bullets[j].Embedding) >= p.threshold {
				ri, rj := find(i), find(j)
				if ri != rj {
					parent[rj] = ri
				}
			}
		}
	}

	clusters := make(map[int][]*playbook.Bullet)
	for i, b := range bullets {
		root := find(i)
		clusters[root] = append(clusters[root], b)
	}

	roots := make([]int, 0, len(clusters))
	for root, members := range clusters {
		if len(members) > 1 {
			roots = append(roots, root)
		}
	}
	sort.Ints(roots)

	var folded []playbook.FoldedBullet
	var ops []indexOp
	for _, root := range roots {
		members := clusters[root]
		rep := clusterRepresentative(members)
		for _, b := range members {
			if b.ID == rep.ID {
				continue
			}
			if now.Sub(b.CreatedAt) < p.grace {
				continue
			}
			if err := tx.Fold(ctx, b.ID, rep.ID, now); err != nil {
				return nil, nil, err
			}
			folded = append(folded, playbook.FoldedBullet{
				BulletID:         b.ID,
				RepresentativeID: rep.ID,
			})
			ops = append(ops, indexOp{remove: true, id: b.ID})
		}
	}
	return folded, ops, nil
}

// clusterRepresentative picks the member that keeps the cluster's accumulated
// evidence: highest helpful count, then most recently touched, then lowest id.
func clusterRepresentative(members []*playbook.Bullet) *playbook.Bullet {
	rep := members[0]
	for _, b := range members[1:] {
		switch {
		case b.HelpfulCount != rep.HelpfulCount:
			if b.HelpfulCount > rep.HelpfulCount {
				rep = b
			}
		case !b.Touched().Equal(rep.Touched()):
			if b.Touched().After(rep.Touched()) {
				rep = b
			}
		case b.ID < rep.ID:
			rep = b
		}
	}
	return rep
}

// lazyPolicy defers pruning until the active set outgrows its window, then
// deactivates the lowest-value bullets to bring the count back down.
type lazyPolicy struct {
	window   int
	grace    time.Duration
	halfLife time.Duration
}

func (p *lazyPolicy) refine(ctx context.Context, tx store.Tx, now time.Time) (*playbook.RefinementReport, []indexOp, error) {
	count, err := tx.CountActive(ctx)
	if err != nil {
		return nil, nil, err
	}
	if count <= p.window {
		return nil, nil, nil
	}

	bullets, err := tx.ListActive(ctx)
	if err != nil {
		return nil, nil, err
	}

	type scored struct {
		b     *playbook.Bullet
		score float64
	}
	candidates := make([]scored, 0, len(bullets))
	for _, b := range bullets {
		if now.Sub(b.CreatedAt) < p.grace {
			continue
		}
		candidates = append(candidates, scored{
			b:     b,
			score: retentionScore(b, now, p.halfLife),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score < candidates[j].score
		}
		return candidates[i].b.ID < candidates[j].b.ID
	})

	report := &playbook.RefinementReport{TriggeredBy: "lazy"}
	var ops []indexOp
	excess := count - p.window
	for _, cand := range candidates {
		if excess == 0 {
			break
		}
		if err := tx.Deactivate(ctx, cand.b.ID, now); err != nil {
			return nil, nil, err
		}
		report.DeactivatedIDs = append(report.DeactivatedIDs, cand.b.ID)
		ops = append(ops, indexOp{remove: true, id: cand.b.ID})
		excess--
	}

	return report, ops, nil
}

// retentionScore values accumulated evidence logarithmically so a single
// counter bump cannot dominate, and adds freshness so stale bullets lose out
// to recently exercised ones.
func retentionScore(b *playbook.Bullet, now time.Time, halfLife time.Duration) float64 {
	return math.Log1p(float64(b.HelpfulCount)) -
		math.Log1p(float64(b.HarmfulCount)) +
		freshness(b.Touched(), now, halfLife)
}

// freshness decays exponentially from 1 with the configured half-life.
func freshness(touched, now time.Time, halfLife time.Duration) float64 {
	elapsed := now.Sub(touched)
	if elapsed <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * float64(elapsed) / float64(halfLife))
}
