package curator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/embeddings"
	"github.com/papercomputeco/playbook/pkg/index"
	"github.com/papercomputeco/playbook/pkg/playbook"
	"github.com/papercomputeco/playbook/pkg/store"
)

// stagedAddition is an addition that survived sanitization and embedding.
type stagedAddition struct {
	ref       string
	add       playbook.Addition
	embedding []float32
}

// stagedEdit is an edit ready to apply. Patch edits carry the resolved new
// body and its embedding, computed before the write section.
type stagedEdit struct {
	edit      playbook.Edit
	newBody   string
	embedding []float32
}

// stagedDelta is the fully-embedded delta handed to the write section.
// After staging, no embedding-provider call remains.
type stagedDelta struct {
	additions []stagedAddition
	edits     []stagedEdit
	traces    []playbook.Trace
	traceIDs  []string
	failures  []playbook.ItemFailure
}

// stage sanitizes and embeds the delta's items. Per-item problems (invalid
// kind, oversized body, forbidden content, unknown patch target, dimension
// mismatch) become report failures; a provider error aborts the submission.
func (c *Curator) stage(ctx context.Context, delta *playbook.Delta, now time.Time) (*stagedDelta, error) {
	staged := &stagedDelta{}

	for i := range delta.Traces {
		trace := delta.Traces[i]
		if trace.ID == "" {
			trace.ID = playbook.NewTraceID()
		}
		if trace.CreatedAt.IsZero() {
			trace.CreatedAt = now
		}
		staged.traces = append(staged.traces, trace)
		staged.traceIDs = append(staged.traceIDs, trace.ID)
	}

	// Sanitize and validate first; the bodies that survive are embedded in
	// one provider round-trip.
	var pending []stagedAddition
	for i, add := range delta.Additions {
		ref := fmt.Sprintf("addition[%d]", i)

		if !add.Kind.Valid() {
			staged.fail(ref, fmt.Errorf("unknown bullet kind %q", add.Kind))
			continue
		}

		add.Body = playbook.SanitizeText(add.Body)
		add.Title = strings.TrimSpace(playbook.SanitizeText(add.Title))
		if err := playbook.ValidateBody(add.Body); err != nil {
			staged.fail(ref, err)
			continue
		}

		pending = append(pending, stagedAddition{ref: ref, add: add})
	}

	texts := make([]string, len(pending))
	for i := range pending {
		texts[i] = pending[i].add.Body
	}
	vectors, err := embeddings.EmbedAll(ctx, c.embedder, texts)
	if err != nil {
		return nil, err
	}

	for i := range pending {
		if uint(len(vectors[i])) != c.cfg.Embedding.Dimensions {
			staged.fail(pending[i].ref, fmt.Errorf("%w: got %d, want %d",
				playbook.ErrDimensionMismatch, len(vectors[i]), c.cfg.Embedding.Dimensions))
			continue
		}
		pending[i].embedding = vectors[i]
		staged.additions = append(staged.additions, pending[i])
	}

	// Bodies staged by earlier patch edits in the same delta, so sequential
	// patches to one bullet compose.
	stagedBodies := make(map[string]string)

	for _, edit := range delta.Edits {
		switch edit.Op {
		case playbook.OpIncHelpful, playbook.OpIncHarmful, playbook.OpResetCounters:
			staged.edits = append(staged.edits, stagedEdit{edit: edit})

		case playbook.OpPatch:
			patchText := playbook.SanitizeText(edit.PatchText)

			current, ok := stagedBodies[edit.BulletID]
			if !ok {
				bullet, err := c.store.Get(ctx, edit.BulletID)
				if err != nil {
					var notFound store.ErrNotFound
					if errors.As(err, &notFound) {
						staged.fail(edit.BulletID, playbook.ErrUnknownBullet)
						continue
					}
					return nil, err
				}
				current = bullet.Body
			}

			newBody := patchText
			if edit.PatchMode != playbook.PatchReplace {
				newBody = strings.TrimSpace(current + "\n" + patchText)
			}
			if err := playbook.ValidateBody(newBody); err != nil {
				staged.fail(edit.BulletID, err)
				continue
			}

			embedding, err := c.embedder.Embed(ctx, newBody)
			if err != nil {
				return nil, err
			}
			if uint(len(embedding)) != c.cfg.Embedding.Dimensions {
				staged.fail(edit.BulletID, fmt.Errorf("%w: got %d, want %d",
					playbook.ErrDimensionMismatch, len(embedding), c.cfg.Embedding.Dimensions))
				continue
			}

			stagedBodies[edit.BulletID] = newBody
			staged.edits = append(staged.edits, stagedEdit{
				edit:      edit,
				newBody:   newBody,
				embedding: embedding,
			})

		default:
			staged.fail(edit.BulletID, fmt.Errorf("unknown edit op %q", edit.Op))
		}
	}

	return staged, nil
}

func (s *stagedDelta) fail(ref string, err error) {
	s.failures = append(s.failures, playbook.ItemFailure{Ref: ref, Err: err.Error()})
}

// merge applies a staged delta inside the write transaction. Given the same
// prior store state and the same delta, decisions are identical across runs:
// nearest-match ties resolve to the lowest bullet id, and in-batch
// comparisons follow delta order.
func (c *Curator) merge(ctx context.Context, tx store.Tx, staged *stagedDelta, now time.Time) (*playbook.MergeReport, []indexOp, error) {
	report := &playbook.MergeReport{Failures: staged.failures}
	var ops []indexOp

	for _, trace := range staged.traces {
		if err := tx.RecordTrace(ctx, trace); err != nil {
			return nil, nil, err
		}
	}

	// Bullets created earlier in this delta, not yet visible in the index.
	var batchEntries []index.Entry

	for _, sa := range staged.additions {
		scope := sa.add.Kind
		if c.cfg.Curator.CrossKindDedup {
			scope = ""
		}

		bestID, bestSim, err := c.bestMatch(ctx, sa.embedding, scope, batchEntries)
		if err != nil {
			return nil, nil, err
		}

		if bestID != "" && bestSim >= c.cfg.Curator.DedupThreshold {
			target, err := tx.Get(ctx, bestID)
			if err != nil {
				return nil, nil, err
			}
			if err := tx.Reinforce(ctx, bestID, sa.add.Tags, staged.traceIDs, now); err != nil {
				return nil, nil, err
			}
			report.ReinforcedIDs = append(report.ReinforcedIDs, bestID)

			// The existing text stays authoritative. A similar but
			// non-identical body is flagged for external review.
			if !strings.EqualFold(strings.TrimSpace(target.Body), strings.TrimSpace(sa.add.Body)) {
				report.TextDivergences = append(report.TextDivergences, playbook.TextDivergence{
					BulletID:     bestID,
					IncomingText: sa.add.Body,
				})
			}

			c.logger.Debug("reinforced near-duplicate bullet",
				zap.String("bullet", bestID),
				zap.Float64("similarity", bestSim),
			)
			continue
		}

		bullet := &playbook.Bullet{
			ID:             playbook.NewBulletID(),
			Kind:           sa.add.Kind,
			Title:          sa.add.Title,
			Body:           sa.add.Body,
			Tags:           sa.add.Tags,
			Embedding:      sa.embedding,
			CreatedAt:      now,
			LastTouchedAt:  now,
			Active:         true,
			SourceTraceIDs: staged.traceIDs,
		}
		if err := tx.Insert(ctx, bullet); err != nil {
			return nil, nil, err
		}

		report.CreatedIDs = append(report.CreatedIDs, bullet.ID)
		entry := index.Entry{ID: bullet.ID, Kind: bullet.Kind, Embedding: sa.embedding}
		batchEntries = append(batchEntries, entry)
		ops = append(ops, indexOp{id: bullet.ID, entry: entry})
	}

	edited := make(map[string]bool)
	for _, se := range staged.edits {
		applied, err := c.applyEdit(ctx, tx, se, now, report, &ops)
		if err != nil {
			return nil, nil, err
		}
		if applied && !edited[se.edit.BulletID] {
			edited[se.edit.BulletID] = true
			report.EditedIDs = append(report.EditedIDs, se.edit.BulletID)
		}
	}

	return report, ops, nil
}

// bestMatch finds the most similar active bullet across the index and the
// current batch. Ties resolve to the lowest id.
func (c *Curator) bestMatch(ctx context.Context, embedding []float32, scope playbook.Kind, batch []index.Entry) (string, float64, error) {
	var bestID string
	var bestSim float64

	matches, err := c.index.Nearest(ctx, embedding, scope, 1)
	if err != nil {
		return "", 0, err
	}
	if len(matches) > 0 {
		bestID = matches[0].ID
		bestSim = matches[0].Similarity
	}

	for _, entry := range batch {
		if scope != "" && entry.Kind != scope {
			continue
		}
		sim := index.Cosine(embedding, entry.Embedding)
		if sim > bestSim || (sim == bestSim && (bestID == "" || entry.ID < bestID)) {
			bestID = entry.ID
			bestSim = sim
		}
	}

	return bestID, bestSim, nil
}

// applyEdit applies a single staged edit, converting unknown-id errors into
// per-edit report failures. It reports whether the edit actually landed.
func (c *Curator) applyEdit(ctx context.Context, tx store.Tx, se stagedEdit, now time.Time, report *playbook.MergeReport, ops *[]indexOp) (bool, error) {
	var err error
	switch se.edit.Op {
	case playbook.OpIncHelpful, playbook.OpIncHarmful:
		err = tx.IncrementCounter(ctx, se.edit.BulletID, se.edit.Op, now)

	case playbook.OpResetCounters:
		err = tx.ResetCounters(ctx, se.edit.BulletID, now)

	case playbook.OpPatch:
		err = tx.PatchBody(ctx, se.edit.BulletID, se.newBody, se.embedding, now)
		if err == nil {
			bullet, getErr := tx.Get(ctx, se.edit.BulletID)
			if getErr != nil {
				return false, getErr
			}
			if bullet.Active {
				*ops = append(*ops, indexOp{
					id: bullet.ID,
					entry: index.Entry{
						ID:        bullet.ID,
						Kind:      bullet.Kind,
						Embedding: se.embedding,
					},
				})
			}
		}
	}

	if err != nil {
		var notFound store.ErrNotFound
		if errors.As(err, &notFound) {
			report.Failures = append(report.Failures, playbook.ItemFailure{
				Ref: se.edit.BulletID,
				Err: playbook.ErrUnknownBullet.Error(),
			})
			return false, nil
		}
		return false, err
	}
	return true, nil
}
