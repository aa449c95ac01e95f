package curator_test

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/config"
	"github.com/papercomputeco/playbook/pkg/curator"
	"github.com/papercomputeco/playbook/pkg/embeddings/hashembed"
	"github.com/papercomputeco/playbook/pkg/index"
	"github.com/papercomputeco/playbook/pkg/index/linear"
	"github.com/papercomputeco/playbook/pkg/playbook"
	"github.com/papercomputeco/playbook/pkg/store/sqlite"
)

// Invariants that must hold after every submission, regardless of the delta
// sequence: counters never negative, embeddings only at the configured
// dimension, ids unique, deactivated bullets never reactivated, the lazy
// window bounding the active set, and no two active same-kind bullets at or
// above the dedup threshold.
var _ = Describe("Curator invariants", func() {
	const (
		dims   = 64
		window = 10
		rounds = 40
	)

	var (
		ctx            context.Context
		tmpDir         string
		s              *sqlite.SQLiteStore
		cur            *curator.Curator
		rng            *rand.Rand
		clock          time.Time
		dedupThreshold float64
	)

	BeforeEach(func() {
		ctx = context.Background()
		clock = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		rng = rand.New(rand.NewSource(42))

		var err error
		tmpDir, err = os.MkdirTemp("", "curator-inv-*")
		Expect(err).NotTo(HaveOccurred())

		s, err = sqlite.New(sqlite.Config{
			DBPath:     filepath.Join(tmpDir, "playbook.db"),
			Dimensions: dims,
		}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		cfg := config.NewDefaultConfig()
		cfg.Embedding.Dimensions = dims
		cfg.Curator.RefineMode = "lazy"
		cfg.Curator.LazyWindow = window
		cfg.Curator.GracePeriod = "0s"
		dedupThreshold = cfg.Curator.DedupThreshold

		idx, err := linear.New(linear.Config{Dimensions: dims})
		Expect(err).NotTo(HaveOccurred())

		cur, err = curator.New(cfg, s, idx, hashembed.New(dims), zap.NewNop(),
			curator.WithClock(func() time.Time { return clock }))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cur.Close()
		os.RemoveAll(tmpDir)
	})

	It("holds under random delta sequences", func() {
		kinds := []playbook.Kind{playbook.KindStrategy, playbook.KindRule, playbook.KindPitfall}
		ops := []playbook.EditOp{playbook.OpIncHelpful, playbook.OpIncHarmful, playbook.OpResetCounters}

		var knownIDs []string
		deactivated := map[string]bool{}

		for round := 0; round < rounds; round++ {
			delta := &playbook.Delta{}

			for i := rng.Intn(4); i > 0; i-- {
				delta.Additions = append(delta.Additions, playbook.Addition{
					Kind:  kinds[rng.Intn(len(kinds))],
					Title: "generated",
					Body:  fmt.Sprintf("note %d about topic %d", rng.Intn(1000), rng.Intn(20)),
				})
			}
			for i := rng.Intn(3); i > 0; i-- {
				id := "bogus-id"
				if len(knownIDs) > 0 && rng.Intn(4) > 0 {
					id = knownIDs[rng.Intn(len(knownIDs))]
				}
				delta.Edits = append(delta.Edits, playbook.Edit{
					BulletID: id,
					Op:       ops[rng.Intn(len(ops))],
				})
			}
			if delta.Empty() {
				continue
			}

			report, err := cur.SubmitDelta(ctx, delta)
			Expect(err).NotTo(HaveOccurred())
			knownIDs = append(knownIDs, report.Merge.CreatedIDs...)
			if report.Refinement != nil {
				for _, id := range report.Refinement.DeactivatedIDs {
					deactivated[id] = true
				}
			}

			clock = clock.Add(time.Duration(rng.Intn(120)) * time.Minute)

			all, err := s.ListAll(ctx)
			Expect(err).NotTo(HaveOccurred())

			seen := map[string]bool{}
			var actives []*playbook.Bullet
			for _, b := range all {
				Expect(seen[b.ID]).To(BeFalse(), "duplicate bullet id %s", b.ID)
				seen[b.ID] = true

				Expect(b.HelpfulCount).To(BeNumerically(">=", 0))
				Expect(b.HarmfulCount).To(BeNumerically(">=", 0))
				Expect(b.Embedding).To(HaveLen(dims))

				if b.Active {
					actives = append(actives, b)
					Expect(deactivated[b.ID]).To(BeFalse(),
						"bullet %s was deactivated but is active again", b.ID)
				}
			}
			Expect(len(actives)).To(BeNumerically("<=", window))

			// No two active bullets of the same kind may sit at or above
			// the dedup threshold; merge must have reinforced instead.
			for i := 0; i < len(actives); i++ {
				for j := i + 1; j < len(actives); j++ {
					if actives[i].Kind != actives[j].Kind {
						continue
					}
					Expect(index.Cosine(actives[i].Embedding, actives[j].Embedding)).To(
						BeNumerically("<", dedupThreshold),
						"active %s bullets %s and %s are near-duplicates",
						actives[i].Kind, actives[i].ID, actives[j].ID)
				}
			}
		}
	})
})
