package curator_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/config"
	"github.com/papercomputeco/playbook/pkg/curator"
	"github.com/papercomputeco/playbook/pkg/index/linear"
	"github.com/papercomputeco/playbook/pkg/playbook"
	"github.com/papercomputeco/playbook/pkg/store/sqlite"
	testutils "github.com/papercomputeco/playbook/pkg/utils/test"
)

// Merging is deterministic: replaying the same delta sequence against two
// identical stores must yield the same dedup decisions, the same bodies, and
// the same counters, even though the bullet ids themselves are freshly minted
// in each replica.
var _ = Describe("Curator merge determinism", func() {
	var (
		ctx    context.Context
		tmpDir string
		clock  time.Time
		mock   *testutils.MockEmbedder
	)

	type replica struct {
		s   *sqlite.SQLiteStore
		cur *curator.Curator
	}

	type bulletState struct {
		Kind    playbook.Kind
		Helpful int
		Harmful int
		Active  bool
		Version int
	}

	open := func(name string) replica {
		s, err := sqlite.New(sqlite.Config{
			DBPath:     filepath.Join(tmpDir, name+".db"),
			Dimensions: 3,
		}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		cfg := config.NewDefaultConfig()
		cfg.Embedding.Dimensions = 3
		cfg.Curator.GracePeriod = "0s"

		idx, err := linear.New(linear.Config{Dimensions: 3})
		Expect(err).NotTo(HaveOccurred())

		c, err := curator.New(cfg, s, idx, mock, zap.NewNop(),
			curator.WithClock(func() time.Time { return clock }))
		Expect(err).NotTo(HaveOccurred())
		return replica{s: s, cur: c}
	}

	BeforeEach(func() {
		ctx = context.Background()
		clock = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		mock = testutils.NewMockEmbedder()
		mock.Set("prefer small diffs", []float32{1, 0, 0})
		mock.Set("keep diffs small", []float32{0.9, 0.1, 0}) // near-duplicate of the first
		mock.Set("run linters before pushing", []float32{0, 1, 0})
		mock.Set("never force-push shared branches", []float32{0, 0, 1})

		var err error
		tmpDir, err = os.MkdirTemp("", "curator-det-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("makes the same decisions over identical stores", func() {
		type outcome struct {
			created    []int
			reinforced []int
			state      map[string]bulletState
		}

		deltas := func() []*playbook.Delta {
			return []*playbook.Delta{
				{Additions: []playbook.Addition{
					{Kind: playbook.KindStrategy, Title: "t", Body: "prefer small diffs"},
					{Kind: playbook.KindRule, Title: "t", Body: "run linters before pushing"},
				}},
				{Additions: []playbook.Addition{
					{Kind: playbook.KindStrategy, Title: "t", Body: "keep diffs small"},
					{Kind: playbook.KindPitfall, Title: "t", Body: "never force-push shared branches"},
				}},
			}
		}

		run := func(name string) outcome {
			r := open(name)
			defer r.cur.Close()

			var out outcome
			for _, d := range deltas() {
				report, err := r.cur.SubmitDelta(ctx, d)
				Expect(err).NotTo(HaveOccurred())
				Expect(report.Merge.Failures).To(BeEmpty())
				out.created = append(out.created, len(report.Merge.CreatedIDs))
				out.reinforced = append(out.reinforced, len(report.Merge.ReinforcedIDs))
			}

			// An edit round, resolving the target id per replica by body.
			bullets, err := r.s.ListActive(ctx)
			Expect(err).NotTo(HaveOccurred())
			var targetID string
			for _, b := range bullets {
				if b.Body == "prefer small diffs" {
					targetID = b.ID
				}
			}
			Expect(targetID).NotTo(BeEmpty())
			_, err = r.cur.SubmitDelta(ctx, &playbook.Delta{
				Edits: []playbook.Edit{{BulletID: targetID, Op: playbook.OpIncHelpful}},
			})
			Expect(err).NotTo(HaveOccurred())

			bullets, err = r.s.ListActive(ctx)
			Expect(err).NotTo(HaveOccurred())
			out.state = map[string]bulletState{}
			for _, b := range bullets {
				out.state[b.Body] = bulletState{
					Kind:    b.Kind,
					Helpful: b.HelpfulCount,
					Harmful: b.HarmfulCount,
					Active:  b.Active,
					Version: b.Version,
				}
			}
			return out
		}

		first := run("first")
		second := run("second")

		// Delta 2's strategy addition deduped against delta 1's in both
		// replicas; everything else was created.
		Expect(first.created).To(Equal([]int{2, 1}))
		Expect(first.reinforced).To(Equal([]int{0, 1}))
		Expect(second.created).To(Equal(first.created))
		Expect(second.reinforced).To(Equal(first.reinforced))
		Expect(second.state).To(Equal(first.state))
	})
})
