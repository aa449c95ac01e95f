package linear_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/playbook/pkg/index"
	"github.com/papercomputeco/playbook/pkg/index/linear"
	"github.com/papercomputeco/playbook/pkg/playbook"
)

func TestLinear(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Linear Index Suite")
}

var _ = Describe("Linear index", func() {
	var (
		ctx context.Context
		idx *linear.Index
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		idx, err = linear.New(linear.Config{Dimensions: 3})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		idx.Close()
	})

	Describe("New", func() {
		It("requires dimensions", func() {
			_, err := linear.New(linear.Config{})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Nearest", func() {
		BeforeEach(func() {
			Expect(idx.Upsert(ctx, index.Entry{
				ID: "b-east", Kind: playbook.KindStrategy, Embedding: []float32{1, 0, 0},
			})).To(Succeed())
			Expect(idx.Upsert(ctx, index.Entry{
				ID: "b-north", Kind: playbook.KindStrategy, Embedding: []float32{0, 1, 0},
			})).To(Succeed())
			Expect(idx.Upsert(ctx, index.Entry{
				ID: "b-diag", Kind: playbook.KindPitfall, Embedding: []float32{1, 1, 0},
			})).To(Succeed())
		})

		It("orders matches by similarity descending", func() {
			matches, err := idx.Nearest(ctx, []float32{1, 0.2, 0}, "", 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(3))
			Expect(matches[0].ID).To(Equal("b-east"))
			Expect(matches[1].ID).To(Equal("b-diag"))
			Expect(matches[2].ID).To(Equal("b-north"))
		})

		It("breaks similarity ties by lowest id", func() {
			Expect(idx.Upsert(ctx, index.Entry{
				ID: "b-east-2", Kind: playbook.KindStrategy, Embedding: []float32{2, 0, 0},
			})).To(Succeed())

			// b-east and b-east-2 both have cosine 1 with the query
			matches, err := idx.Nearest(ctx, []float32{1, 0, 0}, "", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches[0].ID).To(Equal("b-east"))
			Expect(matches[1].ID).To(Equal("b-east-2"))
		})

		It("scopes results to a kind", func() {
			matches, err := idx.Nearest(ctx, []float32{1, 1, 0}, playbook.KindPitfall, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(1))
			Expect(matches[0].ID).To(Equal("b-diag"))
		})

		It("searches all kinds when kind is empty", func() {
			matches, err := idx.Nearest(ctx, []float32{1, 1, 0}, "", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(3))
		})

		It("truncates to the limit", func() {
			matches, err := idx.Nearest(ctx, []float32{1, 0, 0}, "", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(1))
		})

		It("returns nothing for a non-positive limit", func() {
			matches, err := idx.Nearest(ctx, []float32{1, 0, 0}, "", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(BeEmpty())
		})

		It("rejects a query of the wrong dimension", func() {
			_, err := idx.Nearest(ctx, []float32{1, 0}, "", 1)
			Expect(err).To(MatchError(index.ErrDimension))
		})
	})

	Describe("Upsert", func() {
		It("replaces an existing entry", func() {
			entry := index.Entry{ID: "b1", Kind: playbook.KindRule, Embedding: []float32{1, 0, 0}}
			Expect(idx.Upsert(ctx, entry)).To(Succeed())

			entry.Embedding = []float32{0, 0, 1}
			Expect(idx.Upsert(ctx, entry)).To(Succeed())

			matches, err := idx.Nearest(ctx, []float32{0, 0, 1}, "", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches[0].ID).To(Equal("b1"))
			Expect(matches[0].Similarity).To(BeNumerically("~", 1.0, 1e-6))
		})

		It("rejects an embedding of the wrong dimension", func() {
			err := idx.Upsert(ctx, index.Entry{ID: "b1", Embedding: []float32{1, 0}})
			Expect(err).To(MatchError(index.ErrDimension))
		})

		It("is unaffected by caller mutation of the embedding", func() {
			vec := []float32{1, 0, 0}
			Expect(idx.Upsert(ctx, index.Entry{ID: "b1", Embedding: vec})).To(Succeed())

			vec[0] = 0
			vec[2] = 1

			matches, err := idx.Nearest(ctx, []float32{1, 0, 0}, "", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches[0].Similarity).To(BeNumerically("~", 1.0, 1e-6))
		})
	})

	Describe("Remove", func() {
		It("drops an entry", func() {
			Expect(idx.Upsert(ctx, index.Entry{ID: "b1", Embedding: []float32{1, 0, 0}})).To(Succeed())
			Expect(idx.Remove(ctx, "b1")).To(Succeed())

			matches, err := idx.Nearest(ctx, []float32{1, 0, 0}, "", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(BeEmpty())
		})

		It("ignores an absent id", func() {
			Expect(idx.Remove(ctx, "never-existed")).To(Succeed())
		})
	})

	Describe("Rebuild", func() {
		It("replaces all contents", func() {
			Expect(idx.Upsert(ctx, index.Entry{ID: "old", Embedding: []float32{1, 0, 0}})).To(Succeed())

			Expect(idx.Rebuild(ctx, []index.Entry{
				{ID: "new-1", Embedding: []float32{0, 1, 0}},
				{ID: "new-2", Embedding: []float32{0, 0, 1}},
			})).To(Succeed())

			matches, err := idx.Nearest(ctx, []float32{1, 0, 0}, "", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(2))
			for _, m := range matches {
				Expect(m.ID).NotTo(Equal("old"))
			}
		})

		It("rejects entries of the wrong dimension", func() {
			err := idx.Rebuild(ctx, []index.Entry{{ID: "bad", Embedding: []float32{1}}})
			Expect(err).To(MatchError(index.ErrDimension))
		})
	})

	Describe("Close", func() {
		It("fails subsequent operations", func() {
			Expect(idx.Close()).To(Succeed())

			_, err := idx.Nearest(ctx, []float32{1, 0, 0}, "", 1)
			Expect(err).To(MatchError(index.ErrClosed))

			Expect(idx.Upsert(ctx, index.Entry{ID: "b1", Embedding: []float32{1, 0, 0}})).To(MatchError(index.ErrClosed))
		})
	})
})
