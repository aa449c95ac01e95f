package sqlitevec_test

import (
	"context"
	"fmt"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/index"
	"github.com/papercomputeco/playbook/pkg/index/sqlitevec"
	"github.com/papercomputeco/playbook/pkg/playbook"
)

func TestSqliteVec(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "SQLiteVec Index Suite")
}

var _ = Describe("SQLiteVec index", func() {
	var logger *zap.Logger

	BeforeEach(func() {
		logger = zap.NewNop()
	})

	Describe("New", func() {
		It("should return an error when DBPath is empty", func() {
			_, err := sqlitevec.New(sqlitevec.Config{DBPath: ""}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database path is required"))
		})

		It("should create an index with an in-memory database", func() {
			idx, err := sqlitevec.New(sqlitevec.Config{
				DBPath:     ":memory:",
				Dimensions: 4,
			}, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(idx).NotTo(BeNil())
			Expect(idx.Close()).To(Succeed())
		})

		It("should error when dimensions are not specified", func() {
			_, err := sqlitevec.New(sqlitevec.Config{DBPath: ":memory:"}, logger)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("operations", func() {
		var (
			ctx context.Context
			idx *sqlitevec.Index
		)

		BeforeEach(func() {
			ctx = context.Background()

			var err error
			idx, err = sqlitevec.New(sqlitevec.Config{
				DBPath:     ":memory:",
				Dimensions: 4,
			}, logger)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			Expect(idx.Close()).To(Succeed())
		})

		Describe("Upsert", func() {
			It("should insert a new entry", func() {
				err := idx.Upsert(ctx, index.Entry{
					ID:        "b-1",
					Kind:      playbook.KindStrategy,
					Embedding: []float32{1, 0, 0, 0},
				})
				Expect(err).NotTo(HaveOccurred())

				matches, err := idx.Nearest(ctx, []float32{1, 0, 0, 0}, "", 1)
				Expect(err).NotTo(HaveOccurred())
				Expect(matches).To(HaveLen(1))
				Expect(matches[0].ID).To(Equal("b-1"))
				Expect(matches[0].Similarity).To(BeNumerically("~", 1.0, 1e-4))
			})

			It("should replace the embedding for an existing id", func() {
				entry := index.Entry{ID: "b-1", Kind: playbook.KindStrategy, Embedding: []float32{1, 0, 0, 0}}
				Expect(idx.Upsert(ctx, entry)).To(Succeed())

				entry.Embedding = []float32{0, 0, 0, 1}
				Expect(idx.Upsert(ctx, entry)).To(Succeed())

				matches, err := idx.Nearest(ctx, []float32{0, 0, 0, 1}, "", 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(matches).To(HaveLen(1))
				Expect(matches[0].Similarity).To(BeNumerically("~", 1.0, 1e-4))
			})

			It("should reject the wrong dimension", func() {
				err := idx.Upsert(ctx, index.Entry{ID: "b-1", Embedding: []float32{1, 0}})
				Expect(err).To(MatchError(index.ErrDimension))
			})
		})

		Describe("Nearest", func() {
			BeforeEach(func() {
				Expect(idx.Upsert(ctx, index.Entry{
					ID: "b-east", Kind: playbook.KindStrategy, Embedding: []float32{1, 0, 0, 0},
				})).To(Succeed())
				Expect(idx.Upsert(ctx, index.Entry{
					ID: "b-north", Kind: playbook.KindStrategy, Embedding: []float32{0, 1, 0, 0},
				})).To(Succeed())
				Expect(idx.Upsert(ctx, index.Entry{
					ID: "b-diag", Kind: playbook.KindPitfall, Embedding: []float32{1, 1, 0, 0},
				})).To(Succeed())
			})

			It("should order by similarity descending", func() {
				matches, err := idx.Nearest(ctx, []float32{1, 0.2, 0, 0}, "", 3)
				Expect(err).NotTo(HaveOccurred())
				Expect(matches).To(HaveLen(3))
				Expect(matches[0].ID).To(Equal("b-east"))
				Expect(matches[1].ID).To(Equal("b-diag"))
				Expect(matches[2].ID).To(Equal("b-north"))
			})

			It("should scope to a kind", func() {
				matches, err := idx.Nearest(ctx, []float32{1, 1, 0, 0}, playbook.KindPitfall, 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(matches).To(HaveLen(1))
				Expect(matches[0].ID).To(Equal("b-diag"))
			})

			It("should find a scoped match behind many closer entries of other kinds", func() {
				query := []float32{0, 0, 0, 1}
				for i := 0; i < 200; i++ {
					Expect(idx.Upsert(ctx, index.Entry{
						ID:        fmt.Sprintf("rule-%03d", i),
						Kind:      playbook.KindRule,
						Embedding: []float32{0, float32(i) * 0.001, 0, 1},
					})).To(Succeed())
				}
				Expect(idx.Upsert(ctx, index.Entry{
					ID:        "b-far-strategy",
					Kind:      playbook.KindStrategy,
					Embedding: []float32{0, 0, 1, 1},
				})).To(Succeed())

				matches, err := idx.Nearest(ctx, query, playbook.KindStrategy, 1)
				Expect(err).NotTo(HaveOccurred())
				Expect(matches).To(HaveLen(1))
				Expect(matches[0].ID).To(Equal("b-far-strategy"))
			})

			It("should search all kinds when kind is empty", func() {
				matches, err := idx.Nearest(ctx, []float32{1, 1, 0, 0}, "", 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(matches).To(HaveLen(3))
			})

			It("should truncate to the limit", func() {
				matches, err := idx.Nearest(ctx, []float32{1, 0, 0, 0}, "", 2)
				Expect(err).NotTo(HaveOccurred())
				Expect(matches).To(HaveLen(2))
			})

			It("should return nothing for a non-positive limit", func() {
				matches, err := idx.Nearest(ctx, []float32{1, 0, 0, 0}, "", 0)
				Expect(err).NotTo(HaveOccurred())
				Expect(matches).To(BeEmpty())
			})

			It("should reject a query of the wrong dimension", func() {
				_, err := idx.Nearest(ctx, []float32{1, 0}, "", 1)
				Expect(err).To(MatchError(index.ErrDimension))
			})
		})

		Describe("Remove", func() {
			It("should drop an entry", func() {
				Expect(idx.Upsert(ctx, index.Entry{
					ID: "b-1", Embedding: []float32{1, 0, 0, 0},
				})).To(Succeed())
				Expect(idx.Remove(ctx, "b-1")).To(Succeed())

				matches, err := idx.Nearest(ctx, []float32{1, 0, 0, 0}, "", 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(matches).To(BeEmpty())
			})

			It("should ignore an absent id", func() {
				Expect(idx.Remove(ctx, "never-existed")).To(Succeed())
			})
		})

		Describe("Rebuild", func() {
			It("should replace all contents", func() {
				Expect(idx.Upsert(ctx, index.Entry{
					ID: "old", Embedding: []float32{1, 0, 0, 0},
				})).To(Succeed())

				Expect(idx.Rebuild(ctx, []index.Entry{
					{ID: "new-1", Kind: playbook.KindRule, Embedding: []float32{0, 1, 0, 0}},
					{ID: "new-2", Kind: playbook.KindRule, Embedding: []float32{0, 0, 1, 0}},
				})).To(Succeed())

				matches, err := idx.Nearest(ctx, []float32{1, 1, 1, 0}, "", 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(matches).To(HaveLen(2))
				for _, m := range matches {
					Expect(m.ID).NotTo(Equal("old"))
				}
			})

			It("should accept an empty rebuild", func() {
				Expect(idx.Upsert(ctx, index.Entry{
					ID: "old", Embedding: []float32{1, 0, 0, 0},
				})).To(Succeed())
				Expect(idx.Rebuild(ctx, nil)).To(Succeed())

				matches, err := idx.Nearest(ctx, []float32{1, 0, 0, 0}, "", 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(matches).To(BeEmpty())
			})
		})
	})

	Describe("interface compliance", func() {
		It("should implement index.Index", func() {
			var _ index.Index = (*sqlitevec.Index)(nil)
		})
	})
})
