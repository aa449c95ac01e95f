package index_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/playbook/pkg/index"
)

func TestIndex(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Index Suite")
}

var _ = Describe("Cosine", func() {
	It("returns 1 for identical directions", func() {
		Expect(index.Cosine([]float32{1, 2, 3}, []float32{2, 4, 6})).To(BeNumerically("~", 1.0, 1e-9))
	})

	It("returns 0 for orthogonal vectors", func() {
		Expect(index.Cosine([]float32{1, 0}, []float32{0, 1})).To(BeNumerically("~", 0.0, 1e-9))
	})

	It("returns -1 for opposite directions", func() {
		Expect(index.Cosine([]float32{1, 0}, []float32{-1, 0})).To(BeNumerically("~", -1.0, 1e-9))
	})

	It("returns 0 for zero-norm vectors", func() {
		Expect(index.Cosine([]float32{0, 0}, []float32{1, 1})).To(BeZero())
	})

	It("returns 0 for mismatched lengths", func() {
		Expect(index.Cosine([]float32{1}, []float32{1, 0})).To(BeZero())
	})
})
