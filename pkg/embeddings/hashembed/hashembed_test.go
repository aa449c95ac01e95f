package hashembed_test

import (
	"context"
	"math"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/playbook/pkg/embeddings/hashembed"
)

func TestHashEmbed(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "HashEmbed Suite")
}

var _ = Describe("Embedder", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("produces vectors of the configured dimension", func() {
		e := hashembed.New(64)
		vec, err := e.Embed(ctx, "some text")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(HaveLen(64))
	})

	It("defaults the dimension when given zero", func() {
		e := hashembed.New(0)
		vec, err := e.Embed(ctx, "some text")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(HaveLen(128))
	})

	It("is deterministic for identical text", func() {
		e := hashembed.New(32)
		a, err := e.Embed(ctx, "same input")
		Expect(err).NotTo(HaveOccurred())
		b, err := e.Embed(ctx, "same input")
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(b))
	})

	It("differs for different text", func() {
		e := hashembed.New(32)
		a, err := e.Embed(ctx, "first input")
		Expect(err).NotTo(HaveOccurred())
		b, err := e.Embed(ctx, "second input")
		Expect(err).NotTo(HaveOccurred())
		Expect(a).NotTo(Equal(b))
	})

	It("returns unit vectors", func() {
		e := hashembed.New(32)
		vec, err := e.Embed(ctx, "normalize me")
		Expect(err).NotTo(HaveOccurred())

		var norm float64
		for _, f := range vec {
			norm += float64(f) * float64(f)
		}
		Expect(math.Sqrt(norm)).To(BeNumerically("~", 1.0, 1e-5))
	})
})
