package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/playbook/pkg/embeddings/ollama"
	"github.com/papercomputeco/playbook/pkg/playbook"
)

func TestOllama(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Ollama Embedder Suite")
}

var _ = Describe("Ollama embedder", func() {
	var (
		ctx      context.Context
		requests int
		inputs   [][]string
		status   int
		payload  any
		server   *httptest.Server
		emb      *ollama.Embedder
	)

	BeforeEach(func() {
		ctx = context.Background()
		requests = 0
		inputs = nil
		status = http.StatusOK
		payload = map[string]any{
			"embeddings": [][]float32{{1, 0}, {0, 1}},
		}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			requests++
			Expect(r.URL.Path).To(Equal("/api/embed"))

			var req struct {
				Model string   `json:"model"`
				Input []string `json:"input"`
			}
			Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
			inputs = append(inputs, req.Input)

			w.WriteHeader(status)
			Expect(json.NewEncoder(w).Encode(payload)).To(Succeed())
		}))

		var err error
		emb, err = ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
		Expect(emb.Close()).To(Succeed())
	})

	Describe("EmbedAll", func() {
		It("should send all texts in one request", func() {
			vectors, err := emb.EmbedAll(ctx, []string{"alpha", "beta"})
			Expect(err).NotTo(HaveOccurred())
			Expect(vectors).To(Equal([][]float32{{1, 0}, {0, 1}}))
			Expect(requests).To(Equal(1))
			Expect(inputs).To(Equal([][]string{{"alpha", "beta"}}))
		})

		It("should skip the request when there are no texts", func() {
			vectors, err := emb.EmbedAll(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(vectors).To(BeNil())
			Expect(requests).To(BeZero())
		})

		It("should reject an embedding count mismatch", func() {
			payload = map[string]any{"embeddings": [][]float32{{1, 0}}}
			_, err := emb.EmbedAll(ctx, []string{"alpha", "beta"})
			Expect(err).To(MatchError(playbook.ErrProviderUnavailable))
		})

		It("should surface a provider error status", func() {
			status = http.StatusInternalServerError
			_, err := emb.EmbedAll(ctx, []string{"alpha"})
			Expect(err).To(MatchError(playbook.ErrProviderUnavailable))
		})
	})

	Describe("Embed", func() {
		It("should return the single embedding", func() {
			payload = map[string]any{"embeddings": [][]float32{{1, 0}}}
			vector, err := emb.Embed(ctx, "alpha")
			Expect(err).NotTo(HaveOccurred())
			Expect(vector).To(Equal([]float32{1, 0}))
			Expect(inputs).To(Equal([][]string{{"alpha"}}))
		})
	})
})
