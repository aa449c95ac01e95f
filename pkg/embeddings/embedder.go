// Package embeddings
package embeddings

import (
	"context"
	"fmt"
)

// Embedder provides text embedding capabilities. Providers may be remote and
// fail transiently; the curator embeds a delta's texts before entering its
// write section so a provider failure never leaves partial state behind.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// BatchEmbedder is implemented by providers whose API can embed several
// texts in a single request.
type BatchEmbedder interface {
	// EmbedAll converts texts into vector embeddings, one per input, in
	// input order.
	EmbedAll(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedAll embeds texts through e in one provider round-trip when e supports
// batching, and falls back to one Embed call per text when it does not.
func EmbedAll(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if b, ok := e.(BatchEmbedder); ok {
		vectors, err := b.EmbedAll(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
		}
		return vectors, nil
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vector
	}
	return vectors, nil
}
