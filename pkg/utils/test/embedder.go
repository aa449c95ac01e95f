package testutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/playbook/pkg/playbook"
)

// MockEmbedder is a test embedder that returns scripted embeddings
type MockEmbedder struct {
	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// Calls records every text passed to Embed, in order
	Calls []string
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

// Set registers the embedding returned for text.
func (m *MockEmbedder) Set(text string, embedding []float32) *MockEmbedder {
	m.Embeddings[text] = embedding
	return m
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.Calls = append(m.Calls, text)

	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("%w: mock embedding failure for: %s", playbook.ErrProviderUnavailable, text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}
	return nil, fmt.Errorf("no embedding registered for: %q", text)
}

func (m *MockEmbedder) Close() error {
	return nil
}
