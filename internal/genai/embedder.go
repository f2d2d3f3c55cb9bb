package genai

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
)

// Embedder turns a piece of text into a dense vector using one configured
// embedding model.
type Embedder struct {
	embedder ai.Embedder
	timeout  time.Duration
}

// NewEmbedder creates an Embedder. A non-positive timeout disables the
// per-call deadline.
func NewEmbedder(embedder ai.Embedder, timeout time.Duration) *Embedder {
	return &Embedder{embedder: embedder, timeout: timeout}
}

// Embed returns the embedding vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned for query")
	}
	return resp.Embeddings[0].Embedding, nil
}
