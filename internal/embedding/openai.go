package embedding

import (
	"context"
	"fmt"

	"github.com/onelens/backend/internal/llm"
	"github.com/onelens/backend/pkg/errs"
)

// OpenAIProvider delegates to the LLM client, which already carries the
// circuit breaker and retry policy. Failures surface as transient provider
// errors so callers know a retry may succeed.
type OpenAIProvider struct {
	client    *llm.Client
	dimension int
}

func NewOpenAIProvider(client *llm.Client, dimension int) *OpenAIProvider {
	return &OpenAIProvider{client: client, dimension: dimension}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	// The embeddings API rejects empty input, so blank text short-circuits
	// to the zero vector without a network call.
	if !hasContent(text) {
		return make([]float32, p.dimension), nil
	}

	embedding, err := p.client.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrTransientProvider, err)
	}

	if len(embedding) != p.dimension {
		return nil, errs.Invariantf("embedding dimension %d, expected %d", len(embedding), p.dimension)
	}

	return embedding, nil
}
