package knowledge

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Embedder produces a query embedding for retrieval. A nil vector with a
// nil error means no embedding is available and vector search is skipped.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GeminiEmbedder embeds queries with the Gemini embedding API.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates an embedder bound to the given model.
func NewGeminiEmbedder(client *genai.Client, model string) (*GeminiEmbedder, error) {
	if client == nil {
		return nil, fmt.Errorf("genai client is required")
	}
	if model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	return &GeminiEmbedder{client: client, model: model}, nil
}

// Embed returns the embedding for text, whitespace collapsed first. An
// empty query yields no embedding rather than an error.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	clean := NormalizeQuery(text)
	if clean == "" {
		return nil, nil
	}

	dim := int32(VectorDimension)
	resp, err := e.client.Models.EmbedContent(ctx, e.model,
		genai.Text(clean),
		&genai.EmbedContentConfig{OutputDimensionality: &dim})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return resp.Embeddings[0].Values, nil
}

// NormalizeQuery collapses runs of whitespace into single spaces and trims
// the result.
func NormalizeQuery(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
