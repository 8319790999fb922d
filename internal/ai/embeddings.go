package ai

import (
	"context"
	"fmt"

	"contract-qa-platform/internal/config"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Embedder turns texts into vectors. The produced dimensionality must
// match the vector collection's configured size; a mismatch is a
// fatal configuration error, not something the system self-heals.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// GoogleEmbedder embeds through the Gemini embeddings API
type GoogleEmbedder struct {
	client *genai.Client
	model  string
}

func NewGoogleEmbedder(cfg *config.Config) (*GoogleEmbedder, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	return &GoogleEmbedder{
		client: client,
		model:  cfg.EmbeddingsModel,
	}, nil
}

// EmbedDocuments embeds a batch of texts in one API call
func (ge *GoogleEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := ge.client.EmbeddingModel(ge.model)
	batch := em.NewBatch()
	for _, text := range texts {
		batch = batch.AddContent(genai.Text(text))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("embedding service error: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding service error: got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, embedding := range resp.Embeddings {
		vectors[i] = embedding.Values
	}
	return vectors, nil
}

// EmbedQuery embeds a single query text
func (ge *GoogleEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	em := ge.client.EmbeddingModel(ge.model)
	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("embedding service error: %w", err)
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("embedding service error: no embedding returned")
	}
	return resp.Embedding.Values, nil
}

// Close the underlying genai client
func (ge *GoogleEmbedder) Close() error {
	if ge.client != nil {
		return ge.client.Close()
	}
	return nil
}
