package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"contract-qa-platform/internal/config"
)

// RankedResult is one reranked document with its relevance score
type RankedResult struct {
	Index int     `json:"index"`
	Score float64 `json:"relevance_score"`
}

// Reranker reorders candidate texts by cross-encoder relevance to a
// query, returning at most topN results.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RankedResult, error)
}

// CohereReranker calls the Cohere rerank HTTP API
type CohereReranker struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

type cohereRerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type cohereRerankResponse struct {
	Results []RankedResult `json:"results"`
}

func NewCohereReranker(cfg *config.Config) *CohereReranker {
	timeout := time.Duration(cfg.RerankerTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &CohereReranker{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.RerankerURL,
		apiKey:     cfg.RerankerAPIKey,
		model:      cfg.RerankerModel,
	}
}

func (cr *CohereReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RankedResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(cohereRerankRequest{
		Model:     cr.model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", cr.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cr.apiKey)

	resp, err := cr.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank service error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank service error: status %d: %s", resp.StatusCode, string(body))
	}

	var rerankResp cohereRerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rerankResp); err != nil {
		return nil, fmt.Errorf("rerank service error: failed to decode response: %w", err)
	}

	return rerankResp.Results, nil
}
