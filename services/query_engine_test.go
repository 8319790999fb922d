package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contract-qa-platform/internal/ai"
	"contract-qa-platform/internal/config"
	"contract-qa-platform/internal/telemetry"
	"contract-qa-platform/models"
)

type fakeEmbedder struct {
	queryVector []float32
	batchSizes  []int
}

func (fe *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	fe.batchSizes = append(fe.batchSizes, len(texts))
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func (fe *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return fe.queryVector, nil
}

type fakeCompleter struct {
	answer string
	calls  int
}

func (fc *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	fc.calls++
	return fc.answer, nil
}

func retrievalConfig() *config.Config {
	return &config.Config{
		SearchLimit:      100,
		RerankTopN:       30,
		MaxContextChunks: 15,
		MaxChunksPerDoc:  2,
		RelevanceFloor:   0.01,
	}
}

// seedChunk stores one chunk for a document with the given vector
func seedChunk(t *testing.T, store *MemoryStore, docID, name, text string, vector []float32) {
	t.Helper()
	chunk := models.TextChunk{
		ChunkID: fmt.Sprintf("%s-%s", docID, text[:min(8, len(text))]),
		Text:    text,
		Metadata: &models.DocumentMetadata{
			DocumentID:    docID,
			ContractSetID: "set-1",
			Name:          name,
			DocumentType:  models.DocTypeMaster,
			Level:         1,
			Hierarchy:     models.HierarchyContext{TotalDocsInSet: 3, DocPosition: 1},
		},
		PageNumber:       1,
		SectionID:        docID + "-s1",
		SectionReference: "Section 1",
		ChunkType:        models.ChunkTypeDetail,
	}
	require.NoError(t, store.Upsert(context.Background(), []models.TextChunk{chunk}, [][]float32{vector}))
}

func TestQueryNoDocumentsSelected(t *testing.T) {
	completer := &fakeCompleter{}
	engine := NewQueryEngine(retrievalConfig(), NewMemoryStore(), &fakeEmbedder{}, nil, completer, nil)

	resp, err := engine.Query(context.Background(), "What are the payment terms?", nil, 0)
	require.NoError(t, err)

	assert.Equal(t, "No documents selected for search.", resp.Answer)
	assert.Equal(t, 0.0, resp.Confidence)
	assert.Empty(t, resp.Citations)
	assert.Zero(t, completer.calls)
}

func TestQueryNoResults(t *testing.T) {
	completer := &fakeCompleter{}
	embedder := &fakeEmbedder{queryVector: []float32{1, 0, 0}}
	engine := NewQueryEngine(retrievalConfig(), NewMemoryStore(), embedder, nil, completer, nil)

	resp, err := engine.Query(context.Background(), "What are the payment terms?", []string{"doc-a"}, 0)
	require.NoError(t, err)

	assert.Equal(t, "No relevant information found in the selected documents.", resp.Answer)
	assert.Equal(t, 0.0, resp.Confidence)
	assert.Zero(t, completer.calls)
}

// Hierarchy questions are answered from stored metadata without any
// model call.
func TestQueryMetadataShortcut(t *testing.T) {
	store := NewMemoryStore()
	seedChunk(t, store, "msa", "MSA_Acme", "Payment due in 30 days.", []float32{1, 0, 0})
	seedChunk(t, store, "sow1", "SOW_Alpha", "Deliverables listed below.", []float32{0, 1, 0})

	completer := &fakeCompleter{}
	engine := NewQueryEngine(retrievalConfig(), store, &fakeEmbedder{}, nil, completer, nil)

	resp, err := engine.Query(context.Background(), "What type of documents are these?", []string{"msa", "sow1"}, 0)
	require.NoError(t, err)

	assert.Contains(t, resp.Answer, "Here are the document details:")
	assert.Contains(t, resp.Answer, "Document: MSA_Acme")
	assert.Contains(t, resp.Answer, "Document: SOW_Alpha")
	assert.Equal(t, 1.0, resp.Confidence)
	assert.Empty(t, resp.Citations)
	assert.Zero(t, completer.calls, "metadata answers must not call the model")
}

// Every selected document gets a voice before any document gets its
// second chunk.
func TestQueryFairCoverageAcrossDocuments(t *testing.T) {
	store := NewMemoryStore()
	// doc-a dominates the similarity ranking
	for i := 0; i < 5; i++ {
		seedChunk(t, store, "doc-a", "Agreement A", fmt.Sprintf("Clause A%d about payment terms.", i), []float32{1, 0, 0})
	}
	seedChunk(t, store, "doc-b", "Agreement B", "Clause B1 about payment terms.", []float32{0.9, 0.1, 0})
	seedChunk(t, store, "doc-c", "Agreement C", "Clause C1 about payment terms.", []float32{0.8, 0.2, 0})

	embedder := &fakeEmbedder{queryVector: []float32{1, 0, 0}}
	completer := &fakeCompleter{answer: "In Agreement A, [[about payment terms.]] while in Agreement B, [[Clause B1 about payment terms.]]"}
	metrics, err := telemetry.InitMetrics()
	require.NoError(t, err)
	engine := NewQueryEngine(retrievalConfig(), store, embedder, nil, completer, metrics)

	docIDs := []string{"doc-a", "doc-b", "doc-c"}
	resp, err := engine.Query(context.Background(), "Compare the payment terms.", docIDs, 0)
	require.NoError(t, err)
	require.Equal(t, 1, completer.calls)

	assert.ElementsMatch(t, []string{"Agreement A", "Agreement B", "Agreement C"}, resp.Sources)
	assert.Equal(t, 1.0, resp.Confidence)
	require.Len(t, resp.Citations, 2)
	assert.Equal(t, "doc-a", resp.Citations[0].DocumentID)
	assert.Equal(t, "doc-b", resp.Citations[1].DocumentID)
}

func TestSelectFairCoverageCaps(t *testing.T) {
	engine := NewQueryEngine(retrievalConfig(), NewMemoryStore(), &fakeEmbedder{}, nil, &fakeCompleter{}, nil)

	var candidates []StoredChunk
	for i := 0; i < 10; i++ {
		candidates = append(candidates, StoredChunk{
			ChunkID:    fmt.Sprintf("a%d", i),
			DocumentID: "doc-a",
			Text:       fmt.Sprintf("text %d", i),
		})
	}
	candidates = append(candidates, StoredChunk{ChunkID: "b0", DocumentID: "doc-b", Text: "other"})

	ranked := make([]ai.RankedResult, len(candidates))
	for i := range candidates {
		ranked[i] = ai.RankedResult{Index: i, Score: 1.0 - float64(i)*0.05}
	}

	selected := engine.selectFairCoverage(ranked, candidates, []string{"doc-a", "doc-b"})

	perDoc := make(map[string]int)
	for _, chunk := range selected {
		perDoc[chunk.DocumentID]++
	}
	assert.Equal(t, 2, perDoc["doc-a"], "per-document cap")
	assert.Equal(t, 1, perDoc["doc-b"])
}

func TestSelectFairCoverageRelevanceFloor(t *testing.T) {
	engine := NewQueryEngine(retrievalConfig(), NewMemoryStore(), &fakeEmbedder{}, nil, &fakeCompleter{}, nil)

	candidates := []StoredChunk{
		{ChunkID: "a0", DocumentID: "doc-a", Text: "relevant"},
		{ChunkID: "b0", DocumentID: "doc-b", Text: "noise"},
	}
	ranked := []ai.RankedResult{
		{Index: 0, Score: 0.8},
		{Index: 1, Score: 0.005}, // below floor
	}

	selected := engine.selectFairCoverage(ranked, candidates, []string{"doc-a", "doc-b"})

	require.Len(t, selected, 1)
	assert.Equal(t, "doc-a", selected[0].DocumentID)
}

func TestVerifyCitationsGroundsQuotes(t *testing.T) {
	selected := []StoredChunk{
		{
			DocumentID:       "msa",
			Name:             "MSA_Acme",
			Text:             "Payment is due\n   within thirty (30) days of invoice.",
			PageNumber:       4,
			SectionReference: "Section 2",
		},
	}

	answer := "In MSA_Acme, [[Payment is due within thirty (30) days of invoice.]] " +
		"Also [[Payment is due within thirty (30) days of invoice.]] " +
		"and [[a quote the model made up]]."

	citations := verifyCitations(answer, selected)

	require.Len(t, citations, 1, "fabricated and duplicate quotes are dropped")
	assert.Equal(t, "msa", citations[0].DocumentID)
	assert.Equal(t, "Payment is due within thirty (30) days of invoice.", citations[0].TextSnippet)
	assert.Equal(t, 4, citations[0].PageNumber)
	assert.Equal(t, "Section 2", citations[0].SectionReference)
}

// An answer whose quotes all fail verification keeps the answer text
// but drops to half confidence.
func TestQueryUnverifiedAnswerHalvesConfidence(t *testing.T) {
	store := NewMemoryStore()
	seedChunk(t, store, "msa", "MSA_Acme", "Payment due in 30 days.", []float32{1, 0, 0})

	embedder := &fakeEmbedder{queryVector: []float32{1, 0, 0}}
	completer := &fakeCompleter{answer: "In MSA_Acme, [[a fabricated quote]]."}
	engine := NewQueryEngine(retrievalConfig(), store, embedder, nil, completer, nil)

	resp, err := engine.Query(context.Background(), "Summarize the invoicing obligations.", []string{"msa"}, 0)
	require.NoError(t, err)

	assert.Empty(t, resp.Citations)
	assert.Equal(t, 0.5, resp.Confidence)
	assert.Equal(t, completer.answer, resp.Answer)
}
