package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"contract-qa-platform/internal/ai"
	"contract-qa-platform/internal/config"
	"contract-qa-platform/internal/logger"
	"contract-qa-platform/internal/telemetry"
	"contract-qa-platform/models"
)

const (
	answerNoDocuments = "No documents selected for search."
	answerNoResults   = "No relevant information found in the selected documents."
	answerNoCitations = "I couldn't find any highly relevant citations in the selected documents to support an answer. " +
		"Could you please rephrase your question or specify which aspects you'd like me to focus on?"
)

// metadataKeywords route hierarchy questions to stored metadata
// instead of semantic search. Those questions have exact answers.
var metadataKeywords = []string{"type", "level", "document type", "hierarchy"}

var quotePattern = regexp.MustCompile(`\[\[(.*?)\]\]`)

const synthesisSystemPrompt = `You are a legal document analysis assistant who specializes in comparing information across multiple documents.
Key requirements:
- Always analyze ALL provided documents
- Clearly state which document each quote comes from
- If information is only found in some documents, explicitly mention this
- Compare and contrast information across documents when possible
- Format quotes as: In [Document Name], [[exact quote]]`

// QueryEngine answers questions over a caller-selected document set
// with citation-grounded excerpts.
type QueryEngine struct {
	store     VectorStore
	embedder  ai.Embedder
	reranker  ai.Reranker
	completer ai.Completer
	metrics   *telemetry.Metrics

	searchLimit      int
	rerankTopN       int
	maxContextChunks int
	maxChunksPerDoc  int
	relevanceFloor   float64
}

// NewQueryEngine wires the engine. A nil reranker falls back to
// vector-search score order; a nil metrics skips recording.
func NewQueryEngine(cfg *config.Config, store VectorStore, embedder ai.Embedder, reranker ai.Reranker, completer ai.Completer, metrics *telemetry.Metrics) *QueryEngine {
	return &QueryEngine{
		store:            store,
		embedder:         embedder,
		reranker:         reranker,
		completer:        completer,
		metrics:          metrics,
		searchLimit:      cfg.SearchLimit,
		rerankTopN:       cfg.RerankTopN,
		maxContextChunks: cfg.MaxContextChunks,
		maxChunksPerDoc:  cfg.MaxChunksPerDoc,
		relevanceFloor:   cfg.RelevanceFloor,
	}
}

// Query runs the full retrieval and grounding pipeline for one
// question. Soft misses (no results, no surviving citations) are
// successful terminal states, not errors.
func (qe *QueryEngine) Query(ctx context.Context, question string, documentIDs []string, topK int) (*models.QueryResponse, error) {
	if len(documentIDs) == 0 {
		return &models.QueryResponse{
			Answer:     answerNoDocuments,
			Citations:  []models.Citation{},
			Confidence: 0.0,
		}, nil
	}

	if isMetadataQuery(question) {
		return qe.answerFromMetadata(ctx, documentIDs)
	}

	queryVector, err := qe.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}

	// All candidates kept, no score threshold
	candidates, err := qe.store.Search(ctx, queryVector, documentIDs, qe.searchLimit)
	if err != nil {
		return nil, err
	}

	logger.Debug("Vector search complete",
		"candidates", len(candidates),
		"documents", len(documentIDs))

	if len(candidates) == 0 {
		return &models.QueryResponse{
			Answer:     answerNoResults,
			Citations:  []models.Citation{},
			Confidence: 0.0,
		}, nil
	}

	ranked, err := qe.rerank(ctx, question, candidates)
	if err != nil {
		return nil, err
	}

	selected := qe.selectFairCoverage(ranked, candidates, documentIDs)
	if len(selected) == 0 {
		return &models.QueryResponse{
			Answer:     answerNoCitations,
			Citations:  []models.Citation{},
			Confidence: 0.0,
		}, nil
	}

	answer, err := qe.synthesize(ctx, question, selected, len(documentIDs))
	if err != nil {
		return nil, err
	}

	citations := verifyCitations(answer, selected)
	if qe.metrics != nil {
		qe.metrics.RecordCitations(len(citations))
	}

	confidence := 0.5
	if len(citations) > 0 {
		confidence = 1.0
	}

	return &models.QueryResponse{
		Answer:     answer,
		Citations:  citations,
		Confidence: confidence,
		Sources:    sourceNames(selected),
	}, nil
}

func isMetadataQuery(question string) bool {
	return containsAny(strings.ToLower(question), metadataKeywords)
}

// answerFromMetadata serves hierarchy questions from stored payload
// fields directly. No provider calls, no citations, confidence 1.0.
func (qe *QueryEngine) answerFromMetadata(ctx context.Context, documentIDs []string) (*models.QueryResponse, error) {
	chunks, err := qe.store.FetchByDocuments(ctx, documentIDs, qe.searchLimit)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return &models.QueryResponse{
			Answer:     answerNoResults,
			Citations:  []models.Citation{},
			Confidence: 0.0,
		}, nil
	}

	// Deduplicate by document id, first chunk wins
	seen := make(map[string]bool)
	var sb strings.Builder
	sb.WriteString("Here are the document details:\n\n")

	for _, chunk := range chunks {
		if chunk.DocumentID == "" || seen[chunk.DocumentID] {
			continue
		}
		seen[chunk.DocumentID] = true

		parent := chunk.ParentID
		if parent == "" {
			parent = "None"
		}
		sb.WriteString(fmt.Sprintf("Document: %s\nType: %s\nLevel: %d\nParent Document: %s\n\n",
			defaultString(chunk.Name, "Unknown"), defaultString(chunk.DocumentType, "Unknown"), chunk.Level, parent))
	}

	return &models.QueryResponse{
		Answer:     strings.TrimSpace(sb.String()),
		Citations:  []models.Citation{},
		Confidence: 1.0,
	}, nil
}

// rerank scores candidates against the query through the cross
// encoder, keeping the top N. Without a reranker the search score
// order stands in.
func (qe *QueryEngine) rerank(ctx context.Context, question string, candidates []StoredChunk) ([]ai.RankedResult, error) {
	if qe.reranker == nil {
		n := len(candidates)
		if n > qe.rerankTopN {
			n = qe.rerankTopN
		}
		ranked := make([]ai.RankedResult, n)
		for i := 0; i < n; i++ {
			ranked[i] = ai.RankedResult{Index: i, Score: candidates[i].Score}
		}
		return ranked, nil
	}

	texts := make([]string, len(candidates))
	for i, candidate := range candidates {
		texts[i] = candidate.Text
	}
	return qe.reranker.Rerank(ctx, question, texts, qe.rerankTopN)
}

// selectFairCoverage walks the reranked list twice. Pass 1 gives
// every allowed document its first voice; pass 2 fills remaining
// slots, capped per document and overall. This ordering prevents one
// verbose document from crowding out shorter ones.
func (qe *QueryEngine) selectFairCoverage(ranked []ai.RankedResult, candidates []StoredChunk, documentIDs []string) []StoredChunk {
	allowed := toSet(documentIDs)
	citationCounts := make(map[string]int)
	taken := make(map[int]bool)
	var selected []StoredChunk

	// Pass 1: first result from each distinct document
	for _, result := range ranked {
		docID := candidates[result.Index].DocumentID
		if result.Score > qe.relevanceFloor && allowed[docID] && citationCounts[docID] == 0 {
			chunk := candidates[result.Index]
			chunk.Score = result.Score
			selected = append(selected, chunk)
			citationCounts[docID] = 1
			taken[result.Index] = true

			if len(citationCounts) == len(documentIDs) {
				break
			}
		}
	}

	// Pass 2: fill remaining slots with the best leftover evidence
	for _, result := range ranked {
		docID := candidates[result.Index].DocumentID
		if result.Score > qe.relevanceFloor && allowed[docID] &&
			citationCounts[docID] < qe.maxChunksPerDoc &&
			len(selected) < qe.maxContextChunks &&
			!taken[result.Index] {

			chunk := candidates[result.Index]
			chunk.Score = result.Score
			selected = append(selected, chunk)
			citationCounts[docID]++
			taken[result.Index] = true
		}
	}

	logger.Debug("Fair coverage selection",
		"documents_with_citations", len(citationCounts),
		"allowed_documents", len(documentIDs),
		"selected", len(selected))

	return selected
}

// synthesize builds the grounded prompt and calls the language model
func (qe *QueryEngine) synthesize(ctx context.Context, question string, selected []StoredChunk, docCount int) (string, error) {
	var hierarchyBlocks []string
	seenHierarchy := make(map[string]bool)
	var contextBlocks []string

	for i, chunk := range selected {
		block := fmt.Sprintf("Document: %s\nType: %s\nLevel: %d\nPosition: %d of %d",
			defaultString(chunk.Name, "Unnamed"),
			defaultString(chunk.DocumentType, "Unknown"),
			chunk.Level,
			chunk.Hierarchy.DocPosition,
			chunk.Hierarchy.TotalDocsInSet)
		if !seenHierarchy[block] {
			seenHierarchy[block] = true
			hierarchyBlocks = append(hierarchyBlocks, block)
		}

		contextBlocks = append(contextBlocks, fmt.Sprintf("Document: %s\nSource %d:\n%s\n---",
			defaultString(chunk.Name, "Unnamed"), i+1, strings.TrimSpace(chunk.Text)))
	}

	prompt := fmt.Sprintf(`Answer the following question using information from %d selected documents: %s

Document Hierarchy Information:
%s

Context from Documents:
%s

IMPORTANT INSTRUCTIONS:
1. Your task is to analyze ALL provided documents equally.
2. For each quote, specify which document it comes from using the format: In [Document Name], [[exact quote]].
3. If multiple documents discuss the same topic, you MUST compare and contrast their content.
4. If you can only find relevant information in one document, explicitly state that other documents don't contain relevant information.
5. Keep quotes concise and specific.

Example response format:
In Agreement A, [[specific quote about topic]] while in Agreement B, [[related quote showing difference]].`,
		docCount, question,
		strings.Join(hierarchyBlocks, "\n\n"),
		strings.Join(contextBlocks, "\n"))

	return qe.completer.Complete(ctx, synthesisSystemPrompt, prompt)
}

// verifyCitations scans the answer for bracket-quoted spans and keeps
// only those that appear verbatim, after whitespace normalization, in
// a selected excerpt. Unverifiable quotes are dropped, never
// fabricated into the result.
func verifyCitations(answer string, selected []StoredChunk) []models.Citation {
	citations := []models.Citation{}
	seen := make(map[string]bool)

	for _, match := range quotePattern.FindAllStringSubmatch(answer, -1) {
		quote := normalizeWhitespace(strings.TrimSpace(match[1]))
		if quote == "" || seen[quote] {
			continue
		}

		for _, chunk := range selected {
			if strings.Contains(normalizeWhitespace(chunk.Text), quote) {
				seen[quote] = true
				citations = append(citations, models.Citation{
					DocumentID:       chunk.DocumentID,
					DocumentName:     chunk.Name,
					TextSnippet:      quote,
					PageNumber:       chunk.PageNumber,
					SectionReference: chunk.SectionReference,
				})
				break
			}
		}
	}

	return citations
}

func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func sourceNames(selected []StoredChunk) []string {
	var names []string
	seen := make(map[string]bool)
	for _, chunk := range selected {
		if chunk.Name != "" && !seen[chunk.Name] {
			seen[chunk.Name] = true
			names = append(names, chunk.Name)
		}
	}
	return names
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
