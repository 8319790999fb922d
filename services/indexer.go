package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"contract-qa-platform/internal/ai"
	"contract-qa-platform/internal/config"
	"contract-qa-platform/internal/logger"
	"contract-qa-platform/models"
)

// embedBatchSize bounds one embedding API call
const embedBatchSize = 100

// masterLikeTerms marks documents processed first when indexing a
// whole contract set, so their position precedes their children.
var masterLikeTerms = []string{"master", "msa", "agreement"}

// SetFile is one (path, display name) entry of a contract set upload
type SetFile struct {
	Path string
	Name string
}

// IndexResult reports what one indexing run produced
type IndexResult struct {
	Metadata         *models.DocumentMetadata
	FullText         string
	PageCount        int
	ChunkCount       int
	ExtractionMethod string
}

// DocumentIndexer embeds processed chunks and persists them in the
// vector store. Reindexing is a replace: existing points for the
// (document_id, contract_set_id) pair are deleted before insert.
type DocumentIndexer struct {
	processor *DocumentProcessor
	embedder  ai.Embedder
	store     VectorStore
}

func NewDocumentIndexer(cfg *config.Config, processor *DocumentProcessor, embedder ai.Embedder, store VectorStore) (*DocumentIndexer, error) {
	if err := store.EnsureCollection(context.Background()); err != nil {
		return nil, err
	}

	return &DocumentIndexer{
		processor: processor,
		embedder:  embedder,
		store:     store,
	}, nil
}

// IndexDocument processes and indexes one file. A failed pre-delete
// is logged and swallowed; fresh data availability wins over strict
// exactly-once replacement.
func (di *DocumentIndexer) IndexDocument(ctx context.Context, filePath, contractSetID, documentName string, hierarchy models.HierarchyContext) (*IndexResult, error) {
	documentID := fileStem(filePath)

	if err := di.store.DeleteByDocument(ctx, documentID, contractSetID); err != nil {
		logger.Warn("Error deleting existing document chunks", "document_id", documentID, "error", err)
	}

	if hierarchy.TotalDocsInSet == 0 {
		hierarchy = models.HierarchyContext{TotalDocsInSet: 1, DocPosition: 1}
	}

	metadata := &models.DocumentMetadata{
		DocumentID:    documentID,
		ContractSetID: contractSetID,
		Name:          documentName,
		Hierarchy:     hierarchy,
	}

	processed, err := di.processor.ProcessDocument(ctx, filePath, metadata)
	if err != nil {
		return nil, err
	}

	chunks := append([]models.TextChunk{}, processed.SectionChunks...)
	chunks = append(chunks, processed.DetailChunks...)

	if err := di.indexChunks(ctx, chunks); err != nil {
		return nil, err
	}

	return &IndexResult{
		Metadata:         metadata,
		FullText:         processed.FullText,
		PageCount:        processed.PageCount,
		ChunkCount:       len(chunks),
		ExtractionMethod: processed.ExtractionMethod,
	}, nil
}

// IndexContractSet indexes related files as one set in two passes:
// master-like documents first with has_children set, then the rest.
// Positions increment across both passes.
func (di *DocumentIndexer) IndexContractSet(ctx context.Context, files []SetFile, contractSetID string) ([]*IndexResult, error) {
	totalDocs := len(files)
	results := make([]*IndexResult, 0, totalDocs)
	docPosition := 1

	for _, pass := range []bool{true, false} {
		for _, file := range files {
			if isMasterLike(file.Name) != pass {
				continue
			}

			result, err := di.IndexDocument(ctx, file.Path, contractSetID, file.Name, models.HierarchyContext{
				TotalDocsInSet: totalDocs,
				DocPosition:    docPosition,
				HasChildren:    pass,
			})
			if err != nil {
				return results, fmt.Errorf("indexing %s: %w", file.Name, err)
			}
			results = append(results, result)
			docPosition++
		}
	}

	return results, nil
}

// DeleteDocument removes all stored chunks for a document
func (di *DocumentIndexer) DeleteDocument(ctx context.Context, documentID, contractSetID string) error {
	return di.store.DeleteByDocument(ctx, documentID, contractSetID)
}

func (di *DocumentIndexer) indexChunks(ctx context.Context, chunks []models.TextChunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		vectors, err := di.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return err
		}

		if err := di.store.Upsert(ctx, batch, vectors); err != nil {
			return err
		}
	}

	logger.Debug("Indexed chunks", "count", len(chunks))
	return nil
}

func isMasterLike(name string) bool {
	return containsAny(strings.ToLower(name), masterLikeTerms)
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
