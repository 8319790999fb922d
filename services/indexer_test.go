package services

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contract-qa-platform/internal/config"
	"contract-qa-platform/models"
)

// writeTestDOCX fabricates a minimal Word archive with one paragraph
// per line of body text.
func writeTestDOCX(t *testing.T, dir, name string, lines []string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	doc, err := w.Create("word/document.xml")
	require.NoError(t, err)

	body := ""
	for _, line := range lines {
		body += fmt.Sprintf("<w:p><w:r><w:t>%s</w:t></w:r></w:p>", line)
	}
	_, err = doc.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return path
}

func newTestIndexer(t *testing.T, store VectorStore) (*DocumentIndexer, *fakeEmbedder) {
	t.Helper()
	processor, err := NewDocumentProcessor(&config.Config{
		ChunkSize:    40,
		ChunkOverlap: 8,
	})
	require.NoError(t, err)

	embedder := &fakeEmbedder{}
	indexer, err := NewDocumentIndexer(&config.Config{}, processor, embedder, store)
	require.NoError(t, err)
	return indexer, embedder
}

func TestIndexDocumentStoresSectionAndDetailChunks(t *testing.T) {
	dir := t.TempDir()
	path := writeTestDOCX(t, dir, "msa_acme.docx", []string{
		"Master Services Agreement",
		"Version: 2.0",
		longText(100),
	})

	store := NewMemoryStore()
	indexer, _ := newTestIndexer(t, store)

	result, err := indexer.IndexDocument(context.Background(), path, "set-1", "msa_acme", models.HierarchyContext{})
	require.NoError(t, err)

	assert.Equal(t, "msa_acme", result.Metadata.DocumentID)
	assert.Equal(t, models.DocTypeMaster, result.Metadata.DocumentType)
	assert.Equal(t, 1, result.Metadata.Level)
	assert.Equal(t, "2.0", result.Metadata.Version)
	assert.Greater(t, result.ChunkCount, 1, "one section plus its detail chunks")
	assert.Equal(t, result.ChunkCount, store.Count())

	// A solo document gets a default hierarchy
	assert.Equal(t, 1, result.Metadata.Hierarchy.TotalDocsInSet)
	assert.Equal(t, 1, result.Metadata.Hierarchy.DocPosition)
}

// Reindexing the same document replaces its points instead of
// accumulating duplicates.
func TestIndexDocumentReplacesOnReindex(t *testing.T) {
	dir := t.TempDir()
	path := writeTestDOCX(t, dir, "sow_alpha.docx", []string{"Statement of Work", longText(60)})

	store := NewMemoryStore()
	indexer, _ := newTestIndexer(t, store)

	_, err := indexer.IndexDocument(context.Background(), path, "set-1", "sow_alpha", models.HierarchyContext{})
	require.NoError(t, err)
	first := store.Count()

	_, err = indexer.IndexDocument(context.Background(), path, "set-1", "sow_alpha", models.HierarchyContext{})
	require.NoError(t, err)

	assert.Equal(t, first, store.Count())
}

// Master-like documents are indexed first and flagged as parents;
// positions keep incrementing across both passes.
func TestIndexContractSetOrdersMastersFirst(t *testing.T) {
	dir := t.TempDir()
	files := []SetFile{
		{Path: writeTestDOCX(t, dir, "sow_alpha.docx", []string{"Statement of Work", longText(50)}), Name: "sow_alpha"},
		{Path: writeTestDOCX(t, dir, "msa_acme.docx", []string{"Master Services Agreement", longText(50)}), Name: "msa_acme"},
		{Path: writeTestDOCX(t, dir, "change_order_1.docx", []string{"Change Order No. 1", longText(50)}), Name: "change_order_1"},
	}

	store := NewMemoryStore()
	indexer, _ := newTestIndexer(t, store)

	results, err := indexer.IndexContractSet(context.Background(), files, "set-1")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "msa_acme", results[0].Metadata.DocumentID)
	assert.True(t, results[0].Metadata.Hierarchy.HasChildren)
	assert.Equal(t, 1, results[0].Metadata.Hierarchy.DocPosition)

	for i, result := range results {
		assert.Equal(t, 3, result.Metadata.Hierarchy.TotalDocsInSet)
		assert.Equal(t, i+1, result.Metadata.Hierarchy.DocPosition)
		if i > 0 {
			assert.False(t, result.Metadata.Hierarchy.HasChildren)
		}
	}
}

func TestIndexChunksBatchesEmbeddings(t *testing.T) {
	store := NewMemoryStore()
	indexer, embedder := newTestIndexer(t, store)

	metadata := &models.DocumentMetadata{DocumentID: "doc", ContractSetID: "set-1", Name: "doc"}
	chunks := make([]models.TextChunk, 250)
	for i := range chunks {
		chunks[i] = models.TextChunk{
			ChunkID:  fmt.Sprintf("c%d", i),
			Text:     fmt.Sprintf("chunk %d", i),
			Metadata: metadata,
		}
	}

	require.NoError(t, indexer.indexChunks(context.Background(), chunks))

	assert.Equal(t, []int{100, 100, 50}, embedder.batchSizes)
	assert.Equal(t, 250, store.Count())
}

func TestFileStem(t *testing.T) {
	assert.Equal(t, "msa_acme", fileStem("/tmp/uploads/msa_acme.pdf"))
	assert.Equal(t, "sow_alpha", fileStem("sow_alpha.docx"))
	assert.Equal(t, "noext", fileStem("noext"))
}

func TestIsMasterLike(t *testing.T) {
	assert.True(t, isMasterLike("MSA_Acme"))
	assert.True(t, isMasterLike("services_agreement"))
	assert.False(t, isMasterLike("sow_alpha"))
	assert.False(t, isMasterLike("change_order_1"))
}

func TestDeleteDocumentRemovesStoredChunks(t *testing.T) {
	dir := t.TempDir()
	path := writeTestDOCX(t, dir, "msa_acme.docx", []string{
		"Master Services Agreement between Acme and Supplier.",
		"Payment is due within thirty days of invoice.",
	})

	store := NewMemoryStore()
	indexer, _ := newTestIndexer(t, store)

	result, err := indexer.IndexDocument(context.Background(), path, "set-1", "msa_acme", models.HierarchyContext{})
	require.NoError(t, err)
	require.Positive(t, store.Count())
	assert.Equal(t, models.ExtractionMethodDOCX, result.ExtractionMethod)

	require.NoError(t, indexer.DeleteDocument(context.Background(), result.Metadata.DocumentID, "set-1"))
	assert.Zero(t, store.Count())
}
