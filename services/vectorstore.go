package services

import (
	"context"

	"contract-qa-platform/models"
)

// payloadSchemaVersion marks the stored payload shape. Bumped only
// when the flattened field set changes incompatibly.
const payloadSchemaVersion = "1"

// StoredChunk is a chunk as read back from the vector store, with the
// full flattened payload and the search score when applicable.
type StoredChunk struct {
	ChunkID          string
	Text             string
	DocumentID       string
	ContractSetID    string
	Name             string
	DocumentType     string
	Level            int
	PageNumber       int
	SectionID        string
	SectionReference string
	LevelInDocument  int
	ParentID         string
	Version          string
	Hierarchy        models.HierarchyContext
	Score            float64
}

// VectorStore persists embedded chunks and serves filtered similarity
// search. The delete-then-insert reindex pattern is not transactional:
// a concurrent query during reindexing may see a partial set.
type VectorStore interface {
	// EnsureCollection bootstraps the collection and its secondary
	// indexes. Idempotent.
	EnsureCollection(ctx context.Context) error

	// Upsert writes one point per chunk. vectors[i] embeds chunks[i].
	Upsert(ctx context.Context, chunks []models.TextChunk, vectors [][]float32) error

	// DeleteByDocument removes all points for one document within a set
	DeleteByDocument(ctx context.Context, documentID, contractSetID string) error

	// Search returns the closest chunks restricted to the given
	// document ids, in score order. No score threshold is applied.
	Search(ctx context.Context, vector []float32, documentIDs []string, limit int) ([]StoredChunk, error)

	// FetchByDocuments returns stored chunks for the given documents
	// without similarity ranking, for metadata-only answers.
	FetchByDocuments(ctx context.Context, documentIDs []string, limit int) ([]StoredChunk, error)
}
