package services

import (
	"context"
	"math"
	"sort"
	"sync"

	"contract-qa-platform/models"
)

// MemoryStore is an in-process VectorStore for local development and
// tests. Search uses exact cosine similarity.
type MemoryStore struct {
	mu     sync.RWMutex
	points []memoryPoint
}

type memoryPoint struct {
	chunk  StoredChunk
	vector []float32
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (ms *MemoryStore) EnsureCollection(ctx context.Context) error {
	return nil
}

func (ms *MemoryStore) Upsert(ctx context.Context, chunks []models.TextChunk, vectors [][]float32) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for i, chunk := range chunks {
		stored := StoredChunk{
			ChunkID:          chunk.ChunkID,
			Text:             chunk.Text,
			PageNumber:       chunk.PageNumber,
			SectionID:        chunk.SectionID,
			SectionReference: chunk.SectionReference,
			LevelInDocument:  chunk.LevelInDocument,
			ParentID:         chunk.ParentID,
			Version:          payloadSchemaVersion,
		}
		if meta := chunk.Metadata; meta != nil {
			stored.DocumentID = meta.DocumentID
			stored.ContractSetID = meta.ContractSetID
			stored.Name = meta.Name
			stored.DocumentType = meta.DocumentType
			stored.Level = meta.Level
			stored.Hierarchy = meta.Hierarchy
		}

		var vector []float32
		if i < len(vectors) {
			vector = vectors[i]
		}
		ms.points = append(ms.points, memoryPoint{chunk: stored, vector: vector})
	}
	return nil
}

func (ms *MemoryStore) DeleteByDocument(ctx context.Context, documentID, contractSetID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	kept := ms.points[:0]
	for _, point := range ms.points {
		if point.chunk.DocumentID == documentID && point.chunk.ContractSetID == contractSetID {
			continue
		}
		kept = append(kept, point)
	}
	ms.points = kept
	return nil
}

func (ms *MemoryStore) Search(ctx context.Context, vector []float32, documentIDs []string, limit int) ([]StoredChunk, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	allowed := toSet(documentIDs)

	var results []StoredChunk
	for _, point := range ms.points {
		if len(allowed) > 0 && !allowed[point.chunk.DocumentID] {
			continue
		}
		chunk := point.chunk
		chunk.Score = cosineSimilarity(vector, point.vector)
		results = append(results, chunk)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (ms *MemoryStore) FetchByDocuments(ctx context.Context, documentIDs []string, limit int) ([]StoredChunk, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	allowed := toSet(documentIDs)

	var results []StoredChunk
	for _, point := range ms.points {
		if len(allowed) > 0 && !allowed[point.chunk.DocumentID] {
			continue
		}
		results = append(results, point.chunk)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// Count returns the number of stored points
func (ms *MemoryStore) Count() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.points)
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
