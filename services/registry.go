package services

import (
	"context"
	"fmt"
	"time"

	"contract-qa-platform/models"
	"contract-qa-platform/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Registry tracks contract sets and their documents in MongoDB.
// The vector store holds the searchable chunks; the registry holds
// everything the listing and reprocessing endpoints need.
type Registry struct {
	sets      *mongo.Collection
	documents *mongo.Collection
}

func NewRegistry(client *mongo.Client, dbName string) *Registry {
	db := client.Database(dbName)
	return &Registry{
		sets:      db.Collection("contract_sets"),
		documents: db.Collection("documents"),
	}
}

// EnsureSet creates the contract set record if it does not exist yet
func (r *Registry) EnsureSet(ctx context.Context, setID, name string) error {
	now := time.Now()
	_, err := r.sets.UpdateOne(ctx,
		bson.M{"set_id": setID},
		bson.M{
			"$setOnInsert": bson.M{
				"set_id":     setID,
				"name":       name,
				"created_at": now,
			},
			"$set": bson.M{"updated_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert contract set: %w", err)
	}
	return nil
}

// CreateDocument records a newly uploaded document in pending state
func (r *Registry) CreateDocument(ctx context.Context, doc *models.Document) error {
	doc.Status = models.StatusPending
	doc.UploadedAt = time.Now()

	_, err := r.documents.UpdateOne(ctx,
		bson.M{"document_id": doc.DocumentID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to record document: %w", err)
	}
	return nil
}

// MarkProcessed stores the classification outcome and archives the
// extracted text compressed.
func (r *Registry) MarkProcessed(ctx context.Context, documentID string, result *IndexResult) error {
	archived, compressed, err := utils.CompressText(result.FullText)
	if err != nil {
		return fmt.Errorf("failed to archive extracted text: %w", err)
	}

	now := time.Now()
	update := bson.M{
		"status":            models.StatusCompleted,
		"document_type":     result.Metadata.DocumentType,
		"level":             result.Metadata.Level,
		"effective_date":    result.Metadata.EffectiveDate,
		"version":           result.Metadata.Version,
		"page_count":        result.PageCount,
		"chunk_count":       result.ChunkCount,
		"extraction_method": result.ExtractionMethod,
		"archived_text":     archived,
		"text_compressed":   compressed,
		"processed_at":      now,
		"error_message":     "",
	}
	if len(result.Metadata.PDFMetadata) > 0 {
		update["pdf_metadata"] = result.Metadata.PDFMetadata
	}

	_, err = r.documents.UpdateOne(ctx,
		bson.M{"document_id": documentID},
		bson.M{"$set": update},
	)
	if err != nil {
		return fmt.Errorf("failed to mark document processed: %w", err)
	}

	// Keep the parent set's document count current
	setID := result.Metadata.ContractSetID
	count, err := r.documents.CountDocuments(ctx, bson.M{"contract_set_id": setID})
	if err == nil {
		_, _ = r.sets.UpdateOne(ctx,
			bson.M{"set_id": setID},
			bson.M{"$set": bson.M{"doc_count": count, "updated_at": now}},
		)
	}
	return nil
}

// MarkFailed records a processing failure
func (r *Registry) MarkFailed(ctx context.Context, documentID string, processErr error) error {
	_, err := r.documents.UpdateOne(ctx,
		bson.M{"document_id": documentID},
		bson.M{"$set": bson.M{
			"status":        models.StatusFailed,
			"error_message": processErr.Error(),
		}},
	)
	return err
}

// MarkProcessing flags a document as in flight
func (r *Registry) MarkProcessing(ctx context.Context, documentID string) error {
	_, err := r.documents.UpdateOne(ctx,
		bson.M{"document_id": documentID},
		bson.M{"$set": bson.M{"status": models.StatusProcessing}},
	)
	return err
}

// ListSets returns all contract sets, newest first
func (r *Registry) ListSets(ctx context.Context) ([]models.ContractSet, error) {
	cursor, err := r.sets.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list contract sets: %w", err)
	}
	defer cursor.Close(ctx)

	var sets []models.ContractSet
	if err := cursor.All(ctx, &sets); err != nil {
		return nil, fmt.Errorf("failed to decode contract sets: %w", err)
	}
	return sets, nil
}

// ListDocuments returns all documents of one contract set in
// hierarchy order (level, then position within the set).
func (r *Registry) ListDocuments(ctx context.Context, setID string) ([]models.Document, error) {
	cursor, err := r.documents.Find(ctx,
		bson.M{"contract_set_id": setID},
		options.Find().SetSort(bson.D{{Key: "level", Value: 1}, {Key: "uploaded_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	return docs, nil
}

// GetDocument fetches one registry record
func (r *Registry) GetDocument(ctx context.Context, documentID string) (*models.Document, error) {
	var doc models.Document
	err := r.documents.FindOne(ctx, bson.M{"document_id": documentID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch document: %w", err)
	}
	return &doc, nil
}

// GetDocumentText restores the archived extracted text
func (r *Registry) GetDocumentText(ctx context.Context, documentID string) (string, error) {
	doc, err := r.GetDocument(ctx, documentID)
	if err != nil {
		return "", err
	}
	if doc == nil {
		return "", fmt.Errorf("document not found: %s", documentID)
	}
	return utils.DecompressText(doc.ArchivedText, doc.TextCompressed)
}

// DeleteDocument removes the registry record and keeps the parent
// set's document count current.
func (r *Registry) DeleteDocument(ctx context.Context, documentID, contractSetID string) error {
	_, err := r.documents.DeleteOne(ctx, bson.M{"document_id": documentID})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	count, err := r.documents.CountDocuments(ctx, bson.M{"contract_set_id": contractSetID})
	if err == nil {
		_, _ = r.sets.UpdateOne(ctx,
			bson.M{"set_id": contractSetID},
			bson.M{"$set": bson.M{"doc_count": count, "updated_at": time.Now()}},
		)
	}
	return nil
}
