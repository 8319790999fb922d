package services

import (
	"context"
	"fmt"

	"contract-qa-platform/internal/config"
	"contract-qa-platform/internal/logger"
	"contract-qa-platform/models"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const qdrantMaxMessageSize = 50 * 1024 * 1024 // 50MB for large documents

// QdrantStore implements VectorStore over the Qdrant gRPC API
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	vectorSize uint64
}

func NewQdrantStore(cfg *config.Config) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		UseTLS: cfg.QdrantUseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(qdrantMaxMessageSize),
				grpc.MaxCallSendMsgSize(qdrantMaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	return &QdrantStore{
		client:     client,
		collection: cfg.QdrantCollection,
		vectorSize: uint64(cfg.EmbeddingDimensions),
	}, nil
}

// EnsureCollection creates the collection and keyword indexes on the
// filter fields if they do not exist yet.
func (qs *QdrantStore) EnsureCollection(ctx context.Context) error {
	_, err := qs.client.GetCollectionInfo(ctx, qs.collection)
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); !ok || st.Code() != grpccodes.NotFound {
		return fmt.Errorf("vector store error: checking collection %s: %w", qs.collection, err)
	}

	err = qs.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: qs.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     qs.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vector store error: creating collection %s: %w", qs.collection, err)
	}

	for _, field := range []string{"document_id", "contract_set_id"} {
		_, err = qs.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: qs.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("vector store error: indexing field %s: %w", field, err)
		}
	}

	logger.Info("Qdrant collection created",
		"collection", qs.collection,
		"vector_size", qs.vectorSize)
	return nil
}

func (qs *QdrantStore) Upsert(ctx context.Context, chunks []models.TextChunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("vector store error: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.New().String()),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: flattenChunkPayload(chunk),
		}
	}

	_, err := qs.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: qs.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("vector store error: upserting %d points: %w", len(points), err)
	}
	return nil
}

func (qs *QdrantStore) DeleteByDocument(ctx context.Context, documentID, contractSetID string) error {
	_, err := qs.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: qs.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						keywordCondition("document_id", documentID),
						keywordCondition("contract_set_id", contractSetID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vector store error: deleting points for document %s: %w", documentID, err)
	}
	return nil
}

func (qs *QdrantStore) Search(ctx context.Context, vector []float32, documentIDs []string, limit int) ([]StoredChunk, error) {
	results, err := qs.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: qs.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         documentFilter(documentIDs),
	})
	if err != nil {
		return nil, fmt.Errorf("vector store error: search failed: %w", err)
	}

	chunks := make([]StoredChunk, len(results))
	for i, point := range results {
		chunks[i] = unflattenChunkPayload(point.Payload)
		chunks[i].Score = float64(point.Score)
	}
	return chunks, nil
}

func (qs *QdrantStore) FetchByDocuments(ctx context.Context, documentIDs []string, limit int) ([]StoredChunk, error) {
	points, err := qs.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: qs.collection,
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         documentFilter(documentIDs),
	})
	if err != nil {
		return nil, fmt.Errorf("vector store error: scroll failed: %w", err)
	}

	chunks := make([]StoredChunk, len(points))
	for i, point := range points {
		chunks[i] = unflattenChunkPayload(point.Payload)
	}
	return chunks, nil
}

// Close the underlying gRPC connection
func (qs *QdrantStore) Close() error {
	return qs.client.Close()
}

func keywordCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func documentFilter(documentIDs []string) *qdrant.Filter {
	if len(documentIDs) == 0 {
		return nil
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: "document_id",
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keywords{
								Keywords: &qdrant.RepeatedStrings{Strings: documentIDs},
							},
						},
					},
				},
			},
		},
	}
}

// flattenChunkPayload spreads the chunk and its document metadata into
// the stored payload shape. hierarchy_context stays nested.
func flattenChunkPayload(chunk models.TextChunk) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		"text":              stringValue(chunk.Text),
		"chunk_id":          stringValue(chunk.ChunkID),
		"page_number":       intValue(chunk.PageNumber),
		"section_id":        stringValue(chunk.SectionID),
		"section_reference": stringValue(chunk.SectionReference),
		"level_in_document": intValue(chunk.LevelInDocument),
		"parent_id":         stringValue(chunk.ParentID),
		"version":           stringValue(payloadSchemaVersion),
	}

	if meta := chunk.Metadata; meta != nil {
		payload["document_id"] = stringValue(meta.DocumentID)
		payload["contract_set_id"] = stringValue(meta.ContractSetID)
		payload["name"] = stringValue(meta.Name)
		payload["document_type"] = stringValue(meta.DocumentType)
		payload["level"] = intValue(meta.Level)
		payload["hierarchy_context"] = &qdrant.Value{
			Kind: &qdrant.Value_StructValue{
				StructValue: &qdrant.Struct{
					Fields: map[string]*qdrant.Value{
						"total_docs_in_set": intValue(meta.Hierarchy.TotalDocsInSet),
						"doc_position":      intValue(meta.Hierarchy.DocPosition),
						"has_children":      boolValue(meta.Hierarchy.HasChildren),
					},
				},
			},
		}
	}

	return payload
}

func unflattenChunkPayload(payload map[string]*qdrant.Value) StoredChunk {
	chunk := StoredChunk{
		Text:             payloadString(payload, "text"),
		ChunkID:          payloadString(payload, "chunk_id"),
		DocumentID:       payloadString(payload, "document_id"),
		ContractSetID:    payloadString(payload, "contract_set_id"),
		Name:             payloadString(payload, "name"),
		DocumentType:     payloadString(payload, "document_type"),
		Level:            payloadInt(payload, "level"),
		PageNumber:       payloadInt(payload, "page_number"),
		SectionID:        payloadString(payload, "section_id"),
		SectionReference: payloadString(payload, "section_reference"),
		LevelInDocument:  payloadInt(payload, "level_in_document"),
		ParentID:         payloadString(payload, "parent_id"),
		Version:          payloadString(payload, "version"),
	}

	if v, ok := payload["hierarchy_context"]; ok {
		if sv, ok := v.Kind.(*qdrant.Value_StructValue); ok && sv.StructValue != nil {
			fields := sv.StructValue.Fields
			chunk.Hierarchy = models.HierarchyContext{
				TotalDocsInSet: payloadInt(fields, "total_docs_in_set"),
				DocPosition:    payloadInt(fields, "doc_position"),
				HasChildren:    payloadBool(fields, "has_children"),
			}
		}
	}

	return chunk
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func intValue(i int) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(i)}}
}

func boolValue(b bool) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: b}}
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		if sv, ok := v.Kind.(*qdrant.Value_StringValue); ok {
			return sv.StringValue
		}
	}
	return ""
}

func payloadInt(payload map[string]*qdrant.Value, key string) int {
	if v, ok := payload[key]; ok {
		if iv, ok := v.Kind.(*qdrant.Value_IntegerValue); ok {
			return int(iv.IntegerValue)
		}
	}
	return 0
}

func payloadBool(payload map[string]*qdrant.Value, key string) bool {
	if v, ok := payload[key]; ok {
		if bv, ok := v.Kind.(*qdrant.Value_BoolValue); ok {
			return bv.BoolValue
		}
	}
	return false
}
