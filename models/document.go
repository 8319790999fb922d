package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DocumentType classifies a contract document within its set
const (
	DocTypeMaster      = "master"
	DocTypeAmendment   = "amendment"
	DocTypeSOW         = "sow"
	DocTypeChangeOrder = "change_order"
	DocTypeUnknown     = "unknown"
)

// LevelForType maps a document type to its hierarchy rank. Master
// agreements rank highest; unrecognized documents are treated as
// top-level rather than bottom so they are never buried below SOWs.
var LevelForType = map[string]int{
	DocTypeMaster:      1,
	DocTypeAmendment:   2,
	DocTypeSOW:         3,
	DocTypeChangeOrder: 4,
	DocTypeUnknown:     1,
}

// HierarchyContext lets downstream consumers reconstruct document
// ordering within a contract set without re-querying the registry.
type HierarchyContext struct {
	TotalDocsInSet int  `bson:"total_docs_in_set" json:"total_docs_in_set"`
	DocPosition    int  `bson:"doc_position" json:"doc_position"`
	HasChildren    bool `bson:"has_children" json:"has_children"`
}

// DocumentMetadata describes a classified document. It is shared by
// reference across all chunks produced from the same document.
type DocumentMetadata struct {
	DocumentID       string            `bson:"document_id" json:"document_id"`
	ContractSetID    string            `bson:"contract_set_id" json:"contract_set_id"`
	Name             string            `bson:"name" json:"name"`
	DocumentType     string            `bson:"document_type" json:"document_type"`
	Level            int               `bson:"level" json:"level"`
	Hierarchy        HierarchyContext  `bson:"hierarchy_context" json:"hierarchy_context"`
	ParentDocumentID string            `bson:"parent_document_id,omitempty" json:"parent_document_id,omitempty"` // reserved, never set by the pipeline
	EffectiveDate    string            `bson:"effective_date,omitempty" json:"effective_date,omitempty"`
	Version          string            `bson:"version,omitempty" json:"version,omitempty"`
	PDFMetadata      map[string]string `bson:"pdf_metadata,omitempty" json:"pdf_metadata,omitempty"`
}

// ChunkType distinguishes the two segmentation granularities
const (
	ChunkTypeSection = "section"
	ChunkTypeDetail  = "detail"
)

// TextChunk is an immutable text fragment produced by segmentation.
// Chunks are superseded, never updated: reprocessing a document
// deletes the old set before inserting the new one.
type TextChunk struct {
	ChunkID          string            `json:"chunk_id"`
	Text             string            `json:"text"`
	Metadata         *DocumentMetadata `json:"metadata"`
	PageNumber       int               `json:"page_number"`
	SectionID        string            `json:"section_id"`
	SectionReference string            `json:"section_reference,omitempty"`
	LevelInDocument  int               `json:"level_in_document"`
	ParentID         string            `json:"parent_id,omitempty"` // reserved, always unset
	ChunkType        string            `json:"chunk_type"`
	TokenCount       int               `json:"token_count,omitempty"`
}

// Citation is a verified quote attributed to a source document.
// TextSnippet is always a normalized substring of a retrieved chunk.
type Citation struct {
	DocumentID       string `json:"document_id"`
	DocumentName     string `json:"document_name"`
	TextSnippet      string `json:"text_snippet"`
	PageNumber       int    `json:"page_number,omitempty"`
	SectionReference string `json:"section_reference,omitempty"`
}

// QueryRequest is the transport-level query payload. DocumentIDs
// scopes retrieval to specific documents; when empty, ContractSetID
// expands to every completed document in that set.
type QueryRequest struct {
	Question      string   `json:"query" binding:"required"`
	DocumentIDs   []string `json:"document_ids"`
	ContractSetID string   `json:"contract_set_id"`
	TopK          int      `json:"top_k"`
}

// QueryResponse carries the synthesized answer and its grounding
type QueryResponse struct {
	Answer     string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	Confidence float64    `json:"confidence"`
	Sources    []string   `json:"sources,omitempty"`
}

// ContractSet groups related documents in the registry
type ContractSet struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SetID     string             `bson:"set_id" json:"set_id"`
	Name      string             `bson:"name" json:"name"`
	DocCount  int                `bson:"doc_count" json:"doc_count"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// Document is the registry record for an ingested file
type Document struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DocumentID       string             `bson:"document_id" json:"document_id"`
	ContractSetID    string             `bson:"contract_set_id" json:"contract_set_id"`
	Name             string             `bson:"name" json:"name"`
	Filename         string             `bson:"filename" json:"filename"`
	FilePath         string             `bson:"file_path" json:"file_path"`
	DocumentType     string             `bson:"document_type" json:"document_type"`
	Level            int                `bson:"level" json:"level"`
	EffectiveDate    string             `bson:"effective_date,omitempty" json:"effective_date,omitempty"`
	Version          string             `bson:"version,omitempty" json:"version,omitempty"`
	PageCount        int                `bson:"page_count" json:"page_count"`
	ChunkCount       int                `bson:"chunk_count" json:"chunk_count"`
	ExtractionMethod string             `bson:"extraction_method,omitempty" json:"extraction_method,omitempty"`
	PDFMetadata      map[string]string  `bson:"pdf_metadata,omitempty" json:"pdf_metadata,omitempty"`
	Status           string             `bson:"status" json:"status"` // pending, processing, completed, failed
	ErrorMessage     string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	ArchivedText     []byte             `bson:"archived_text,omitempty" json:"-"` // gzip-compressed extracted text
	TextCompressed   bool               `bson:"text_compressed" json:"-"`
	UploadedAt       time.Time          `bson:"uploaded_at" json:"uploaded_at"`
	ProcessedAt      *time.Time         `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// UploadResponse is returned after a successful upload
type UploadResponse struct {
	DocumentID    string `json:"document_id"`
	ContractSetID string `json:"contract_set_id"`
	Filename      string `json:"filename"`
	DocumentType  string `json:"document_type"`
	Level         int    `json:"level"`
	Status        string `json:"status"`
	ChunkCount    int    `json:"chunk_count,omitempty"`
	Message       string `json:"message"`
	TaskID        string `json:"task_id,omitempty"` // for async processing
}

// Processing status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Extraction method constants
const (
	ExtractionMethodNative = "native"
	ExtractionMethodOCR    = "ocr"
	ExtractionMethodDOCX   = "docx"
)
