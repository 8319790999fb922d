package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"contract-qa-platform/internal/logger"
	"contract-qa-platform/internal/telemetry"
	"contract-qa-platform/models"
	"contract-qa-platform/services"
)

const TaskProcessDocument = "document:process"

type DocumentProcessPayload struct {
	DocumentID    string `json:"document_id"`
	ContractSetID string `json:"contract_set_id"`
	DocumentName  string `json:"document_name"`
	FilePath      string `json:"file_path"`
	Cleanup       bool   `json:"cleanup"`
}

// NewDocumentProcessTask enqueues extraction, classification, and
// indexing for one uploaded file.
func NewDocumentProcessTask(payload DocumentProcessPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskProcessDocument,
		data,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// TaskProcessor runs queued document processing jobs
type TaskProcessor struct {
	indexer  *services.DocumentIndexer
	registry *services.Registry
	metrics  *telemetry.Metrics
}

func NewTaskProcessor(indexer *services.DocumentIndexer, registry *services.Registry, metrics *telemetry.Metrics) *TaskProcessor {
	return &TaskProcessor{
		indexer:  indexer,
		registry: registry,
		metrics:  metrics,
	}
}

// ProcessDocument handles one document:process task. Temp-file
// cleanup errors are logged and swallowed.
func (p *TaskProcessor) ProcessDocument(ctx context.Context, t *asynq.Task) error {
	var payload DocumentProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing document",
		"document_id", payload.DocumentID,
		"contract_set_id", payload.ContractSetID)

	if err := p.registry.MarkProcessing(ctx, payload.DocumentID); err != nil {
		logger.Warn("Failed to mark document processing", "document_id", payload.DocumentID, "error", err)
	}

	start := time.Now()
	result, err := p.indexer.IndexDocument(ctx, payload.FilePath, payload.ContractSetID, payload.DocumentName, models.HierarchyContext{})
	if err != nil {
		if markErr := p.registry.MarkFailed(ctx, payload.DocumentID, err); markErr != nil {
			logger.Warn("Failed to record processing failure", "document_id", payload.DocumentID, "error", markErr)
		}
		if p.metrics != nil {
			p.metrics.RecordDocumentProcessing(time.Since(start).Seconds(), 0, "failed")
		}
		return err
	}
	if p.metrics != nil {
		p.metrics.RecordDocumentProcessing(time.Since(start).Seconds(), result.ChunkCount, "completed")
	}

	if err := p.registry.MarkProcessed(ctx, payload.DocumentID, result); err != nil {
		return err
	}

	if payload.Cleanup {
		if err := os.Remove(payload.FilePath); err != nil {
			logger.Warn("Failed to remove temp file", "path", payload.FilePath, "error", err)
		}
	}

	logger.Info("Document processed successfully",
		"document_id", payload.DocumentID,
		"chunks", result.ChunkCount)
	return nil
}
