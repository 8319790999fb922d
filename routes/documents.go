package routes

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"contract-qa-platform/internal/config"
	"contract-qa-platform/internal/logger"
	"contract-qa-platform/internal/queue"
	"contract-qa-platform/models"
	"contract-qa-platform/services"
	"contract-qa-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
}

// SetupDocumentRoutes registers upload, ingestion, and registry
// browsing endpoints.
func SetupDocumentRoutes(router *gin.Engine, cfg *config.Config, registry *services.Registry, indexer *services.DocumentIndexer, queueClient *asynq.Client) {
	// POST /upload ingests a related set of contract documents in one
	// request. Small sets are processed synchronously with full
	// hierarchy context; sets containing any file over the sync limit
	// are queued per document and processed in the background.
	router.POST("/upload", func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithPayloadTooLarge(c, "Upload exceeds maximum size")
			return
		}

		setName := strings.TrimSpace(c.PostForm("set_name"))
		if setName == "" {
			utils.RespondWithBadRequest(c, "set_name is required", nil)
			return
		}

		form, err := c.MultipartForm()
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid multipart form", gin.H{"error": err.Error()})
			return
		}
		files := form.File["files"]
		if len(files) == 0 {
			utils.RespondWithBadRequest(c, "No files provided", nil)
			return
		}

		for _, header := range files {
			if err := validateUpload(header, cfg.MaxFileSize); err != nil {
				utils.RespondWithUnsupportedMedia(c, fmt.Sprintf("%s: %v", header.Filename, err))
				return
			}
		}

		setID := uuid.NewString()
		ctx := c.Request.Context()
		if err := registry.EnsureSet(ctx, setID, setName); err != nil {
			utils.RespondWithInternalError(c, "Failed to create contract set", gin.H{"error": err.Error()})
			return
		}

		storageDir := filepath.Join(cfg.FileStorageDir, "documents", setID)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			utils.RespondWithInternalError(c, "Failed to create storage directory", nil)
			return
		}

		async := false
		setFiles := make([]services.SetFile, 0, len(files))
		for _, header := range files {
			stem := fileNameStem(header.Filename)
			destPath := filepath.Join(storageDir, stem+strings.ToLower(filepath.Ext(header.Filename)))

			if err := saveUploadedFile(header, destPath, cfg.MaxFileSize); err != nil {
				utils.RespondWithInternalError(c, fmt.Sprintf("Failed to save %s", header.Filename), nil)
				return
			}

			if err := registry.CreateDocument(ctx, &models.Document{
				DocumentID:    stem,
				ContractSetID: setID,
				Name:          stem,
				Filename:      header.Filename,
				FilePath:      destPath,
				Status:        models.StatusPending,
				UploadedAt:    time.Now(),
			}); err != nil {
				utils.RespondWithInternalError(c, "Failed to record document", gin.H{"error": err.Error()})
				return
			}

			if header.Size > cfg.SyncProcessingLimit {
				async = true
			}
			setFiles = append(setFiles, services.SetFile{Path: destPath, Name: stem})
		}

		if async {
			responses, err := enqueueSet(queueClient, setFiles, setID)
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to enqueue processing", gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusAccepted, gin.H{
				"contract_set_id": setID,
				"set_name":        setName,
				"documents":       responses,
				"message":         "Upload accepted for background processing",
			})
			return
		}

		results, err := indexer.IndexContractSet(ctx, setFiles, setID)
		for _, result := range results {
			if markErr := registry.MarkProcessed(ctx, result.Metadata.DocumentID, result); markErr != nil {
				logger.Error("Failed to record processed document", "document_id", result.Metadata.DocumentID, "error", markErr)
			}
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Document processing failed", gin.H{"error": err.Error()})
			return
		}

		responses := make([]models.UploadResponse, 0, len(results))
		for _, result := range results {
			responses = append(responses, models.UploadResponse{
				DocumentID:    result.Metadata.DocumentID,
				ContractSetID: setID,
				Filename:      result.Metadata.Name,
				DocumentType:  result.Metadata.DocumentType,
				Level:         result.Metadata.Level,
				Status:        models.StatusCompleted,
				ChunkCount:    result.ChunkCount,
				Message:       "Document processed and indexed",
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"contract_set_id": setID,
			"set_name":        setName,
			"documents":       responses,
		})
	})

	// POST /ingest processes a single file with caller-supplied
	// placement instead of whole-set hierarchy inference.
	router.POST("/ingest", func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithPayloadTooLarge(c, "Upload exceeds maximum size")
			return
		}

		header, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file provided", nil)
			return
		}
		if err := validateUpload(header, cfg.MaxFileSize); err != nil {
			utils.RespondWithUnsupportedMedia(c, err.Error())
			return
		}

		setID := strings.TrimSpace(c.PostForm("contract_set_id"))
		if setID == "" {
			setID = uuid.NewString()
		}
		stem := fileNameStem(header.Filename)
		documentName := strings.TrimSpace(c.PostForm("document_name"))
		if documentName == "" {
			documentName = stem
		}

		ctx := c.Request.Context()
		if err := registry.EnsureSet(ctx, setID, setID); err != nil {
			utils.RespondWithInternalError(c, "Failed to create contract set", gin.H{"error": err.Error()})
			return
		}

		storageDir := filepath.Join(cfg.FileStorageDir, "documents", setID)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			utils.RespondWithInternalError(c, "Failed to create storage directory", nil)
			return
		}
		destPath := filepath.Join(storageDir, stem+strings.ToLower(filepath.Ext(header.Filename)))
		if err := saveUploadedFile(header, destPath, cfg.MaxFileSize); err != nil {
			utils.RespondWithInternalError(c, "Failed to save file", nil)
			return
		}

		if err := registry.CreateDocument(ctx, &models.Document{
			DocumentID:    stem,
			ContractSetID: setID,
			Name:          documentName,
			Filename:      header.Filename,
			FilePath:      destPath,
			Status:        models.StatusProcessing,
			UploadedAt:    time.Now(),
		}); err != nil {
			utils.RespondWithInternalError(c, "Failed to record document", gin.H{"error": err.Error()})
			return
		}

		result, err := indexer.IndexDocument(ctx, destPath, setID, documentName, models.HierarchyContext{})
		if err != nil {
			if markErr := registry.MarkFailed(ctx, stem, err); markErr != nil {
				logger.Error("Failed to record processing failure", "document_id", stem, "error", markErr)
			}
			utils.RespondWithInternalError(c, "Document processing failed", gin.H{"error": err.Error()})
			return
		}
		if err := registry.MarkProcessed(ctx, stem, result); err != nil {
			logger.Error("Failed to record processed document", "document_id", stem, "error", err)
		}

		c.JSON(http.StatusOK, models.UploadResponse{
			DocumentID:    result.Metadata.DocumentID,
			ContractSetID: setID,
			Filename:      header.Filename,
			DocumentType:  result.Metadata.DocumentType,
			Level:         result.Metadata.Level,
			Status:        models.StatusCompleted,
			ChunkCount:    result.ChunkCount,
			Message:       "Document processed and indexed",
		})
	})

	router.GET("/contract-sets", func(c *gin.Context) {
		sets, err := registry.ListSets(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list contract sets", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"contract_sets": sets,
			"count":         len(sets),
		})
	})

	router.GET("/contract-sets/:setID/documents", func(c *gin.Context) {
		docs, err := registry.ListDocuments(c.Request.Context(), c.Param("setID"))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list documents", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"documents": docs,
			"count":     len(docs),
		})
	})

	router.GET("/documents/:documentID", func(c *gin.Context) {
		doc, err := registry.GetDocument(c.Request.Context(), c.Param("documentID"))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to retrieve document", gin.H{"error": err.Error()})
			return
		}
		if doc == nil {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	// Serves the stored original file for in-browser preview.
	router.GET("/documents/:documentID/content", func(c *gin.Context) {
		doc, err := registry.GetDocument(c.Request.Context(), c.Param("documentID"))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to retrieve document", gin.H{"error": err.Error()})
			return
		}
		if doc == nil {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		if _, err := os.Stat(doc.FilePath); err != nil {
			utils.RespondWithNotFound(c, "Stored file is no longer available")
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.Filename))
		c.File(doc.FilePath)
	})

	router.GET("/documents/:documentID/text", func(c *gin.Context) {
		ctx := c.Request.Context()
		doc, err := registry.GetDocument(ctx, c.Param("documentID"))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to retrieve document", gin.H{"error": err.Error()})
			return
		}
		if doc == nil {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}

		text, err := registry.GetDocumentText(ctx, doc.DocumentID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to decode archived text", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"document_id": doc.DocumentID,
			"name":        doc.Name,
			"page_count":  doc.PageCount,
			"text":        text,
		})
	})

	// Removes the document everywhere: vector store points, registry
	// record, and the stored original. File cleanup failures are
	// logged and swallowed.
	router.DELETE("/documents/:documentID", func(c *gin.Context) {
		ctx := c.Request.Context()
		doc, err := registry.GetDocument(ctx, c.Param("documentID"))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to retrieve document", gin.H{"error": err.Error()})
			return
		}
		if doc == nil {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}

		if err := indexer.DeleteDocument(ctx, doc.DocumentID, doc.ContractSetID); err != nil {
			utils.RespondWithInternalError(c, "Failed to delete stored chunks", gin.H{"error": err.Error()})
			return
		}
		if err := registry.DeleteDocument(ctx, doc.DocumentID, doc.ContractSetID); err != nil {
			utils.RespondWithInternalError(c, "Failed to delete document record", gin.H{"error": err.Error()})
			return
		}
		if doc.FilePath != "" {
			if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
				logger.Warn("Failed to remove stored file", "path", doc.FilePath, "error", err)
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"document_id": doc.DocumentID,
			"message":     "Document deleted",
		})
	})
}

// enqueueSet queues one processing task per staged file and returns
// the pending responses for the upload reply.
func enqueueSet(queueClient *asynq.Client, files []services.SetFile, setID string) ([]models.UploadResponse, error) {
	responses := make([]models.UploadResponse, 0, len(files))
	for _, file := range files {
		task, err := queue.NewDocumentProcessTask(queue.DocumentProcessPayload{
			DocumentID:    file.Name,
			ContractSetID: setID,
			DocumentName:  file.Name,
			FilePath:      file.Path,
		})
		if err != nil {
			return nil, err
		}
		info, err := queueClient.Enqueue(task)
		if err != nil {
			return nil, err
		}

		responses = append(responses, models.UploadResponse{
			DocumentID:    file.Name,
			ContractSetID: setID,
			Filename:      file.Name,
			Status:        models.StatusPending,
			Message:       "Queued for processing",
			TaskID:        info.ID,
		})
	}
	return responses, nil
}

// validateUpload rejects empty files, unsupported extensions, and
// PDFs without the %PDF magic header.
func validateUpload(header *multipart.FileHeader, maxSize int64) error {
	if header.Size == 0 {
		return fmt.Errorf("file is empty")
	}
	if header.Size > maxSize {
		return fmt.Errorf("file exceeds maximum size")
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("unsupported file type %q, only PDF and DOCX are accepted", ext)
	}

	if ext == ".pdf" {
		file, err := header.Open()
		if err != nil {
			return fmt.Errorf("cannot read file: %w", err)
		}
		defer file.Close()

		magic := make([]byte, 5)
		if _, err := io.ReadFull(file, magic); err != nil {
			return fmt.Errorf("cannot read file header: %w", err)
		}
		if string(magic[:4]) != "%PDF" {
			return fmt.Errorf("file does not appear to be a valid PDF")
		}
	}
	return nil
}

func saveUploadedFile(header *multipart.FileHeader, destPath string, maxSize int64) error {
	src, err := header.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err = io.Copy(dst, io.LimitReader(src, maxSize)); err != nil {
		dst.Close()
		if rmErr := os.Remove(destPath); rmErr != nil {
			logger.Warn("Failed to remove partial upload", "path", destPath, "error", rmErr)
		}
		return err
	}
	return nil
}

// fileNameStem derives the document ID from an uploaded filename.
func fileNameStem(filename string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(strings.TrimSpace(stem), " ", "_")
}
