package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"contract-qa-platform/internal/config"
	"contract-qa-platform/internal/logger"
	"contract-qa-platform/models"

	"github.com/google/uuid"
)

var (
	pageMarkerRegex = regexp.MustCompile(`^=== Page (\d+) ===$`)

	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`Version\s*[:.]?\s*(\d+(\.\d+)*)`),
		regexp.MustCompile(`Revision\s*[:.]?\s*(\d+(\.\d+)*)`),
		regexp.MustCompile(`v(\d+(\.\d+)*)`),
	}

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`Effective\s+Date\s*[:.]?\s*(\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4})`),
		regexp.MustCompile(`Last\s+Updated\s*[:.]?\s*(\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4})`),
		regexp.MustCompile(`Date\s*[:.]?\s*(\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4})`),
	}
)

// ProcessedDocument is the output of one segmentation run
type ProcessedDocument struct {
	SectionChunks    []models.TextChunk
	DetailChunks     []models.TextChunk
	FullText         string
	PageCount        int
	ExtractionMethod string
}

// DocumentProcessor runs extraction, classification, and two-level
// segmentation for one document at a time. State is request-scoped;
// nothing is shared across calls.
type DocumentProcessor struct {
	chunker       *TokenChunker
	classifier    *TypeClassifier
	pdfExtractor  *PDFExtractor
	docxExtractor *DOCXExtractor
	ocrClient     *OCRClient
	ocrEnabled    bool
}

func NewDocumentProcessor(cfg *config.Config) (*DocumentProcessor, error) {
	chunker, err := NewTokenChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	return &DocumentProcessor{
		chunker:       chunker,
		classifier:    NewTypeClassifier(),
		pdfExtractor:  NewPDFExtractor(),
		docxExtractor: NewDOCXExtractor(),
		ocrClient:     NewOCRClient(cfg),
		ocrEnabled:    cfg.OCRServiceEnabled,
	}, nil
}

// ProcessDocument extracts text through the appropriate source,
// classifies the document, and produces co-indexed section and detail
// chunks. The metadata argument is updated in place with the detected
// type, level, version, effective date, and PDF info entries.
func (dp *DocumentProcessor) ProcessDocument(ctx context.Context, filePath string, metadata *models.DocumentMetadata) (*ProcessedDocument, error) {
	extracted, err := dp.extractText(ctx, filePath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(extracted.text) == "" {
		return nil, fmt.Errorf("document produced no extractable text: %s", filePath)
	}
	text := extracted.text

	docType, level := dp.classifier.Classify(metadata.Name, extracted.hints)
	metadata.DocumentType = docType
	metadata.Level = level
	if len(extracted.pdfMetadata) > 0 {
		metadata.PDFMetadata = extracted.pdfMetadata
	}

	version, effectiveDate := extractVersionInfo(text)
	if version != "" {
		metadata.Version = version
	}
	if effectiveDate != "" {
		metadata.EffectiveDate = effectiveDate
	}

	sectionChunks := dp.buildSectionChunks(text, metadata)
	detailChunks := dp.buildDetailChunks(sectionChunks, metadata)

	logger.Info("Document processed",
		"document_id", metadata.DocumentID,
		"type", docType,
		"level", level,
		"sections", len(sectionChunks),
		"detail_chunks", len(detailChunks))

	return &ProcessedDocument{
		SectionChunks:    sectionChunks,
		DetailChunks:     detailChunks,
		FullText:         text,
		PageCount:        extracted.pageCount,
		ExtractionMethod: extracted.method,
	}, nil
}

// extractedText is the source-independent extraction result
type extractedText struct {
	text        string
	hints       []string
	pageCount   int
	method      string
	pdfMetadata map[string]string
}

// extractText selects the text source once per document: DOCX parsing
// for .docx files, OCR for scanned PDFs, native extraction otherwise.
func (dp *DocumentProcessor) extractText(ctx context.Context, filePath string) (*extractedText, error) {
	if strings.HasSuffix(strings.ToLower(filePath), ".docx") {
		text, err := dp.docxExtractor.Extract(filePath)
		if err != nil {
			return nil, err
		}
		return &extractedText{text: text, pageCount: 1, method: models.ExtractionMethodDOCX}, nil
	}

	if dp.ocrEnabled {
		needsOCR, err := dp.pdfExtractor.NeedsOCR(filePath)
		if err != nil {
			return nil, err
		}
		if needsOCR {
			logger.Info("Scanned document detected, routing through OCR", "file", filePath)
			text, pages, err := dp.ocrClient.ExtractTextFromFile(ctx, filePath)
			if err != nil {
				return nil, err
			}
			return &extractedText{text: text, pageCount: pages, method: models.ExtractionMethodOCR}, nil
		}
	}

	extraction, err := dp.pdfExtractor.Extract(filePath)
	if err != nil {
		return nil, err
	}
	return &extractedText{
		text:        extraction.Text,
		hints:       extraction.TypeHints,
		pageCount:   extraction.PageCount,
		method:      models.ExtractionMethodNative,
		pdfMetadata: extraction.Metadata,
	}, nil
}

type section struct {
	text      string
	startPage int
}

// buildSectionChunks splits marker-delimited text into one section
// per contiguous page block, labeled in discovery order. Whitespace-
// only segments are dropped.
func (dp *DocumentProcessor) buildSectionChunks(text string, metadata *models.DocumentMetadata) []models.TextChunk {
	var sections []section
	current := section{startPage: 1}

	for _, line := range strings.Split(text, "\n") {
		if match := pageMarkerRegex.FindStringSubmatch(strings.TrimSpace(line)); match != nil {
			if strings.TrimSpace(current.text) != "" {
				sections = append(sections, current)
			}
			pageNum, _ := strconv.Atoi(match[1])
			current = section{startPage: pageNum}
			continue
		}
		current.text += line + "\n"
	}
	if strings.TrimSpace(current.text) != "" {
		sections = append(sections, current)
	}

	chunks := make([]models.TextChunk, len(sections))
	for i, s := range sections {
		chunks[i] = models.TextChunk{
			ChunkID:          uuid.New().String(),
			Text:             s.text,
			Metadata:         metadata,
			PageNumber:       s.startPage,
			SectionID:        uuid.New().String(),
			SectionReference: fmt.Sprintf("Section %d", i+1),
			LevelInDocument:  metadata.Level,
			ChunkType:        models.ChunkTypeSection,
		}
	}
	return chunks
}

// buildDetailChunks re-splits every section at the fine granularity.
// Detail chunks inherit the parent section's id and reference but get
// fresh chunk ids.
func (dp *DocumentProcessor) buildDetailChunks(sectionChunks []models.TextChunk, metadata *models.DocumentMetadata) []models.TextChunk {
	var detailChunks []models.TextChunk

	for _, sectionChunk := range sectionChunks {
		for _, text := range dp.chunker.Split(sectionChunk.Text) {
			detailChunks = append(detailChunks, models.TextChunk{
				ChunkID:          uuid.New().String(),
				Text:             text,
				Metadata:         metadata,
				PageNumber:       sectionChunk.PageNumber,
				SectionID:        sectionChunk.SectionID,
				SectionReference: sectionChunk.SectionReference,
				LevelInDocument:  metadata.Level,
				ChunkType:        models.ChunkTypeDetail,
				TokenCount:       dp.chunker.CountTokens(text),
			})
		}
	}
	return detailChunks
}

// extractVersionInfo pulls version and effective date strings from
// document text. Either may be empty.
func extractVersionInfo(text string) (string, string) {
	var version, effectiveDate string

	for _, pattern := range versionPatterns {
		if match := pattern.FindStringSubmatch(text); match != nil {
			version = match[1]
			break
		}
	}
	for _, pattern := range datePatterns {
		if match := pattern.FindStringSubmatch(text); match != nil {
			effectiveDate = match[1]
			break
		}
	}
	return version, effectiveDate
}
