package services

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"contract-qa-platform/internal/logger"

	"github.com/ledongthuc/pdf"
)

// ocrMeaningfulCharFloor is the minimum count of letter characters
// across the first sampled pages below which a PDF is assumed to be
// scanned and routed through OCR.
const (
	ocrMeaningfulCharFloor = 100
	ocrSamplePages         = 3
	maxTypeHints           = 3
)

var (
	meaningfulCharRegex = regexp.MustCompile(`[\W\d_]+`)

	// Header terms worth surfacing to the type classifier
	hintKeyTerms = []string{
		"master", "msa", "amendment", "addendum",
		"sow", "statement of work", "change order",
	}
)

// PDFExtraction is the structured result of native PDF extraction
type PDFExtraction struct {
	Text      string
	TypeHints []string
	PageCount int
	Metadata  map[string]string
}

// PDFExtractor extracts text from PDF files page by page, inserting
// page-boundary markers that the segmenter later splits on.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract reads the file and produces marker-delimited text plus
// document type hints mined from the top of the first page.
func (e *PDFExtractor) Extract(filePath string) (*PDFExtraction, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF file: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}

	pages := reader.NumPage()
	if pages == 0 {
		return nil, fmt.Errorf("PDF has no pages: %s", filePath)
	}

	var sb strings.Builder
	var firstPageText string

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract page text", "page", i, "error", err)
			continue
		}

		if i == 1 {
			firstPageText = text
		}

		sb.WriteString(fmt.Sprintf("\n=== Page %d ===\n", i))
		sb.WriteString(text)
	}

	return &PDFExtraction{
		Text:      strings.TrimSpace(sb.String()),
		TypeHints: mineTypeHints(firstPageText),
		PageCount: pages,
		Metadata:  extractPDFInfo(reader),
	}, nil
}

// NeedsOCR samples the first few pages and counts letter characters.
// Scanned documents yield almost no extractable text.
func (e *PDFExtractor) NeedsOCR(filePath string) (bool, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return false, fmt.Errorf("failed to read PDF file: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return false, fmt.Errorf("failed to parse PDF: %w", err)
	}

	var sample strings.Builder
	pages := reader.NumPage()
	if pages > ocrSamplePages {
		pages = ocrSamplePages
	}

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		sample.WriteString(text)
	}

	meaningful := meaningfulCharRegex.ReplaceAllString(sample.String(), "")
	return len(meaningful) < ocrMeaningfulCharFloor, nil
}

// mineTypeHints scans the leading lines of page one for header terms
// the classifier cares about. Only the first few matches are kept.
func mineTypeHints(firstPageText string) []string {
	var hints []string

	scanned := 0
	for _, line := range strings.Split(firstPageText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		scanned++
		if scanned > 10 {
			break
		}

		lineLower := strings.ToLower(line)
		for _, term := range hintKeyTerms {
			if strings.Contains(lineLower, term) {
				hints = append(hints, line)
				break
			}
		}
		if len(hints) >= maxTypeHints {
			break
		}
	}

	return hints
}

// extractPDFInfo pulls document info entries from the trailer
func extractPDFInfo(reader *pdf.Reader) map[string]string {
	meta := make(map[string]string)

	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return meta
	}

	for _, key := range []string{"Title", "Author", "Subject", "Creator", "Producer"} {
		value := info.Key(key)
		if value.Kind() == pdf.String {
			if text := value.Text(); text != "" {
				meta[strings.ToLower(key)] = text
			}
		}
	}

	return meta
}
