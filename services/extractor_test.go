package services

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestPDF fabricates a one-page PDF with a document info
// dictionary, computing the cross-reference offsets as it goes.
func writeTestPDF(t *testing.T, dir, name, pageText string, info map[string]string) string {
	t.Helper()

	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", pageText)

	var infoEntries string
	for _, key := range []string{"Title", "Author"} {
		if v, ok := info[key]; ok {
			infoEntries += fmt.Sprintf(" /%s (%s)", key, v)
		}
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		fmt.Sprintf("<<%s >>", infoEntries),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 6 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xrefOffset)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
	return path
}

func TestPDFExtractReadsDocumentInfo(t *testing.T) {
	path := writeTestPDF(t, t.TempDir(), "msa_acme.pdf",
		"MASTER SERVICES AGREEMENT between Acme and Supplier.",
		map[string]string{"Title": "Master Services Agreement", "Author": "Acme Legal"})

	extraction, err := NewPDFExtractor().Extract(path)
	require.NoError(t, err)

	assert.Equal(t, 1, extraction.PageCount)
	assert.Equal(t, "Master Services Agreement", extraction.Metadata["title"])
	assert.Equal(t, "Acme Legal", extraction.Metadata["author"])
}

func TestMineTypeHints(t *testing.T) {
	text := "ACME CORPORATION\n\nMASTER SERVICES AGREEMENT\nEffective January 1, 2024\nThis Statement of Work references the above.\n"

	hints := mineTypeHints(text)

	assert.Equal(t, []string{
		"MASTER SERVICES AGREEMENT",
		"This Statement of Work references the above.",
	}, hints)
}

func TestMineTypeHintsStopsAfterLeadingLines(t *testing.T) {
	// Matches beyond the scanned header region are ignored
	text := "a\nb\nc\nd\ne\nf\ng\nh\ni\nj\nMaster Services Agreement\n"

	assert.Empty(t, mineTypeHints(text))
}

func TestMineTypeHintsCapped(t *testing.T) {
	text := "Master Agreement\nAmendment One\nStatement of Work\nChange Order Four\n"

	hints := mineTypeHints(text)
	assert.Len(t, hints, maxTypeHints)
}

func TestMineTypeHintsNoMatches(t *testing.T) {
	assert.Empty(t, mineTypeHints("Invoice\nBilling Summary\n"))
}

func TestBuildPageMarkedText(t *testing.T) {
	text := buildPageMarkedText(&OCRResponse{
		Pages: []OCRPage{
			{Page: 1, Text: "alpha"},
			{Page: 2, Text: "beta"},
		},
	})

	assert.Equal(t, "=== Page 1 ===\nalpha\n=== Page 2 ===\nbeta", text)
}

func TestBuildPageMarkedTextFlatFallback(t *testing.T) {
	assert.Equal(t, "flat", buildPageMarkedText(&OCRResponse{Text: "flat"}))
}
