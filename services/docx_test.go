package services

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDOCXExtractHeadingsAndTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contract.docx")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	doc, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = doc.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Scope of Services</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>The supplier shall </w:t></w:r><w:r><w:t>provide support.</w:t></w:r></w:p>` +
		`<w:tbl><w:tr>` +
		`<w:tc><w:p><w:r><w:t>Milestone</w:t></w:r></w:p></w:tc>` +
		`<w:tc><w:p><w:r><w:t>Due Date</w:t></w:r></w:p></w:tc>` +
		`</w:tr></w:tbl>` +
		`</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	text, err := NewDOCXExtractor().Extract(path)
	require.NoError(t, err)

	assert.Contains(t, text, "# Scope of Services\n")
	assert.Contains(t, text, "The supplier shall provide support.\n", "runs in one paragraph join without separators")
	assert.Contains(t, text, "Milestone | Due Date\n")
}

func TestDOCXExtractRejectsArchiveWithoutDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.docx")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	other, err := w.Create("word/styles.xml")
	require.NoError(t, err)
	_, err = other.Write([]byte("<styles/>"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	_, err = NewDOCXExtractor().Extract(path)
	assert.Error(t, err)
}

func TestDOCXExtractRejectsNonArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0600))

	_, err := NewDOCXExtractor().Extract(path)
	assert.Error(t, err)
}
