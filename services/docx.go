package services

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strings"
)

// DOCXExtractor extracts text from Word documents while preserving
// paragraph order, heading markers, and table rows.
type DOCXExtractor struct{}

func NewDOCXExtractor() *DOCXExtractor {
	return &DOCXExtractor{}
}

// docx XML structures, limited to what text extraction needs
type docxBody struct {
	Paragraphs []docxParagraph `xml:"p"`
	Tables     []docxTable     `xml:"tbl"`
}

type docxDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    docxBody `xml:"body"`
}

type docxParagraph struct {
	Properties docxParaProps `xml:"pPr"`
	Runs       []docxRun     `xml:"r"`
}

type docxParaProps struct {
	Style docxStyle `xml:"pStyle"`
}

type docxStyle struct {
	Val string `xml:"val,attr"`
}

type docxRun struct {
	Texts []string `xml:"t"`
}

type docxTable struct {
	Rows []docxRow `xml:"tr"`
}

type docxRow struct {
	Cells []docxCell `xml:"tc"`
}

type docxCell struct {
	Paragraphs []docxParagraph `xml:"p"`
}

// Extract reads word/document.xml out of the DOCX archive. Headings
// are prefixed with "# " and table rows joined with " | " so the
// downstream chunker keeps tabular lines together.
func (e *DOCXExtractor) Extract(filePath string) (string, error) {
	archive, err := zip.OpenReader(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX archive: %w", err)
	}
	defer archive.Close()

	var doc docxDocument
	found := false

	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document.xml: %w", err)
		}
		err = xml.NewDecoder(rc).Decode(&doc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("failed to parse document.xml: %w", err)
		}
		found = true
		break
	}

	if !found {
		return "", fmt.Errorf("DOCX archive has no word/document.xml: %s", filePath)
	}

	var sb strings.Builder

	for _, paragraph := range doc.Body.Paragraphs {
		text := paragraphText(paragraph)
		if strings.HasPrefix(paragraph.Properties.Style.Val, "Heading") {
			sb.WriteString("# " + text + "\n")
		} else {
			sb.WriteString(text + "\n")
		}
	}

	for _, table := range doc.Body.Tables {
		for _, row := range table.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				var parts []string
				for _, paragraph := range cell.Paragraphs {
					parts = append(parts, paragraphText(paragraph))
				}
				cells = append(cells, strings.Join(parts, " "))
			}
			sb.WriteString(strings.Join(cells, " | ") + "\n")
		}
	}

	return sb.String(), nil
}

func paragraphText(p docxParagraph) string {
	var sb strings.Builder
	for _, run := range p.Runs {
		for _, t := range run.Texts {
			sb.WriteString(t)
		}
	}
	return sb.String()
}
