package utils

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// Extracted document text is archived compressed in MongoDB. Small
// payloads are stored as-is since the gzip header outweighs the gain.
const compressionMinSize = 500

// CompressText compresses extracted text for archival storage.
// Returns the payload and whether it was compressed.
func CompressText(text string) ([]byte, bool, error) {
	data := []byte(text)
	if len(data) < compressionMinSize {
		return data, false, nil
	}

	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, false, fmt.Errorf("failed to write to gzip writer: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, false, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), true, nil
}

// DecompressText restores archived text stored by CompressText.
func DecompressText(payload []byte, compressed bool) (string, error) {
	if !compressed || len(payload) == 0 {
		return string(payload), nil
	}

	reader, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read from gzip reader: %w", err)
	}
	return string(data), nil
}
