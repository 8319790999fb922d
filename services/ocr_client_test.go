package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contract-qa-platform/internal/config"
)

func ocrTestServer(t *testing.T, healthy bool, resp OCRResponse) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(HealthResponse{Status: "healthy", ModelLoaded: healthy})
	})
	mux.HandleFunc("/ocr/extract", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(10<<20))
		assert.NotEmpty(t, r.FormValue("confidence_threshold"))
		_, _, err := r.FormFile("file")
		require.NoError(t, err)
		json.NewEncoder(w).Encode(resp)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func writeScratchFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 scanned"), 0600))
	return path
}

func TestOCRExtractInsertsPageMarkers(t *testing.T) {
	server := ocrTestServer(t, true, OCRResponse{
		Success:   true,
		PageCount: 2,
		Pages: []OCRPage{
			{Page: 1, Text: "First page body.", Confidence: 0.95},
			{Page: 2, Text: "Second page body.", Confidence: 0.91},
		},
	})

	client := NewOCRClient(&config.Config{OCRServiceURL: server.URL, OCRTimeout: 10})
	text, pages, err := client.ExtractTextFromFile(context.Background(), writeScratchFile(t))
	require.NoError(t, err)

	assert.Equal(t, 2, pages)
	assert.Contains(t, text, "=== Page 1 ===\nFirst page body.")
	assert.Contains(t, text, "=== Page 2 ===\nSecond page body.")
}

func TestOCRExtractFallsBackToFlatText(t *testing.T) {
	server := ocrTestServer(t, true, OCRResponse{
		Success:   true,
		PageCount: 1,
		Text:      "Flat recognized text.",
	})

	client := NewOCRClient(&config.Config{OCRServiceURL: server.URL, OCRTimeout: 10})
	text, _, err := client.ExtractTextFromFile(context.Background(), writeScratchFile(t))
	require.NoError(t, err)

	assert.Equal(t, "Flat recognized text.", text)
}

func TestOCRExtractRefusesUnhealthyService(t *testing.T) {
	server := ocrTestServer(t, false, OCRResponse{})

	client := NewOCRClient(&config.Config{OCRServiceURL: server.URL, OCRTimeout: 10})
	_, _, err := client.ExtractTextFromFile(context.Background(), writeScratchFile(t))
	assert.Error(t, err)
}

func TestOCRExtractSurfacesServiceFailure(t *testing.T) {
	server := ocrTestServer(t, true, OCRResponse{Success: false, Error: "model timeout"})

	client := NewOCRClient(&config.Config{OCRServiceURL: server.URL, OCRTimeout: 10})
	_, _, err := client.ExtractTextFromFile(context.Background(), writeScratchFile(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model timeout")
}
