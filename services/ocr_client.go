package services

import (
	"bytes"
	"context"
	"encoding/json"
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
)

// OCRClient performs image-based text recognition for scanned PDFs
// through an external OCR service.
type OCRClient struct {
	config     *config.Config
	httpClient *http.Client
	baseURL    string
}

// OCRPage is one recognized page from the OCR service
type OCRPage struct {
	Page       int     `json:"page"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// OCRResponse represents the response from the OCR service
type OCRResponse struct {
	Success        bool      `json:"success"`
	Text           string    `json:"text"`
	Pages          []OCRPage `json:"pages"`
	PageCount      int       `json:"page_count"`
	ProcessingTime float64   `json:"processing_time"`
	Error          string    `json:"error,omitempty"`
}

// HealthResponse represents the OCR service health check response
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// NewOCRClient creates a new OCR client
func NewOCRClient(cfg *config.Config) *OCRClient {
	baseURL := cfg.OCRServiceURL
	if baseURL == "" {
		baseURL = "http://localhost:8001"
	}

	timeout := time.Duration(cfg.OCRTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &OCRClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// IsHealthy checks if the OCR service is healthy
func (c *OCRClient) IsHealthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("OCR service unhealthy: status %d", resp.StatusCode)
	}

	var healthResp HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return false, fmt.Errorf("failed to decode health response: %w", err)
	}

	return healthResp.Status == "healthy" && healthResp.ModelLoaded, nil
}

// ExtractTextFromFile runs the file through OCR and returns text with
// the same page-boundary markers native extraction produces, so the
// segmenter cannot tell which path was used.
func (c *OCRClient) ExtractTextFromFile(ctx context.Context, filePath string) (string, int, error) {
	healthy, err := c.IsHealthy(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("OCR service health check failed: %w", err)
	}
	if !healthy {
		return "", 0, fmt.Errorf("OCR service is not healthy")
	}

	fileData, err := os.ReadFile(filePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read file: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fileWriter, bytes.NewReader(fileData)); err != nil {
		return "", 0, fmt.Errorf("failed to copy file data: %w", err)
	}

	writer.WriteField("confidence_threshold", fmt.Sprintf("%.2f", c.config.OCRConfidenceThreshold))
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/ocr/extract", &buf)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create OCR request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", 0, fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("OCR request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var ocrResp OCRResponse
	if err := json.NewDecoder(resp.Body).Decode(&ocrResp); err != nil {
		return "", 0, fmt.Errorf("failed to decode OCR response: %w", err)
	}

	if !ocrResp.Success {
		return "", 0, fmt.Errorf("OCR processing failed: %s", ocrResp.Error)
	}

	logger.Info("OCR extraction complete",
		"file", filepath.Base(filePath),
		"pages", ocrResp.PageCount,
		"processing_time", ocrResp.ProcessingTime)

	return buildPageMarkedText(&ocrResp), ocrResp.PageCount, nil
}

// buildPageMarkedText inserts "=== Page N ===" markers between
// recognized pages. Falls back to the flat text field when the
// service returned no per-page breakdown.
func buildPageMarkedText(resp *OCRResponse) string {
	if len(resp.Pages) == 0 {
		return resp.Text
	}

	var sb strings.Builder
	for _, page := range resp.Pages {
		sb.WriteString(fmt.Sprintf("\n=== Page %d ===\n", page.Page))
		sb.WriteString(page.Text)
	}
	return strings.TrimSpace(sb.String())
}
