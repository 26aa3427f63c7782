// Package ocr implements the client for the text recognition service.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/capability"
)

const opTextExtraction = "text_extraction"

// Client handles communication with the OCR backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates an OCR client for the given service root.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "ocr"),
	}
}

// extractResponse is the wire response of POST /ocr/extract_text.
type extractResponse struct {
	Success     bool   `json:"success"`
	Text        string `json:"text"`
	TotalBlocks int    `json:"total_blocks"`
	Error       string `json:"error"`
}

// Extract uploads an image and returns the recognized text. An image with no
// readable text is not an error; the result is simply empty.
func (c *Client) Extract(ctx context.Context, image []byte, filename string) (string, error) {
	if filename == "" {
		filename = "photo.jpg"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("writing image data: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr/extract_text", &buf)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", capability.NewNetwork(opTextExtraction, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", capability.NewNetwork(opTextExtraction, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", capability.FromStatus(opTextExtraction, resp.StatusCode, truncate(string(body), 200))
	}

	var er extractResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return "", capability.NewMalformed(opTextExtraction, err)
	}
	if !er.Success {
		if er.Error != "" {
			return "", capability.NewMalformed(opTextExtraction, fmt.Errorf("backend reported: %s", er.Error))
		}
		return "", capability.NewMalformed(opTextExtraction, fmt.Errorf("extraction did not succeed"))
	}

	text := strings.TrimSpace(er.Text)
	c.logger.Info("text extracted",
		"duration_ms", time.Since(start).Milliseconds(),
		"image_bytes", len(image),
		"text_len", len(text),
		"blocks", er.TotalBlocks,
	)
	return text, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
