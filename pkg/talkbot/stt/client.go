// Package stt implements the speech-to-text client for the Whisper service.
// Audio is uploaded as a multipart file; the backend answers 503 while its
// model is still loading, which surfaces as a distinct "still starting"
// failure instead of a generic error.
package stt

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

const opTranscription = "transcription"

// Client handles communication with the transcription backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a transcription client for the given service root.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 240 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "stt"),
	}
}

// transcribeResponse is the wire response of POST /transcribe.
type transcribeResponse struct {
	Success  bool   `json:"success"`
	Text     string `json:"text"`
	Language string `json:"language"`
	Error    string `json:"error"`
}

// Transcribe uploads audio bytes and returns the recognized text. filename
// hints the container format to the backend (e.g. "voice.ogg").
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if filename == "" {
		filename = "voice.ogg"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("writing audio data: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", &buf)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", capability.NewNetwork(opTranscription, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", capability.NewNetwork(opTranscription, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", capability.FromStatus(opTranscription, resp.StatusCode, truncate(string(body), 200))
	}

	var tr transcribeResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", capability.NewMalformed(opTranscription, err)
	}
	if !tr.Success || strings.TrimSpace(tr.Text) == "" {
		if tr.Error != "" {
			return "", capability.NewMalformed(opTranscription, fmt.Errorf("backend reported: %s", tr.Error))
		}
		return "", capability.NewMalformed(opTranscription, fmt.Errorf("response has no text"))
	}

	text := strings.TrimSpace(tr.Text)
	c.logger.Info("audio transcribed",
		"duration_ms", time.Since(start).Milliseconds(),
		"audio_bytes", len(audio),
		"text_len", len(text),
		"language", tr.Language,
	)
	return text, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
