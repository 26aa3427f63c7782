// Package imagegen implements the client for the Kandinsky image generation
// service. Generation is slow (tens of seconds on GPU), so the client carries
// a long timeout and the response body is the PNG itself, not JSON.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/capability"
)

const opImageGeneration = "image_generation"

// Request describes one generation job. Zero-valued fields are filled with
// the backend defaults before sending.
type Request struct {
	Prompt             string  `json:"prompt"`
	NegativePrompt     string  `json:"negative_prompt"`
	Width              int     `json:"width"`
	Height             int     `json:"height"`
	Steps              int     `json:"num_inference_steps"`
	GuidanceScale      float64 `json:"guidance_scale"`
	PriorGuidanceScale float64 `json:"prior_guidance_scale"`
}

func (r *Request) applyDefaults() {
	if r.NegativePrompt == "" {
		r.NegativePrompt = "low quality, bad quality"
	}
	if r.Width == 0 {
		r.Width = 768
	}
	if r.Height == 0 {
		r.Height = 768
	}
	if r.Steps == 0 {
		r.Steps = 50
	}
	if r.GuidanceScale == 0 {
		r.GuidanceScale = 4.0
	}
	if r.PriorGuidanceScale == 0 {
		r.PriorGuidanceScale = 1.0
	}
}

// Client handles communication with the image generation backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates an image generation client for the given service root.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "imagegen"),
	}
}

// Generate renders an image for the prompt and returns the PNG bytes.
func (c *Client) Generate(ctx context.Context, req Request) ([]byte, error) {
	req.applyDefaults()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, capability.NewNetwork(opImageGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, capability.FromStatus(opImageGeneration, resp.StatusCode, string(errBody))
	}

	image, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, capability.NewNetwork(opImageGeneration, err)
	}
	if len(image) == 0 {
		return nil, capability.NewMalformed(opImageGeneration, fmt.Errorf("empty image response"))
	}

	c.logger.Info("image generated",
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_len", len(req.Prompt),
		"image_bytes", len(image),
		"size", fmt.Sprintf("%dx%d", req.Width, req.Height),
	)
	return image, nil
}
