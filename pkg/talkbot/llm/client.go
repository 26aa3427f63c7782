// Package llm implements the chat completion client. It speaks the
// OpenAI-compatible /chat/completions format, which covers NeuroAPI and any
// other compatible endpoint.
package llm

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
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/session"
)

const opCompletion = "completion"

// Request is one completion call: the resolved model parameters plus the
// ordered messages built by session.BuildPrompt.
type Request struct {
	Model       string
	Messages    []session.Turn
	MaxTokens   int
	Temperature float64
}

// Client handles communication with the completion backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a completion client. baseURL is the API root (without the
// /chat/completions suffix).
func New(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 240 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "llm"),
	}
}

// chatRequest is the wire request.
type chatRequest struct {
	Model       string         `json:"model"`
	Messages    []session.Turn `json:"messages"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Temperature float64        `json:"temperature,omitempty"`
}

// chatResponse is the wire response.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends one chat completion request and returns the assistant text.
// Failures are always capability errors; the caller maps them to user
// messages without inspecting transport details.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("sending chat completion",
		"model", req.Model,
		"messages", len(req.Messages),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", capability.NewNetwork(opCompletion, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", capability.NewNetwork(opCompletion, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("completion backend error",
			"status", resp.StatusCode,
			"body", truncate(string(respBody), 500),
		)
		return "", capability.FromStatus(opCompletion, resp.StatusCode, truncate(string(respBody), 200))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", capability.NewMalformed(opCompletion, err)
	}
	if chatResp.Error != nil {
		return "", capability.NewMalformed(opCompletion, fmt.Errorf("API error: %s", chatResp.Error.Message))
	}
	if len(chatResp.Choices) == 0 {
		return "", capability.NewMalformed(opCompletion, fmt.Errorf("response has no choices"))
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if content == "" {
		return "", capability.NewMalformed(opCompletion, fmt.Errorf("choice has empty content"))
	}

	c.logger.Info("chat completion done",
		"model", req.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", chatResp.Usage.PromptTokens,
		"completion_tokens", chatResp.Usage.CompletionTokens,
		"finish_reason", chatResp.Choices[0].FinishReason,
	)

	return content, nil
}

// truncate limits s to max bytes for log output.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
