// Package tts provides text-to-speech synthesis. The Yandex SpeechKit
// provider exchanges a passport OAuth token for a short-lived IAM token
// before synthesis and caches it across calls.
//
// Synthesis is a soft-fail capability: callers treat any error as "no audio
// produced" and fall back to text delivery.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// VoiceParams selects the synthesis voice and style.
type VoiceParams struct {
	Voice   string
	Emotion string
}

// Provider is the interface for synthesis backends.
type Provider interface {
	// Synthesize converts text to audio.
	// Returns audio bytes, MIME type (e.g. "audio/ogg"), and error.
	Synthesize(ctx context.Context, text string, voice VoiceParams) ([]byte, string, error)
}

const (
	defaultTokenEndpoint = "https://iam.api.cloud.yandex.net/iam/v1/tokens"
	defaultTTSEndpoint   = "https://tts.api.cloud.yandex.net/speech/v1/tts:synthesize"

	// maxSynthesisChars is the backend's input limit; longer text is
	// refused so the caller falls back to text delivery.
	maxSynthesisChars = 4096

	// tokenRefreshMargin renews the cached IAM token well before its
	// 12-hour expiry so an in-flight call never uses a stale one.
	tokenRefreshMargin = time.Hour
)

// YandexProvider implements Provider via the SpeechKit HTTP API.
type YandexProvider struct {
	oauthToken string
	folderID   string
	language   string

	tokenEndpoint string
	ttsEndpoint   string
	client        *http.Client
	logger        *slog.Logger

	mu         sync.Mutex
	iamToken   string
	iamExpires time.Time
}

// Config holds the SpeechKit provider configuration.
type Config struct {
	// OAuthToken is the Yandex passport OAuth token used for the IAM
	// token exchange.
	OAuthToken string `yaml:"oauth_token"`

	// FolderID is the cloud folder the synthesis is billed to.
	FolderID string `yaml:"folder_id"`

	// Language is the synthesis language tag (default "ru-RU").
	Language string `yaml:"language"`

	// TimeoutSeconds bounds one synthesis call.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// NewYandexProvider creates a SpeechKit provider.
func NewYandexProvider(cfg Config, logger *slog.Logger) *YandexProvider {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	lang := cfg.Language
	if lang == "" {
		lang = "ru-RU"
	}
	return &YandexProvider{
		oauthToken:    cfg.OAuthToken,
		folderID:      cfg.FolderID,
		language:      lang,
		tokenEndpoint: defaultTokenEndpoint,
		ttsEndpoint:   defaultTTSEndpoint,
		client:        &http.Client{Timeout: timeout},
		logger:        logger.With("component", "tts"),
	}
}

// Synthesize converts text to OggOpus audio via SpeechKit.
func (p *YandexProvider) Synthesize(ctx context.Context, text string, voice VoiceParams) ([]byte, string, error) {
	if voice.Voice == "" {
		voice.Voice = "alena"
	}
	if runes := []rune(text); len(runes) > maxSynthesisChars {
		return nil, "", fmt.Errorf("tts: text of %d chars exceeds the %d char limit", len(runes), maxSynthesisChars)
	}

	token, err := p.iamTokenFor(ctx, time.Now())
	if err != nil {
		return nil, "", fmt.Errorf("tts: fetching IAM token: %w", err)
	}

	form := url.Values{}
	form.Set("text", text)
	form.Set("lang", p.language)
	form.Set("voice", voice.Voice)
	if voice.Emotion != "" {
		form.Set("emotion", voice.Emotion)
	}
	form.Set("format", "oggopus")
	form.Set("folderId", p.folderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.ttsEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, "", fmt.Errorf("tts: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("tts: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", fmt.Errorf("tts: API returned %d: %s", resp.StatusCode, string(errBody))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("tts: reading audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, "", fmt.Errorf("tts: empty audio response")
	}

	p.logger.Debug("speech synthesized",
		"voice", voice.Voice,
		"emotion", voice.Emotion,
		"audio_bytes", len(audio),
	)
	return audio, "audio/ogg", nil
}

// iamTokenResponse is the wire response of the IAM token exchange.
type iamTokenResponse struct {
	IAMToken  string    `json:"iamToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// iamTokenFor returns a valid IAM token, reusing the cached one until it is
// within the refresh margin of expiry.
func (p *YandexProvider) iamTokenFor(ctx context.Context, now time.Time) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.iamToken != "" && now.Before(p.iamExpires.Add(-tokenRefreshMargin)) {
		return p.iamToken, nil
	}

	body, err := json.Marshal(map[string]string{"yandexPassportOauthToken": p.oauthToken})
	if err != nil {
		return "", fmt.Errorf("marshaling token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(errBody))
	}

	var tr iamTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("parsing token response: %w", err)
	}
	if tr.IAMToken == "" {
		return "", fmt.Errorf("token response has no iamToken")
	}

	p.iamToken = tr.IAMToken
	p.iamExpires = tr.ExpiresAt
	p.logger.Debug("IAM token refreshed", "expires_at", tr.ExpiresAt)
	return p.iamToken, nil
}
