// Package bot wires the session store, capability clients and channels into
// the message-handling pipeline.
package bot

import (
	"fmt"

	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/channels/discord"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/channels/telegram"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/tts"
)

// Config is the root configuration, loaded from YAML with environment
// variable expansion.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Session  SessionConfig  `yaml:"session"`
	Speech   SpeechConfig   `yaml:"speech"`
	Image    ImageConfig    `yaml:"image"`
	OCR      OCRConfig      `yaml:"ocr"`
	Health   HealthConfig   `yaml:"health"`
	Channels ChannelsConfig `yaml:"channels"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// APIConfig configures the completion backend.
type APIConfig struct {
	// BaseURL is the OpenAI-compatible API root, e.g.
	// "https://neuroapi.host/v1".
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates completion requests. Usually resolved from the
	// keyring or NEUROAPI_API_KEY rather than written here.
	APIKey string `yaml:"api_key"`

	// TimeoutSeconds bounds one completion call.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// SessionConfig configures per-user conversation state.
type SessionConfig struct {
	// HistoryLimit is the maximum number of stored turns per user.
	HistoryLimit int `yaml:"history_limit"`

	// SystemPrompt is prepended to every completion request.
	SystemPrompt string `yaml:"system_prompt"`

	// DefaultModel is the model selected for new sessions.
	DefaultModel string `yaml:"default_model"`

	// DefaultVoice is the voice selected for new sessions.
	DefaultVoice string `yaml:"default_voice"`
}

// SpeechConfig configures transcription and synthesis.
type SpeechConfig struct {
	// TranscriptionURL is the Whisper service root.
	TranscriptionURL string `yaml:"transcription_url"`

	// TranscriptionTimeoutSeconds bounds one transcription call.
	TranscriptionTimeoutSeconds int `yaml:"transcription_timeout_seconds"`

	// Synthesis configures the SpeechKit provider.
	Synthesis tts.Config `yaml:"synthesis"`
}

// ImageConfig configures the image generation backend.
type ImageConfig struct {
	// BaseURL is the generation service root. Empty disables the feature.
	BaseURL string `yaml:"base_url"`

	// TimeoutSeconds bounds one generation call.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// OCRConfig configures the text recognition backend.
type OCRConfig struct {
	// BaseURL is the OCR service root. Empty disables the feature.
	BaseURL string `yaml:"base_url"`

	// TimeoutSeconds bounds one extraction call.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// HealthConfig configures the backend health monitor.
type HealthConfig struct {
	// Enabled turns the scheduled probes on.
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression or descriptor like "@every 60s".
	Schedule string `yaml:"schedule"`
}

// ChannelsConfig configures the messaging platforms.
type ChannelsConfig struct {
	Telegram TelegramChannelConfig `yaml:"telegram"`
	Discord  DiscordChannelConfig  `yaml:"discord"`
}

// TelegramChannelConfig wraps the Telegram channel settings.
type TelegramChannelConfig struct {
	Enabled         bool `yaml:"enabled"`
	telegram.Config `yaml:",inline"`
}

// DiscordChannelConfig wraps the Discord channel settings.
type DiscordChannelConfig struct {
	Enabled        bool `yaml:"enabled"`
	discord.Config `yaml:",inline"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with working defaults; only tokens and
// backend URLs need to be provided.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "https://neuroapi.host/v1",
			TimeoutSeconds: 240,
		},
		Session: SessionConfig{
			HistoryLimit: 500,
			SystemPrompt: "Ты дружелюбный и полезный ассистент. Отвечай кратко и по делу.",
			DefaultModel: "gpt-4.1-mini",
			DefaultVoice: "alena",
		},
		Speech: SpeechConfig{
			TranscriptionTimeoutSeconds: 240,
			Synthesis: tts.Config{
				Language:       "ru-RU",
				TimeoutSeconds: 30,
			},
		},
		Image: ImageConfig{
			TimeoutSeconds: 120,
		},
		OCR: OCRConfig{
			TimeoutSeconds: 60,
		},
		Health: HealthConfig{
			Enabled:  true,
			Schedule: "@every 60s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the parts of the configuration that cannot fail later
// with a clearer message.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.Session.HistoryLimit <= 0 {
		return fmt.Errorf("session.history_limit must be positive")
	}
	if !c.Channels.Telegram.Enabled && !c.Channels.Discord.Enabled {
		return fmt.Errorf("at least one channel must be enabled")
	}
	return nil
}
