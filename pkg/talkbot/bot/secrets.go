// secrets.go resolves credentials through the OS keyring with environment
// variable fallback.
//
// Priority for each secret:
//  1. OS keyring (Linux: Secret Service, macOS: Keychain, Windows:
//     Credential Manager)
//  2. Environment variable (possibly loaded from .env)
//  3. config.yaml value (plaintext on disk, least preferred)
package bot

import (
	"log/slog"
	"os"

	"github.com/zalando/go-keyring"
)

// keyringService is the service name used in the OS keyring.
const keyringService = "talkbot"

// Keyring key names, also accepted as environment variables in upper case.
const (
	KeyAPIKey        = "neuroapi_api_key"
	KeyTelegramToken = "telegram_bot_token"
	KeyDiscordToken  = "discord_bot_token"
	KeyYandexOAuth   = "yandex_oauth_token"
)

// StoreSecret saves a secret to the OS keyring.
func StoreSecret(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// DeleteSecret removes a secret from the OS keyring.
func DeleteSecret(key string) error {
	return keyring.Delete(keyringService, key)
}

// lookupSecret resolves one secret through the priority chain.
func lookupSecret(key, configValue string) string {
	if val, err := keyring.Get(keyringService, key); err == nil && val != "" {
		return val
	}
	if val := os.Getenv(envName(key)); val != "" {
		return val
	}
	return configValue
}

func envName(key string) string {
	out := make([]byte, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// resolveSecrets fills the credential fields of the configuration.
func resolveSecrets(cfg *Config) {
	cfg.API.APIKey = lookupSecret(KeyAPIKey, cfg.API.APIKey)
	cfg.Channels.Telegram.Token = lookupSecret(KeyTelegramToken, cfg.Channels.Telegram.Token)
	cfg.Channels.Discord.Token = lookupSecret(KeyDiscordToken, cfg.Channels.Discord.Token)
	cfg.Speech.Synthesis.OAuthToken = lookupSecret(KeyYandexOAuth, cfg.Speech.Synthesis.OAuthToken)
}

// AuditSecrets warns about credentials that appear hardcoded in the config
// file instead of living in the keyring or environment.
func AuditSecrets(cfg *Config, logger *slog.Logger) {
	if cfg.API.APIKey != "" && len(cfg.API.APIKey) > 20 && os.Getenv(envName(KeyAPIKey)) == "" {
		if _, err := keyring.Get(keyringService, KeyAPIKey); err != nil {
			logger.Warn("API key appears to be hardcoded in config",
				"hint", "store it with: talkbot config set-key "+KeyAPIKey)
		}
	}
}
