package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/bot"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/channels"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/channels/discord"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/channels/telegram"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/health"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/imagegen"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/llm"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/ocr"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/session"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/stt"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/tts"
)

// newServeCmd creates the `talkbot serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the bot with the configured messaging channels",
		Long: `Start the bot as a daemon, connecting to the enabled channels
(Telegram, Discord) and processing messages until interrupted.

Examples:
  talkbot serve
  talkbot serve --config ./config.yaml`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cmd, cfg)
	bot.AuditSecrets(cfg, logger)

	deps := buildDependencies(cfg, logger)

	if cfg.Channels.Telegram.Enabled {
		if err := deps.Channels.Register(telegram.New(cfg.Channels.Telegram.Config, logger)); err != nil {
			return err
		}
	}
	if cfg.Channels.Discord.Enabled {
		if err := deps.Channels.Register(discord.New(cfg.Channels.Discord.Config, logger)); err != nil {
			return err
		}
	}

	b := bot.New(cfg, deps, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	logger.Info("talkbot running, press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping")
	cancel()

	done := make(chan struct{})
	go func() {
		b.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		logger.Warn("shutdown timed out")
	}
	return nil
}

// buildDependencies wires the session store and capability clients from the
// configuration. Backends without a configured URL stay nil and their
// features answer with a "not available" message.
func buildDependencies(cfg *bot.Config, logger *slog.Logger) bot.Dependencies {
	store := session.NewStore(session.Config{
		Models:       session.DefaultModels(),
		Voices:       session.DefaultVoices(),
		DefaultModel: cfg.Session.DefaultModel,
		DefaultVoice: cfg.Session.DefaultVoice,
		HistoryLimit: cfg.Session.HistoryLimit,
		SystemPrompt: cfg.Session.SystemPrompt,
	}, logger)

	deps := bot.Dependencies{
		Sessions: store,
		Completer: llm.New(cfg.API.BaseURL, cfg.API.APIKey,
			time.Duration(cfg.API.TimeoutSeconds)*time.Second, logger),
		Channels: channels.NewManager(logger),
	}

	if cfg.Speech.TranscriptionURL != "" {
		deps.Transcriber = stt.New(cfg.Speech.TranscriptionURL,
			time.Duration(cfg.Speech.TranscriptionTimeoutSeconds)*time.Second, logger)
	}
	if cfg.Speech.Synthesis.OAuthToken != "" {
		deps.Synthesizer = tts.NewYandexProvider(cfg.Speech.Synthesis, logger)
	}
	if cfg.Image.BaseURL != "" {
		deps.ImageGenerator = imagegen.New(cfg.Image.BaseURL,
			time.Duration(cfg.Image.TimeoutSeconds)*time.Second, logger)
	}
	if cfg.OCR.BaseURL != "" {
		deps.TextExtractor = ocr.New(cfg.OCR.BaseURL,
			time.Duration(cfg.OCR.TimeoutSeconds)*time.Second, logger)
	}

	if cfg.Health.Enabled {
		deps.Monitor = health.New([]health.Target{
			{Name: "transcription", URL: cfg.Speech.TranscriptionURL},
			{Name: "image", URL: cfg.Image.BaseURL},
			{Name: "ocr", URL: cfg.OCR.BaseURL},
		}, cfg.Health.Schedule, logger)
	}

	return deps
}
