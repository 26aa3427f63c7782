// bot.go owns the pipeline lifecycle: it consumes the aggregated channel
// stream and hands every inbound message to the router in its own goroutine.
package bot

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/channels"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/health"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/imagegen"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/llm"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/session"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/tts"
)

// Completer produces an assistant reply for an ordered prompt.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Transcriber converts voice audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// ImageGenerator renders an image for a prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, req imagegen.Request) ([]byte, error)
}

// TextExtractor recognizes text on an image.
type TextExtractor interface {
	Extract(ctx context.Context, image []byte, filename string) (string, error)
}

// Dependencies bundles everything the bot routes between. Synthesizer,
// ImageGenerator and TextExtractor may be nil; the matching features then
// answer with a "not available" message.
type Dependencies struct {
	Sessions       *session.Store
	Completer      Completer
	Transcriber    Transcriber
	Synthesizer    tts.Provider
	ImageGenerator ImageGenerator
	TextExtractor  TextExtractor
	Channels       *channels.Manager
	Monitor        *health.Monitor
}

// Bot is the session orchestrator: one instance serves every channel.
type Bot struct {
	cfg      *Config
	sessions *session.Store
	deps     Dependencies
	logger   *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a bot over the given dependencies.
func New(cfg *Config, deps Dependencies, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		cfg:      cfg,
		sessions: deps.Sessions,
		deps:     deps,
		logger:   logger.With("component", "bot"),
	}
}

// Start connects the channels, starts the health monitor and begins
// processing messages. It returns once everything is running.
func (b *Bot) Start(ctx context.Context) error {
	ctx, b.cancel = context.WithCancel(ctx)

	if err := b.deps.Channels.Start(ctx); err != nil {
		return err
	}

	if b.deps.Monitor != nil {
		if err := b.deps.Monitor.Start(ctx); err != nil {
			return err
		}
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.messageLoop(ctx)
	}()

	b.logger.Info("bot started", "history_limit", b.sessions.HistoryLimit())
	return nil
}

// Stop shuts down the pipeline and waits for in-flight messages.
func (b *Bot) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.deps.Monitor != nil {
		b.deps.Monitor.Stop()
	}
	b.deps.Channels.Stop()
	b.wg.Wait()
	b.logger.Info("bot stopped", "sessions", b.sessions.Count())
}

// messageLoop fans inbound messages out to handler goroutines. Per-user
// ordering is enforced inside the router via the session event lock, so two
// users never wait on each other.
func (b *Bot) messageLoop(ctx context.Context) {
	for msg := range b.deps.Channels.Messages() {
		b.wg.Add(1)
		go func(m *channels.IncomingMessage) {
			defer b.wg.Done()
			b.handleMessage(ctx, m)
		}(msg)
	}
}
