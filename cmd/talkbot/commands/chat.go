package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/bot"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/channels/console"
)

// newChatCmd creates the `talkbot chat` command: an interactive local REPL
// against the same pipeline the messaging channels use.
func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the bot from the terminal",
		Long: `Start an interactive terminal session. Slash commands work the
same as in a messaging channel; generated images and voice replies are
saved as files in the working directory. Exit with Ctrl+D.`,
		RunE: runChat,
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	// The console replaces the messaging channels, so their tokens are not
	// required here.
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}

	logger := newLogger(cmd, cfg)

	deps := buildDependencies(cfg, logger)
	if err := deps.Channels.Register(console.New(logger)); err != nil {
		return err
	}

	b := bot.New(cfg, deps, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer b.Stop()

	fmt.Println("Интерактивный чат. /help — команды, Ctrl+D — выход.")

	// The console channel closes its stream on EOF, which winds down the
	// message loop; block until stdin ends.
	ch, _ := deps.Channels.Channel("console")
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for ch.IsConnected() {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}
