// Package commands implements the talkbot CLI using cobra.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/bot"
)

// NewRootCmd creates the root command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "talkbot",
		Short: "NeuroAPI talk bot - multi-modal AI assistant",
		Long: `Talkbot is a conversational AI assistant for Telegram and Discord.
It answers text and voice messages, speaks replies with Yandex SpeechKit,
generates images with Kandinsky and reads text from photos.

Examples:
  talkbot serve
  talkbot serve --config ./config.yaml
  talkbot chat
  talkbot config set-key neuroapi_api_key`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newConfigCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}

// resolveConfig loads the config named by --config or found in the standard
// locations.
func resolveConfig(cmd *cobra.Command) (*bot.Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if path == "" {
		path = bot.FindConfigFile()
	}
	if path == "" {
		return nil, fmt.Errorf("no config file found, create config.yaml or pass --config")
	}
	return bot.LoadConfig(path)
}

// newLogger builds the slog logger from the config and the --verbose flag.
func newLogger(cmd *cobra.Command, cfg *bot.Config) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	level := slog.LevelInfo
	if verbose || cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}
