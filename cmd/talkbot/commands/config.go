package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/bot"
)

// exampleConfig is written by `talkbot config init`.
const exampleConfig = `api:
  base_url: https://neuroapi.host/v1
  # api_key comes from the keyring or NEUROAPI_API_KEY

session:
  history_limit: 500
  default_model: gpt-4.1-mini
  default_voice: alena

speech:
  transcription_url: http://localhost:8000
  synthesis:
    folder_id: ""
    # oauth_token comes from the keyring or YANDEX_OAUTH_TOKEN

image:
  base_url: http://localhost:8001

ocr:
  base_url: http://localhost:8002

health:
  enabled: true
  schedule: "@every 60s"

channels:
  telegram:
    enabled: true
    # token comes from the keyring or TELEGRAM_BOT_TOKEN
  discord:
    enabled: false

logging:
  level: info
  format: text
`

// newConfigCmd creates the `talkbot config` command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration and credentials",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigSetKeyCmd(), newConfigDeleteKeyCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write an example config.yaml to the current directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			const path = "config.yaml"
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(exampleConfig), 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			fmt.Printf("Wrote %s. Store secrets with: talkbot config set-key <name>\n", path)
			return nil
		},
	}
}

var knownKeys = []string{
	bot.KeyAPIKey,
	bot.KeyTelegramToken,
	bot.KeyDiscordToken,
	bot.KeyYandexOAuth,
}

func newConfigSetKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-key <name>",
		Short: "Store a credential in the OS keyring",
		Long: `Store a credential in the OS keyring (Secret Service, Keychain or
Credential Manager). The value is read from stdin.

Known names: ` + strings.Join(knownKeys, ", "),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			fmt.Printf("Value for %s: ", name)
			reader := bufio.NewReader(os.Stdin)
			value, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading value: %w", err)
			}
			value = strings.TrimSpace(value)
			if value == "" {
				return fmt.Errorf("empty value")
			}
			if err := bot.StoreSecret(name, value); err != nil {
				return fmt.Errorf("storing in keyring: %w", err)
			}
			fmt.Printf("Stored %s in the OS keyring.\n", name)
			return nil
		},
	}
}

func newConfigDeleteKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-key <name>",
		Short: "Remove a credential from the OS keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bot.DeleteSecret(args[0]); err != nil {
				return fmt.Errorf("deleting from keyring: %w", err)
			}
			fmt.Printf("Removed %s from the OS keyring.\n", args[0])
			return nil
		},
	}
}
