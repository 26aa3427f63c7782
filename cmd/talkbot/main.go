// Package main is the CLI entry point of the NeuroAPI talk bot.
package main

import (
	"fmt"
	"os"

	"github.com/hleserg/neuroapi-talk-bot/cmd/talkbot/commands"
)

// version is injected at build time via ldflags.
var version = "dev"

func main() {
	rootCmd := commands.NewRootCmd(version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
