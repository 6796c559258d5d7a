// Package main provides the CLI entry point for the tradewarden Telegram
// trading bot.
//
// Tradewarden fronts a NEAR intents trading wallet with a Telegram bot:
// every swap, transfer, withdrawal, or recurring-buy change is gated behind
// an inline confirm/reject prompt with a hard timeout, and recurring buys
// run on UTC cron schedules.
//
// # Basic Usage
//
// Start the bot:
//
//	tradewarden serve --config tradewarden.yaml
//
// # Environment Variables
//
//   - BOT_TOKEN: Telegram bot token from @BotFather
//   - WALLET_ACCOUNT_ID: NEAR account holding the intents balances
//   - TELEGRAM_USER_IDS: Comma-separated allowlist of Telegram user ids
//
// A .env file in the working directory is loaded when present.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tradewarden",
		Short: "Approval-gated Telegram trading bot for NEAR intents",
		Long: `Tradewarden fronts a NEAR intents trading wallet with a Telegram bot.

Every trading action is gated behind an inline confirm/reject prompt with a
hard timeout, and recurring buys run on UTC cron schedules.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(buildServeCmd(), buildVersionCmd())
	return rootCmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tradewarden %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
