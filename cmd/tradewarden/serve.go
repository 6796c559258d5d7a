package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/tradewarden/internal/approval"
	"github.com/haasonsaas/tradewarden/internal/balance"
	"github.com/haasonsaas/tradewarden/internal/config"
	"github.com/haasonsaas/tradewarden/internal/dca"
	"github.com/haasonsaas/tradewarden/internal/intents"
	"github.com/haasonsaas/tradewarden/internal/ratelimit"
	"github.com/haasonsaas/tradewarden/internal/session"
	"github.com/haasonsaas/tradewarden/internal/telegram"
	"github.com/haasonsaas/tradewarden/internal/tokens"
)

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Telegram bot",
		Long: `Start the Telegram bot with the approval gate and DCA scheduler.

Graceful shutdown is handled on SIGINT/SIGTERM signals: long polling stops,
the cron scheduler drains running jobs, and pending approvals time out.`,
		Example: `  # Start with default config
  tradewarden serve

  # Start with custom config
  tradewarden serve --config /etc/tradewarden/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(),
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")

	return cmd
}

// defaultConfigPath prefers a local config file, falling back to env-only
// configuration when none exists.
func defaultConfigPath() string {
	if _, err := os.Stat("tradewarden.yaml"); err == nil {
		return "tradewarden.yaml"
	}
	return ""
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := buildLogger(cfg.Log, debug)
	slog.SetDefault(logger)

	client := intents.NewClient(
		intents.WithOneClickURL(cfg.Intents.OneClickURL),
		intents.WithBridgeURL(cfg.Intents.BridgeURL),
		intents.WithNearRPCURL(cfg.Intents.NearRPCURL),
		intents.WithLogger(logger),
	)

	tokenSvc := tokens.NewService(client,
		tokens.WithTTL(cfg.Tokens.TTL),
		tokens.WithLogger(logger),
	)
	balanceSvc := balance.NewService(client, tokenSvc,
		balance.WithTTL(cfg.Balance.TTL),
		balance.WithLogger(logger),
	)

	sessions := session.NewStore(session.WithMaxMessages(cfg.Session.MaxMessages))

	limiter := ratelimit.NewLimiter(ratelimit.DefaultConfig())
	b, err := bot.New(cfg.Telegram.Token,
		bot.WithMiddlewares(
			telegram.AllowlistMiddleware(cfg.Allowed, logger),
			telegram.RateLimitMiddleware(limiter, nil, logger),
		),
	)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}
	botClient := telegram.NewBotClient(b)

	notifier := telegram.NewNotifier(botClient,
		telegram.WithPromptTimeout(cfg.Approval.Timeout),
		telegram.WithNotifierLogger(logger),
	)
	approvals := approval.NewManager(
		approval.WithNotifier(notifier),
		approval.WithTimeout(cfg.Approval.Timeout),
		approval.WithLogger(logger),
	)
	telegram.NewCallbackHandler(approvals, notifier, botClient, logger).Register()
	telegram.NewCommands(botClient, balanceSvc, sessions, cfg.Wallet.AccountID, logger).Register()

	scheduler := dca.NewScheduler(dca.WithLogger(logger))

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting bot",
		"wallet", cfg.Wallet.AccountID,
		"allowed_users", len(cfg.Telegram.AllowedUserIDs),
		"approval_timeout", cfg.Approval.Timeout)

	botClient.Start(ctx)

	logger.Info("shutting down")
	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("scheduler drain timed out")
	}
	return nil
}

func buildLogger(cfg config.LogConfig, debug bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
