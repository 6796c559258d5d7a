package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/haasonsaas/tradewarden/internal/ratelimit"
)

// AllowlistMiddleware drops updates from users outside the allowlist before
// any handler sees them. Updates with no identifiable sender are dropped too.
func AllowlistMiddleware(allowed func(int64) bool, logger *slog.Logger) bot.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "allowlist")

	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			userID := senderID(update)
			if userID == 0 || !allowed(userID) {
				logger.Warn("update dropped", "user", userID)
				return
			}
			next(ctx, b, update)
		}
	}
}

// RateLimitMiddleware rejects message floods per user. Callback presses are
// exempt: an approval decision should never bounce off the limiter. The
// client is used for the rejection notice; when nil the live bot from the
// update is used instead.
func RateLimitMiddleware(limiter *ratelimit.Limiter, client BotClient, logger *slog.Logger) bot.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ratelimit")

	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				next(ctx, b, update)
				return
			}

			userID := update.Message.From.ID
			allowed, retryAfter := limiter.Allow(userID)
			if allowed {
				next(ctx, b, update)
				return
			}

			wait := int(math.Ceil(retryAfter.Seconds()))
			logger.Warn("rate limited", "user", userID, "retry_after", retryAfter)

			sender := client
			if sender == nil && b != nil {
				sender = NewBotClient(b)
			}
			if sender == nil {
				return
			}
			_, err := sender.SendMessage(ctx, &bot.SendMessageParams{
				ChatID: update.Message.Chat.ID,
				Text:   fmt.Sprintf("Too many requests. Please wait %d seconds before trying again.", wait),
			})
			if err != nil {
				logger.Warn("send rate limit notice", "user", userID, "error", err)
			}
		}
	}
}

func senderID(update *models.Update) int64 {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID
	case update.EditedMessage != nil && update.EditedMessage.From != nil:
		return update.EditedMessage.From.ID
	default:
		return 0
	}
}
