// Package telegram is the bot-facing surface: it renders approval prompts
// with confirm/reject keyboards, routes button presses back into the approval
// registry, and delivers scheduled-run notices.
package telegram

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/haasonsaas/tradewarden/internal/approval"
)

// Notifier sends approval prompts and plain notices over Telegram. It
// implements the approval manager's dispatch interface and the DCA runner's
// messenger.
type Notifier struct {
	client  BotClient
	timeout time.Duration
	logger  *slog.Logger
}

// NotifierOption configures the notifier.
type NotifierOption func(*Notifier)

// WithPromptTimeout sets the timeout rendered in prompt text. It should match
// the approval manager's deadline.
func WithPromptTimeout(d time.Duration) NotifierOption {
	return func(n *Notifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithNotifierLogger configures the notifier logger.
func WithNotifierLogger(logger *slog.Logger) NotifierOption {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNotifier creates a notifier over the given bot client.
func NewNotifier(client BotClient, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		client:  client,
		timeout: approval.DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With("component", "telegram")
	return n
}

// SendRequest delivers the approval prompt with its confirm/reject keyboard
// and returns the sent message id.
func (n *Notifier) SendRequest(ctx context.Context, userID int64, id string, payload approval.Payload) (int, error) {
	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "✅ Confirm", CallbackData: approval.CallbackData(approval.ActionConfirm, id)},
			{Text: "❌ Reject", CallbackData: approval.CallbackData(approval.ActionReject, id)},
		}},
	}

	msg, err := n.client.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      userID,
		Text:        RequestText(payload, n.timeout),
		ReplyMarkup: keyboard,
	})
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// DeleteRequest removes a stale approval prompt.
func (n *Notifier) DeleteRequest(ctx context.Context, userID int64, messageID int) error {
	_, err := n.client.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    userID,
		MessageID: messageID,
	})
	return err
}

// Finalize rewrites the prompt with the decision outcome, falling back to a
// fresh message when the edit fails (the prompt may have been deleted).
func (n *Notifier) Finalize(ctx context.Context, userID int64, messageID int, approved bool, payload approval.Payload) {
	text := FinalText(approved, payload)

	if messageID != 0 {
		_, err := n.client.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    userID,
			MessageID: messageID,
			Text:      text,
		})
		if err == nil {
			return
		}
		n.logger.Warn("edit approval prompt, sending fallback", "user", userID, "error", err)
	}

	if err := n.SendText(ctx, userID, text); err != nil {
		n.logger.Error("send approval outcome", "user", userID, "error", err)
	}
}

// SendText delivers a plain text notice to the user.
func (n *Notifier) SendText(ctx context.Context, userID int64, text string) error {
	_, err := n.client.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: userID,
		Text:   text,
	})
	return err
}
