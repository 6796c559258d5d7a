package telegram

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/haasonsaas/tradewarden/internal/approval"
)

const (
	expiredText      = "This approval request has expired or was already handled"
	unauthorizedText = "You are not allowed to approve this action"
	noIdentityText   = "Unable to identify user for this approval"
)

// CallbackHandler routes approval keyboard presses into the approval
// registry and finalizes the prompt with the outcome.
type CallbackHandler struct {
	approvals *approval.Manager
	notifier  *Notifier
	client    BotClient
	logger    *slog.Logger
}

// NewCallbackHandler wires a callback handler over the approval registry.
func NewCallbackHandler(approvals *approval.Manager, notifier *Notifier, client BotClient, logger *slog.Logger) *CallbackHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackHandler{
		approvals: approvals,
		notifier:  notifier,
		client:    client,
		logger:    logger.With("component", "approval-callback"),
	}
}

// Register installs the handler for approval callback data.
func (h *CallbackHandler) Register() {
	h.client.RegisterHandler(bot.HandlerTypeCallbackQueryData, "approval_", bot.MatchTypePrefix, h.Handle)
}

// Handle processes one button press. The pending snapshot is read before
// Resolve removes the entry, so the final prompt text can still be rendered
// after the decision lands.
func (h *CallbackHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	q := update.CallbackQuery
	if q == nil {
		return
	}

	action, id, ok := approval.ParseCallback(q.Data)
	if !ok {
		return
	}

	userID := q.From.ID
	if userID == 0 {
		h.answer(ctx, q.ID, noIdentityText, true)
		return
	}

	pending, ok := h.approvals.Lookup(id)
	if !ok {
		h.answer(ctx, q.ID, expiredText, true)
		return
	}

	decision := approval.DecisionRejected
	if action == approval.ActionConfirm {
		decision = approval.DecisionApproved
	}

	if err := h.approvals.Resolve(id, decision, userID); err != nil {
		text := expiredText
		if errors.Is(err, approval.ErrUnauthorized) {
			text = unauthorizedText
		}
		h.answer(ctx, q.ID, text, true)
		return
	}

	approved := decision == approval.DecisionApproved
	ack := "Transaction rejected"
	if approved {
		ack = "Transaction approved"
	}
	h.answer(ctx, q.ID, ack, false)

	h.notifier.Finalize(ctx, userID, pending.MessageID, approved, pending.Payload)
}

func (h *CallbackHandler) answer(ctx context.Context, queryID, text string, alert bool) {
	_, err := h.client.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
		Text:            text,
		ShowAlert:       alert,
	})
	if err != nil {
		h.logger.Warn("answer callback query", "error", err)
	}
}
