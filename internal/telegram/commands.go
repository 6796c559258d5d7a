package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/haasonsaas/tradewarden/internal/balance"
	"github.com/haasonsaas/tradewarden/internal/session"
)

const balanceSeparator = "═══════════════════════════════"

// BalanceSource provides the wallet's current holdings.
type BalanceSource interface {
	Balances(ctx context.Context, wallet string) []balance.TokenBalance
}

// Commands handles the slash-command surface: /start, /help, /balances, /new.
type Commands struct {
	client   BotClient
	balances BalanceSource
	sessions *session.Store
	wallet   string
	logger   *slog.Logger
}

// NewCommands wires the command handlers.
func NewCommands(client BotClient, balances BalanceSource, sessions *session.Store, wallet string, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = slog.Default()
	}
	return &Commands{
		client:   client,
		balances: balances,
		sessions: sessions,
		wallet:   wallet,
		logger:   logger.With("component", "commands"),
	}
}

// Register installs the command handlers on the bot.
func (c *Commands) Register() {
	c.client.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.handleStart)
	c.client.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.handleHelp)
	c.client.RegisterHandler(bot.HandlerTypeMessageText, "/balances", bot.MatchTypeExact, c.handleBalances)
	c.client.RegisterHandler(bot.HandlerTypeMessageText, "/new", bot.MatchTypeExact, c.handleNew)
}

func (c *Commands) handleStart(ctx context.Context, _ *bot.Bot, update *models.Update) {
	text := `👋 *Welcome to Tradewarden*

Tradewarden guards your NEAR intents trading wallet on Telegram.
Every swap, transfer, or withdrawal waits for your explicit approval.

Use */help* to see all commands.`
	c.reply(ctx, update, text)
}

func (c *Commands) handleHelp(ctx context.Context, _ *bot.Bot, update *models.Update) {
	text := `📖 *Tradewarden — Help*

Available commands:
• */start* — welcome and quickstart guide
• */new* — start a new chat and reset context
• */balances* — show your wallet balances
• */help* — show this help message

Trading actions always present an inline Confirm/Reject prompt and are
cancelled automatically if you do not respond in time.`
	c.reply(ctx, update, text)
}

func (c *Commands) handleNew(ctx context.Context, _ *bot.Bot, update *models.Update) {
	userID := senderID(update)
	if userID == 0 {
		c.reply(ctx, update, "Unable to reset chat context right now. Please try again.")
		return
	}
	c.sessions.Reset(userID)
	c.reply(ctx, update, "Started a new chat. Your previous context was cleared.")
}

func (c *Commands) handleBalances(ctx context.Context, _ *bot.Bot, update *models.Update) {
	c.reply(ctx, update, "Loading balances...")

	holdings := c.balances.Balances(ctx, c.wallet)
	if len(holdings) == 0 {
		c.reply(ctx, update, "💼 *Your Portfolio*\n\nTotal Value: $0.00\n\nYou don't have any token balances yet.")
		return
	}

	var total float64
	lines := make([]string, 0, len(holdings))
	for _, h := range holdings {
		price, _ := strconv.ParseFloat(h.Token.PriceUSD, 64)
		amount, _ := strconv.ParseFloat(h.Formatted, 64)
		value := price * amount
		total += value

		lines = append(lines, fmt.Sprintf("%s *%s*\n   %s (%s)\n   Price: %s",
			tokenIcon(h.Token.Symbol), h.Token.Symbol, h.Formatted, formatUSD(value), formatUSD(price)))
	}

	text := fmt.Sprintf("💼 *Your Portfolio*\n\nTotal Value: *%s*\n\n%s\n\n%s",
		formatUSD(total), balanceSeparator, strings.Join(lines, "\n\n"+balanceSeparator+"\n\n"))
	c.reply(ctx, update, text)
}

func (c *Commands) reply(ctx context.Context, update *models.Update, text string) {
	if update.Message == nil {
		return
	}
	_, err := c.client.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    update.Message.Chat.ID,
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
	})
	if err != nil {
		c.logger.Warn("send reply", "chat", update.Message.Chat.ID, "error", err)
	}
}

func formatUSD(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}

func tokenIcon(symbol string) string {
	switch symbol {
	case "NEAR", "wNEAR":
		return "🪙"
	case "USDT", "USDC":
		return "💵"
	case "ETH", "WETH":
		return "Ξ"
	case "BTC":
		return "₿"
	case "DAI":
		return "◈"
	default:
		return "🪙"
	}
}
