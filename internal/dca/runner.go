package dca

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/haasonsaas/tradewarden/internal/tokens"
)

// SwapRequest asks the settlement network for a swap quote.
type SwapRequest struct {
	Wallet      string
	FromTokenID string
	ToTokenID   string
	Amount      string
}

// SwapQuote is a priced swap ready for execution.
type SwapQuote struct {
	AmountInFormatted  string
	AmountOutFormatted string
	ExchangeRate       string
	Deadline           time.Time
}

// WithdrawRequest asks for a withdrawal quote to an external address.
type WithdrawRequest struct {
	Wallet             string
	DestinationAddress string
	AssetID            string
	Amount             string
	Decimals           int
}

// WithdrawQuote is a priced withdrawal ready for execution.
type WithdrawQuote struct {
	AmountFormatted string
	FeeFormatted    string
}

// Execution is the outcome of a settled operation.
type Execution struct {
	ExplorerLink string
}

// Exchange is the settlement-network boundary. Quoting and execution against
// the network live outside this module; the runner only sequences them.
type Exchange interface {
	SwapQuote(ctx context.Context, req SwapRequest) (SwapQuote, error)
	ExecuteSwap(ctx context.Context, quote SwapQuote) (Execution, error)
	WithdrawQuote(ctx context.Context, req WithdrawRequest) (WithdrawQuote, error)
	ExecuteWithdraw(ctx context.Context, quote WithdrawQuote) (Execution, error)
}

// Messenger delivers run notices to the rule owner.
type Messenger interface {
	SendText(ctx context.Context, userID int64, text string) error
}

// TokenSource resolves tokens by intents token id.
type TokenSource interface {
	Get(ctx context.Context, id string) (tokens.Token, bool)
}

// Runner executes one firing of a rule: quote, swap, optional chained
// withdrawal, with a notice to the owner at every outcome. It never panics
// into the scheduler; failures end the run with a message.
type Runner struct {
	store     *Store
	exchange  Exchange
	tokens    TokenSource
	messenger Messenger
	wallet    string
	logger    *slog.Logger
	now       func() time.Time
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRunnerNow overrides the clock for tests.
func WithRunnerNow(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRunnerLogger configures the runner logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner wires a runner over the rule store and its collaborators.
func NewRunner(store *Store, exchange Exchange, source TokenSource, messenger Messenger, wallet string, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:     store,
		exchange:  exchange,
		tokens:    source,
		messenger: messenger,
		wallet:    wallet,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "dca-runner")
	return r
}

// Run executes one firing of the rule.
func (r *Runner) Run(ctx context.Context, rule Rule) {
	runID := newRunID()
	r.store.Touch(rule.ID, r.now())
	log := r.logger.With("rule", rule.ID, "run", runID)

	r.notify(ctx, rule.UserID, fmt.Sprintf("⏱️ DCA run started (%s)\n%s → %s %s",
		runID, rule.FromSymbol, rule.ToSymbol, rule.Amount))

	fromToken, okFrom := r.tokens.Get(ctx, rule.FromTokenID)
	toToken, okTo := r.tokens.Get(ctx, rule.ToTokenID)
	if !okFrom || !okTo {
		log.Warn("token no longer supported", "from", rule.FromTokenID, "to", rule.ToTokenID)
		r.notify(ctx, rule.UserID, fmt.Sprintf("❌ DCA run failed (%s): Token not found or no longer supported.", runID))
		return
	}

	quote, err := r.exchange.SwapQuote(ctx, SwapRequest{
		Wallet:      r.wallet,
		FromTokenID: fromToken.IntentsTokenID,
		ToTokenID:   toToken.IntentsTokenID,
		Amount:      rule.Amount,
	})
	if err != nil {
		log.Warn("swap quote failed", "error", err)
		r.notify(ctx, rule.UserID, fmt.Sprintf("❌ DCA run failed (%s): %v", runID, err))
		return
	}

	if rule.DryRun {
		r.notify(ctx, rule.UserID, fmt.Sprintf("✅ DCA dry-run (%s)\n%s %s → %s %s\nRate: %s",
			runID, quote.AmountInFormatted, fromToken.Symbol, quote.AmountOutFormatted, toToken.Symbol, quote.ExchangeRate))
		return
	}

	swap, err := r.exchange.ExecuteSwap(ctx, quote)
	if err != nil {
		log.Error("swap execution failed", "error", err)
		r.notify(ctx, rule.UserID, fmt.Sprintf("❌ DCA swap failed (%s): %v", runID, err))
		return
	}

	r.notify(ctx, rule.UserID, fmt.Sprintf("✅ DCA swap executed (%s)\n%s %s → %s %s\nTx: %s",
		runID, quote.AmountInFormatted, fromToken.Symbol, quote.AmountOutFormatted, toToken.Symbol, swap.ExplorerLink))

	if rule.Withdraw == nil {
		return
	}

	withdrawQuote, err := r.exchange.WithdrawQuote(ctx, WithdrawRequest{
		Wallet:             r.wallet,
		DestinationAddress: rule.Withdraw.Address,
		AssetID:            toToken.IntentsTokenID,
		Amount:             quote.AmountOutFormatted,
		Decimals:           toToken.Decimals,
	})
	if err != nil {
		log.Warn("withdraw quote failed", "error", err)
		r.notify(ctx, rule.UserID, fmt.Sprintf("⚠️ Withdraw failed (%s): %v", runID, err))
		return
	}

	withdrawal, err := r.exchange.ExecuteWithdraw(ctx, withdrawQuote)
	if err != nil {
		log.Error("withdraw execution failed", "error", err)
		r.notify(ctx, rule.UserID, fmt.Sprintf("⚠️ Withdraw failed (%s): %v", runID, err))
		return
	}

	r.notify(ctx, rule.UserID, fmt.Sprintf("✅ Withdraw completed (%s)\n%s %s → %s\nTx: %s",
		runID, withdrawQuote.AmountFormatted, toToken.Symbol, rule.Withdraw.Address, withdrawal.ExplorerLink))
}

func (r *Runner) notify(ctx context.Context, userID int64, text string) {
	if err := r.messenger.SendText(ctx, userID, text); err != nil {
		r.logger.Warn("send run notice", "user", userID, "error", err)
	}
}

func newRunID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%06d", time.Now().UnixNano()%1000000)
	}
	for i := range buf {
		buf[i] = idCharset[int(buf[i])%len(idCharset)]
	}
	return string(buf)
}
