package dca

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haasonsaas/tradewarden/internal/tokens"
)

type fakeExchange struct {
	quote       SwapQuote
	quoteErr    error
	execErr     error
	wQuote      WithdrawQuote
	wQuoteErr   error
	wExecErr    error
	swapCount   int
	withdrawals int
}

func (f *fakeExchange) SwapQuote(ctx context.Context, req SwapRequest) (SwapQuote, error) {
	return f.quote, f.quoteErr
}

func (f *fakeExchange) ExecuteSwap(ctx context.Context, quote SwapQuote) (Execution, error) {
	if f.execErr != nil {
		return Execution{}, f.execErr
	}
	f.swapCount++
	return Execution{ExplorerLink: "https://explorer/tx/1"}, nil
}

func (f *fakeExchange) WithdrawQuote(ctx context.Context, req WithdrawRequest) (WithdrawQuote, error) {
	return f.wQuote, f.wQuoteErr
}

func (f *fakeExchange) ExecuteWithdraw(ctx context.Context, quote WithdrawQuote) (Execution, error) {
	if f.wExecErr != nil {
		return Execution{}, f.wExecErr
	}
	f.withdrawals++
	return Execution{ExplorerLink: "https://explorer/tx/2"}, nil
}

type fakeMessenger struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeMessenger) SendText(ctx context.Context, userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeMessenger) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type fakeTokens struct {
	byID map[string]tokens.Token
}

func (f *fakeTokens) Get(ctx context.Context, id string) (tokens.Token, bool) {
	tok, ok := f.byID[id]
	return tok, ok
}

func testCollaborators() (*Store, *fakeExchange, *fakeTokens, *fakeMessenger) {
	store := NewStore()
	exchange := &fakeExchange{
		quote:  SwapQuote{AmountInFormatted: "10", AmountOutFormatted: "0.0001", ExchangeRate: "0.00001"},
		wQuote: WithdrawQuote{AmountFormatted: "0.0001"},
	}
	source := &fakeTokens{byID: map[string]tokens.Token{
		"usdc": {IntentsTokenID: "usdc", Symbol: "USDC", Decimals: 6},
		"btc":  {IntentsTokenID: "btc", Symbol: "BTC", Decimals: 8},
	}}
	return store, exchange, source, &fakeMessenger{}
}

func testRule(store *Store, mutate func(*Rule)) Rule {
	rule := Rule{
		UserID:      7,
		FromTokenID: "usdc",
		ToTokenID:   "btc",
		FromSymbol:  "USDC",
		ToSymbol:    "BTC",
		Amount:      "10",
		Cron:        "0 * * * *",
	}
	if mutate != nil {
		mutate(&rule)
	}
	return store.Add(rule)
}

func TestRunner_Run(t *testing.T) {
	t.Run("executes the swap and reports the tx", func(t *testing.T) {
		store, exchange, source, msgr := testCollaborators()
		rule := testRule(store, nil)
		r := NewRunner(store, exchange, source, msgr, "wallet.near")

		r.Run(context.Background(), rule)

		if exchange.swapCount != 1 {
			t.Fatalf("expected 1 swap, got %d", exchange.swapCount)
		}
		if !strings.Contains(msgr.last(), "DCA swap executed") {
			t.Errorf("unexpected final notice: %q", msgr.last())
		}
		if exchange.withdrawals != 0 {
			t.Error("no withdrawal configured but one was executed")
		}
	})

	t.Run("stamps lastRunAt", func(t *testing.T) {
		store, exchange, source, msgr := testCollaborators()
		rule := testRule(store, nil)
		now := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)
		r := NewRunner(store, exchange, source, msgr, "wallet.near", WithRunnerNow(func() time.Time { return now }))

		r.Run(context.Background(), rule)

		got, _ := store.Get(rule.ID)
		if !got.LastRunAt.Equal(now) {
			t.Errorf("expected lastRunAt %v, got %v", now, got.LastRunAt)
		}
	})

	t.Run("dry run quotes without executing", func(t *testing.T) {
		store, exchange, source, msgr := testCollaborators()
		rule := testRule(store, func(r *Rule) { r.DryRun = true })
		r := NewRunner(store, exchange, source, msgr, "wallet.near")

		r.Run(context.Background(), rule)

		if exchange.swapCount != 0 {
			t.Error("dry run must not execute the swap")
		}
		if !strings.Contains(msgr.last(), "dry-run") {
			t.Errorf("unexpected notice: %q", msgr.last())
		}
	})

	t.Run("unsupported token fails the run with a notice", func(t *testing.T) {
		store, exchange, source, msgr := testCollaborators()
		rule := testRule(store, func(r *Rule) { r.ToTokenID = "delisted" })
		r := NewRunner(store, exchange, source, msgr, "wallet.near")

		r.Run(context.Background(), rule)

		if exchange.swapCount != 0 {
			t.Error("swap must not run for unsupported tokens")
		}
		if !strings.Contains(msgr.last(), "no longer supported") {
			t.Errorf("unexpected notice: %q", msgr.last())
		}
	})

	t.Run("quote failure ends the run", func(t *testing.T) {
		store, exchange, source, msgr := testCollaborators()
		exchange.quoteErr = errors.New("no liquidity")
		rule := testRule(store, nil)
		r := NewRunner(store, exchange, source, msgr, "wallet.near")

		r.Run(context.Background(), rule)

		if !strings.Contains(msgr.last(), "DCA run failed") {
			t.Errorf("unexpected notice: %q", msgr.last())
		}
	})

	t.Run("chains a withdrawal when configured", func(t *testing.T) {
		store, exchange, source, msgr := testCollaborators()
		rule := testRule(store, func(r *Rule) {
			r.Withdraw = &WithdrawTarget{Address: "bc1qexample", Chain: "bitcoin"}
		})
		r := NewRunner(store, exchange, source, msgr, "wallet.near")

		r.Run(context.Background(), rule)

		if exchange.withdrawals != 1 {
			t.Fatalf("expected 1 withdrawal, got %d", exchange.withdrawals)
		}
		if !strings.Contains(msgr.last(), "Withdraw completed") {
			t.Errorf("unexpected notice: %q", msgr.last())
		}
	})

	t.Run("withdraw failure warns but swap already counted", func(t *testing.T) {
		store, exchange, source, msgr := testCollaborators()
		exchange.wQuoteErr = errors.New("below minimum")
		rule := testRule(store, func(r *Rule) {
			r.Withdraw = &WithdrawTarget{Address: "bc1qexample"}
		})
		r := NewRunner(store, exchange, source, msgr, "wallet.near")

		r.Run(context.Background(), rule)

		if exchange.swapCount != 1 {
			t.Error("swap should have executed before the withdraw failure")
		}
		if !strings.Contains(msgr.last(), "Withdraw failed") {
			t.Errorf("unexpected notice: %q", msgr.last())
		}
	})
}
