package tokens

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeCatalog struct {
	mu     sync.Mutex
	tokens []Token
	err    error
	calls  atomic.Int32
}

func (f *fakeCatalog) SupportedTokens(ctx context.Context) ([]Token, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens, f.err
}

var testTokens = []Token{
	{IntentsTokenID: "nep141:usdc.near", NearTokenID: "usdc.near", Symbol: "USDC", Blockchain: "near", Decimals: 6},
	{IntentsTokenID: "nep141:wrap.near", NearTokenID: "wrap.near", Symbol: "NEAR", Blockchain: "near", Decimals: 24},
	{IntentsTokenID: "nep141:btc.omft.near", DefuseAssetID: "btc", Symbol: "BTC", Blockchain: "bitcoin", Decimals: 8},
	{IntentsTokenID: "nep141:usdc.eth", Symbol: "USDC", Blockchain: "eth", Decimals: 6},
}

func TestService_Supported(t *testing.T) {
	t.Run("caches within TTL", func(t *testing.T) {
		cat := &fakeCatalog{tokens: testTokens}
		svc := NewService(cat)

		for i := 0; i < 3; i++ {
			if got := svc.Supported(context.Background()); len(got) != 4 {
				t.Fatalf("expected 4 tokens, got %d", len(got))
			}
		}
		if calls := cat.calls.Load(); calls != 1 {
			t.Errorf("expected 1 upstream call, got %d", calls)
		}
	})

	t.Run("degrades to empty on upstream failure", func(t *testing.T) {
		cat := &fakeCatalog{err: errors.New("catalog down")}
		svc := NewService(cat)

		if got := svc.Supported(context.Background()); got != nil {
			t.Errorf("expected nil on failure, got %v", got)
		}
	})

	t.Run("serves committed catalog after later failures within TTL", func(t *testing.T) {
		var mu sync.Mutex
		now := time.Now()
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}
		cat := &fakeCatalog{tokens: testTokens}
		svc := NewService(cat, WithClock(clock))

		if got := svc.Supported(context.Background()); len(got) != 4 {
			t.Fatalf("seed failed, got %d tokens", len(got))
		}

		cat.mu.Lock()
		cat.err = errors.New("catalog down")
		cat.mu.Unlock()

		// Still fresh, upstream untouched.
		if got := svc.Supported(context.Background()); len(got) != 4 {
			t.Errorf("expected cached catalog, got %d tokens", len(got))
		}

		// Expired: the failed refetch degrades to empty.
		mu.Lock()
		now = now.Add(DefaultTTL + time.Second)
		mu.Unlock()
		if got := svc.Supported(context.Background()); got != nil {
			t.Errorf("expected empty after failed refetch, got %v", got)
		}
	})
}

func TestService_Refresh(t *testing.T) {
	cat := &fakeCatalog{tokens: testTokens}
	svc := NewService(cat)

	svc.Supported(context.Background())
	svc.Refresh(context.Background())

	if calls := cat.calls.Load(); calls != 2 {
		t.Errorf("expected refresh to hit upstream, got %d calls", calls)
	}
}

func TestService_Get(t *testing.T) {
	svc := NewService(&fakeCatalog{tokens: testTokens})
	ctx := context.Background()

	tests := []struct {
		name   string
		query  string
		wantID string
		wantOK bool
	}{
		{"by intents id", "nep141:wrap.near", "nep141:wrap.near", true},
		{"by near id", "usdc.near", "nep141:usdc.near", true},
		{"by defuse asset id", "btc", "nep141:btc.omft.near", true},
		{"by symbol case-insensitive", "near", "nep141:wrap.near", true},
		{"unknown", "DOGE", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, ok := svc.Get(ctx, tt.query)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && tok.IntentsTokenID != tt.wantID {
				t.Errorf("got %s, want %s", tok.IntentsTokenID, tt.wantID)
			}
		})
	}
}

func TestService_SearchBySymbol(t *testing.T) {
	svc := NewService(&fakeCatalog{tokens: testTokens})
	ctx := context.Background()

	t.Run("exact matches symbol on every chain", func(t *testing.T) {
		got := svc.SearchBySymbol(ctx, "usdc", true, 0)
		if len(got) != 2 {
			t.Fatalf("expected 2 USDC tokens, got %d", len(got))
		}
	})

	t.Run("substring match", func(t *testing.T) {
		got := svc.SearchBySymbol(ctx, "SD", false, 0)
		if len(got) != 2 {
			t.Fatalf("expected 2 matches for SD, got %d", len(got))
		}
	})

	t.Run("limit caps results", func(t *testing.T) {
		got := svc.SearchBySymbol(ctx, "", false, 1)
		if len(got) != 1 {
			t.Fatalf("expected 1 result, got %d", len(got))
		}
	})
}

func TestService_ByBlockchain(t *testing.T) {
	svc := NewService(&fakeCatalog{tokens: testTokens})

	got := svc.ByBlockchain(context.Background(), "NEAR")
	if len(got) != 2 {
		t.Fatalf("expected 2 near tokens, got %d", len(got))
	}
	if got := svc.ByBlockchain(context.Background(), "solana"); got != nil {
		t.Errorf("expected no solana tokens, got %v", got)
	}
}
