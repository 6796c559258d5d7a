// Package balance reports per-token holdings of the trading wallet, cached
// with a short TTL so bursts of balance lookups hit the ledger once.
package balance

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/haasonsaas/tradewarden/internal/cache"
	"github.com/haasonsaas/tradewarden/internal/tokens"
)

// DefaultTTL is how long a fetched balance set stays fresh. Balances move
// with every settlement, so the window is deliberately short.
const DefaultTTL = 15 * time.Second

// TokenBalance is a nonzero holding of one supported token.
type TokenBalance struct {
	Token     tokens.Token
	Raw       string // Smallest-unit amount as returned by the ledger
	Formatted string // Human amount scaled by the token's decimals
}

// Ledger answers batched balance queries for one account. Amounts come back
// as decimal strings in smallest units, index-aligned with tokenIDs.
type Ledger interface {
	BatchBalances(ctx context.Context, accountID string, tokenIDs []string) ([]string, error)
}

// CatalogSource lists the tokens worth querying.
type CatalogSource interface {
	Supported(ctx context.Context) []tokens.Token
}

// Service caches wallet balances behind a shared loader. Lookups for the same
// wallet coalesce into a single ledger round trip, and an upstream failure
// degrades to an empty set rather than surfacing an error to callers.
type Service struct {
	ledger  Ledger
	catalog CatalogSource
	loader  *cache.Loader[string, []TokenBalance]
	logger  *slog.Logger
}

// ServiceOption configures the balance service.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// WithTTL overrides the balance freshness window.
func WithTTL(ttl time.Duration) ServiceOption {
	return func(c *serviceConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger configures the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(c *serviceConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the cache clock for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(c *serviceConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// NewService wires a balance service over the ledger and token catalog.
func NewService(ledger Ledger, catalog CatalogSource, opts ...ServiceOption) *Service {
	cfg := serviceConfig{
		ttl:    DefaultTTL,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Service{
		ledger:  ledger,
		catalog: catalog,
		loader:  cache.NewLoader[string, []TokenBalance](cfg.ttl, cache.WithClock[string, []TokenBalance](cfg.now)),
		logger:  cfg.logger.With("component", "balance"),
	}
}

// Balances returns the wallet's nonzero holdings, served from cache while
// fresh. A ledger failure yields an empty set.
func (s *Service) Balances(ctx context.Context, wallet string) []TokenBalance {
	out, err := s.loader.Get(ctx, wallet, s.fetch)
	if err != nil {
		s.logger.Warn("balance fetch failed", "wallet", wallet, "error", err)
		return nil
	}
	return out
}

// Refresh bypasses the freshness window and re-queries the ledger.
func (s *Service) Refresh(ctx context.Context, wallet string) []TokenBalance {
	out, err := s.loader.Refresh(ctx, wallet, s.fetch)
	if err != nil {
		s.logger.Warn("balance refresh failed", "wallet", wallet, "error", err)
		return nil
	}
	return out
}

// Invalidate drops the cached set for wallet, forcing the next lookup to the
// ledger. Called after a settlement changes holdings.
func (s *Service) Invalidate(wallet string) {
	s.loader.Invalidate(wallet)
}

func (s *Service) fetch(ctx context.Context, wallet string) ([]TokenBalance, error) {
	supported := s.catalog.Supported(ctx)
	if len(supported) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(supported))
	queried := make([]tokens.Token, 0, len(supported))
	for _, tok := range supported {
		id := tok.DefuseAssetID
		if id == "" {
			id = tok.IntentsTokenID
		}
		if id == "" {
			continue
		}
		ids = append(ids, id)
		queried = append(queried, tok)
	}

	raws, err := s.ledger.BatchBalances(ctx, wallet, ids)
	if err != nil {
		return nil, err
	}
	if len(raws) != len(ids) {
		return nil, fmt.Errorf("ledger returned %d balances for %d tokens", len(raws), len(ids))
	}

	var out []TokenBalance
	for i, raw := range raws {
		if raw == "" || raw == "0" {
			continue
		}
		out = append(out, TokenBalance{
			Token:     queried[i],
			Raw:       raw,
			Formatted: FormatUnits(raw, queried[i].Decimals),
		})
	}
	return out, nil
}

// FormatUnits scales a smallest-unit decimal string by 10^decimals and trims
// trailing fractional zeros, so "1500000" at 6 decimals reads "1.5".
func FormatUnits(raw string, decimals int) string {
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return "0"
	}
	if decimals <= 0 {
		return n.String()
	}

	sign := ""
	if n.Sign() < 0 {
		sign = "-"
		n.Neg(n)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(n, scale, new(big.Int))

	fracStr := frac.String()
	if pad := decimals - len(fracStr); pad > 0 {
		fracStr = strings.Repeat("0", pad) + fracStr
	}
	fracStr = strings.TrimRight(fracStr, "0")
	if fracStr == "" {
		return sign + whole.String()
	}
	return sign + whole.String() + "." + fracStr
}
