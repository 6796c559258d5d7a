// Package tokens serves the supported-token catalog from a TTL cache so that
// bursts of lookups do not hammer the upstream catalog services.
package tokens

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/haasonsaas/tradewarden/internal/cache"
)

// Token is one supported asset, as merged from the upstream catalogs.
type Token struct {
	ContractAddress              string
	IntentsTokenID               string
	NearTokenID                  string
	DefuseAssetID                string
	Standard                     string
	Symbol                       string
	Blockchain                   string
	Decimals                     int
	PriceUSD                     string
	MinDepositAmount             string
	MinDepositAmountFormatted    string
	MinWithdrawalAmount          string
	MinWithdrawalAmountFormatted string
	WithdrawalFee                string
	WithdrawalFeeFormatted       string
}

// Catalog is the upstream source of supported tokens.
type Catalog interface {
	SupportedTokens(ctx context.Context) ([]Token, error)
}

const (
	// DefaultTTL is how long a fetched catalog stays fresh.
	DefaultTTL = 5 * time.Minute

	// DefaultSearchLimit caps search results.
	DefaultSearchLimit = 50

	catalogKey = "supported"
)

// Service caches the token catalog and answers lookups against it. Upstream
// failures degrade to empty results; the caller sees fewer tokens, not an
// error.
type Service struct {
	catalog Catalog
	loader  *cache.Loader[string, []Token]
	logger  *slog.Logger
}

// ServiceOption configures the service.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	ttl    time.Duration
	logger *slog.Logger
	clock  func() time.Time
}

// WithTTL overrides the catalog freshness window.
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
			c.clock = now
		}
	}
}

// NewService creates a catalog service over the given upstream.
func NewService(catalog Catalog, opts ...ServiceOption) *Service {
	cfg := serviceConfig{ttl: DefaultTTL, logger: slog.Default(), clock: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Service{
		catalog: catalog,
		loader:  cache.NewLoader[string, []Token](cfg.ttl, cache.WithClock[string, []Token](cfg.clock)),
		logger:  cfg.logger.With("component", "tokens"),
	}
}

// Supported returns the supported tokens, served from cache within the TTL.
func (s *Service) Supported(ctx context.Context) []Token {
	toks, err := s.loader.Get(ctx, catalogKey, s.fetch)
	if err != nil {
		s.logger.Warn("fetch supported tokens", "error", err)
		return nil
	}
	return toks
}

// Refresh forces a catalog fetch, coalescing with any fetch in flight.
func (s *Service) Refresh(ctx context.Context) []Token {
	toks, err := s.loader.Refresh(ctx, catalogKey, s.fetch)
	if err != nil {
		s.logger.Warn("refresh supported tokens", "error", err)
		return nil
	}
	return toks
}

func (s *Service) fetch(ctx context.Context, _ string) ([]Token, error) {
	return s.catalog.SupportedTokens(ctx)
}

// Get finds a token by intents id, near id, defuse asset identifier or
// case-insensitive symbol.
func (s *Service) Get(ctx context.Context, idOrSymbol string) (Token, bool) {
	needle := strings.ToLower(idOrSymbol)
	for _, tok := range s.Supported(ctx) {
		if tok.IntentsTokenID == idOrSymbol ||
			tok.NearTokenID == idOrSymbol ||
			tok.DefuseAssetID == idOrSymbol ||
			strings.ToLower(tok.Symbol) == needle {
			return tok, true
		}
	}
	return Token{}, false
}

// SearchBySymbol returns tokens whose symbol matches. exact requires a full
// case-insensitive match, otherwise substring. limit <= 0 uses the default.
func (s *Service) SearchBySymbol(ctx context.Context, symbol string, exact bool, limit int) []Token {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	needle := strings.ToLower(strings.TrimSpace(symbol))

	var out []Token
	for _, tok := range s.Supported(ctx) {
		sym := strings.ToLower(tok.Symbol)
		if exact && sym != needle {
			continue
		}
		if !exact && !strings.Contains(sym, needle) {
			continue
		}
		out = append(out, tok)
		if len(out) == limit {
			break
		}
	}
	return out
}

// ByBlockchain returns all tokens on the given chain.
func (s *Service) ByBlockchain(ctx context.Context, blockchain string) []Token {
	needle := strings.ToLower(blockchain)

	var out []Token
	for _, tok := range s.Supported(ctx) {
		if strings.ToLower(tok.Blockchain) == needle {
			out = append(out, tok)
		}
	}
	return out
}
