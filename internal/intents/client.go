// Package intents talks to the NEAR intents settlement network: the 1Click
// token catalog, the POA bridge token registry, and the intents.near contract
// for balances. It fills the upstream interfaces of the tokens and balance
// packages.
package intents

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/haasonsaas/tradewarden/internal/balance"
	"github.com/haasonsaas/tradewarden/internal/tokens"
)

const (
	// DefaultOneClickBaseURL serves the tradable token list.
	DefaultOneClickBaseURL = "https://1click.chaindefuser.com"
	// DefaultBridgeURL is the POA bridge JSON-RPC endpoint.
	DefaultBridgeURL = "https://bridge.chaindefuser.com/rpc"
	// DefaultNearRPCURL is the NEAR JSON-RPC node used for contract reads.
	DefaultNearRPCURL = "https://rpc.mainnet.near.org"

	intentsContract = "intents.near"
	requestTimeout  = 15 * time.Second
)

// Client is a read-only client for the intents network.
type Client struct {
	httpClient  *http.Client
	oneClickURL string
	bridgeURL   string
	nearRPCURL  string
	logger      *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithOneClickURL overrides the 1Click base URL.
func WithOneClickURL(url string) Option {
	return func(cl *Client) {
		if url != "" {
			cl.oneClickURL = url
		}
	}
}

// WithBridgeURL overrides the POA bridge endpoint.
func WithBridgeURL(url string) Option {
	return func(cl *Client) {
		if url != "" {
			cl.bridgeURL = url
		}
	}
}

// WithNearRPCURL overrides the NEAR RPC endpoint.
func WithNearRPCURL(url string) Option {
	return func(cl *Client) {
		if url != "" {
			cl.nearRPCURL = url
		}
	}
}

// WithLogger configures the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// NewClient creates a client against the production endpoints unless
// overridden.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: requestTimeout},
		oneClickURL: DefaultOneClickBaseURL,
		bridgeURL:   DefaultBridgeURL,
		nearRPCURL:  DefaultNearRPCURL,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "intents")
	return c
}

type oneClickToken struct {
	AssetID         string  `json:"assetId"`
	Decimals        int     `json:"decimals"`
	Blockchain      string  `json:"blockchain"`
	Symbol          string  `json:"symbol"`
	Price           float64 `json:"price"`
	ContractAddress string  `json:"contractAddress"`
}

type bridgeToken struct {
	DefuseAssetIdentifier string `json:"defuse_asset_identifier"`
	NearTokenID           string `json:"near_token_id"`
	IntentsTokenID        string `json:"intents_token_id"`
	Decimals              int    `json:"decimals"`
	Standard              string `json:"standard"`
	MinDepositAmount      string `json:"min_deposit_amount"`
	MinWithdrawalAmount   string `json:"min_withdrawal_amount"`
	WithdrawalFee         string `json:"withdrawal_fee"`
}

// SupportedTokens merges the 1Click tradable list with the bridge registry.
// Only tokens present in both are usable end to end, so unmatched entries
// from either side are dropped.
func (c *Client) SupportedTokens(ctx context.Context) ([]tokens.Token, error) {
	var (
		tradable  []oneClickToken
		bridged   []bridgeToken
		tradErr   error
		bridgeErr error
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		bridged, bridgeErr = c.bridgeTokens(ctx)
	}()
	tradable, tradErr = c.oneClickTokens(ctx)
	<-done

	if tradErr != nil {
		return nil, fmt.Errorf("1click tokens: %w", tradErr)
	}
	if bridgeErr != nil {
		return nil, fmt.Errorf("bridge tokens: %w", bridgeErr)
	}

	byIntentsID := make(map[string]bridgeToken, len(bridged))
	for _, bt := range bridged {
		byIntentsID[bt.IntentsTokenID] = bt
	}

	out := make([]tokens.Token, 0, len(tradable))
	for _, oc := range tradable {
		bt, ok := byIntentsID[oc.AssetID]
		if !ok {
			continue
		}
		symbol := oc.Symbol
		if symbol == "wNEAR" && oc.Blockchain == "near" {
			symbol = "NEAR"
		}
		out = append(out, tokens.Token{
			ContractAddress:              oc.ContractAddress,
			IntentsTokenID:               bt.IntentsTokenID,
			NearTokenID:                  bt.NearTokenID,
			DefuseAssetID:                bt.DefuseAssetIdentifier,
			Standard:                     bt.Standard,
			Symbol:                       symbol,
			Blockchain:                   oc.Blockchain,
			Decimals:                     bt.Decimals,
			PriceUSD:                     fmt.Sprintf("%g", oc.Price),
			MinDepositAmount:             bt.MinDepositAmount,
			MinDepositAmountFormatted:    balance.FormatUnits(bt.MinDepositAmount, bt.Decimals),
			MinWithdrawalAmount:          bt.MinWithdrawalAmount,
			MinWithdrawalAmountFormatted: balance.FormatUnits(bt.MinWithdrawalAmount, bt.Decimals),
			WithdrawalFee:                bt.WithdrawalFee,
			WithdrawalFeeFormatted:       balance.FormatUnits(bt.WithdrawalFee, bt.Decimals),
		})
	}
	return out, nil
}

func (c *Client) oneClickTokens(ctx context.Context) ([]oneClickToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.oneClickURL+"/v0/tokens", nil)
	if err != nil {
		return nil, err
	}
	var out []oneClickToken
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) bridgeTokens(ctx context.Context) ([]bridgeToken, error) {
	var result struct {
		Tokens []bridgeToken `json:"tokens"`
	}
	if err := c.rpcCall(ctx, c.bridgeURL, "supported_tokens", []any{map[string]any{}}, &result); err != nil {
		return nil, err
	}
	return result.Tokens, nil
}

// BatchBalances reads mt_batch_balance_of on intents.near. The contract
// returns one smallest-unit decimal string per token id, index-aligned.
func (c *Client) BatchBalances(ctx context.Context, accountID string, tokenIDs []string) ([]string, error) {
	args, err := json.Marshal(map[string]any{
		"account_id": accountID,
		"token_ids":  tokenIDs,
	})
	if err != nil {
		return nil, err
	}

	// The node encodes the function return value as an array of byte values.
	var result struct {
		Result []int `json:"result"`
	}
	params := map[string]any{
		"request_type": "call_function",
		"finality":     "final",
		"account_id":   intentsContract,
		"method_name":  "mt_batch_balance_of",
		"args_base64":  base64.StdEncoding.EncodeToString(args),
	}
	if err := c.rpcCall(ctx, c.nearRPCURL, "query", params, &result); err != nil {
		return nil, fmt.Errorf("mt_batch_balance_of: %w", err)
	}

	raw := make([]byte, len(result.Result))
	for i, b := range result.Result {
		raw[i] = byte(b)
	}
	var amounts []string
	if err := json.Unmarshal(raw, &amounts); err != nil {
		return nil, fmt.Errorf("decode balances: %w", err)
	}
	if len(amounts) != len(tokenIDs) {
		return nil, fmt.Errorf("contract returned %d balances for %d tokens", len(amounts), len(tokenIDs))
	}
	return amounts, nil
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (e *rpcError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("rpc error %d: %s: %s", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) rpcCall(ctx context.Context, url, method string, params, result any) error {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      "tradewarden",
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := c.doJSON(req, &envelope); err != nil {
		return err
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	return json.Unmarshal(envelope.Result, result)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
