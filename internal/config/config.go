// Package config loads the bot configuration from a YAML file with
// environment variable expansion, then applies environment overrides for the
// secrets that never belong in a file.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full bot configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Wallet   WalletConfig   `yaml:"wallet"`
	Approval ApprovalConfig `yaml:"approval"`
	Session  SessionConfig  `yaml:"session"`
	Tokens   TokensConfig   `yaml:"tokens"`
	Balance  BalanceConfig  `yaml:"balance"`
	Intents  IntentsConfig  `yaml:"intents"`
	Log      LogConfig      `yaml:"log"`
}

// TelegramConfig configures the bot surface.
type TelegramConfig struct {
	// Token is the bot token from @BotFather (required).
	Token string `yaml:"token"`

	// AllowedUserIDs is the allowlist of Telegram user ids permitted to
	// talk to the bot (at least one required).
	AllowedUserIDs []int64 `yaml:"allowed_user_ids"`
}

// WalletConfig identifies the trading wallet.
type WalletConfig struct {
	// AccountID is the NEAR account holding the intents balances.
	AccountID string `yaml:"account_id"`
}

// ApprovalConfig tunes the human-approval gate.
type ApprovalConfig struct {
	// Timeout is how long a prompt waits for a decision.
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig tunes conversation history retention.
type SessionConfig struct {
	// MaxMessages caps the stored history per user.
	MaxMessages int `yaml:"max_messages"`
}

// TokensConfig tunes the token catalog cache.
type TokensConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// BalanceConfig tunes the balance cache.
type BalanceConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// IntentsConfig points at the settlement-network endpoints. Empty fields use
// the production defaults.
type IntentsConfig struct {
	OneClickURL string `yaml:"one_click_url"`
	BridgeURL   string `yaml:"bridge_url"`
	NearRPCURL  string `yaml:"near_rpc_url"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Load reads the YAML file at path, expands $VAR references against the
// environment, applies environment overrides, and validates. An empty path
// builds the configuration from environment variables alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))

		decoder := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && err != io.EOF {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays the well-known environment variables over file values.
func (c *Config) applyEnv() error {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("WALLET_ACCOUNT_ID"); v != "" {
		c.Wallet.AccountID = v
	}
	if v := os.Getenv("TELEGRAM_USER_IDS"); v != "" {
		ids, err := parseUserIDs(v)
		if err != nil {
			return fmt.Errorf("TELEGRAM_USER_IDS: %w", err)
		}
		c.Telegram.AllowedUserIDs = ids
	} else if v := os.Getenv("TELEGRAM_USER_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_USER_ID: %w", err)
		}
		c.Telegram.AllowedUserIDs = []int64{id}
	}
	return nil
}

// Validate checks required fields and applies defaults.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if len(c.Telegram.AllowedUserIDs) == 0 {
		return fmt.Errorf("at least one allowed telegram user id is required")
	}
	if c.Wallet.AccountID == "" {
		return fmt.Errorf("wallet account id is required")
	}

	if c.Approval.Timeout == 0 {
		c.Approval.Timeout = 30 * time.Second
	}
	if c.Session.MaxMessages == 0 {
		c.Session.MaxMessages = 20
	}
	if c.Tokens.TTL == 0 {
		c.Tokens.TTL = 5 * time.Minute
	}
	if c.Balance.TTL == 0 {
		c.Balance.TTL = 15 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	return nil
}

// Allowed reports whether userID is on the Telegram allowlist.
func (c *Config) Allowed(userID int64) bool {
	for _, id := range c.Telegram.AllowedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func parseUserIDs(csv string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
