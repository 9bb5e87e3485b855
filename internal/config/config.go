package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gagliardetto/solana-go"
)

type Config struct {
	Env     string `env:"ENV" envDefault:"development"`
	Port    string `env:"PORT" envDefault:"8080"`
	Verbose bool   `env:"VERBOSE"`

	RedisURL  string `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	RPCEndpoint string `env:"SOLANA_RPC_URL" envDefault:"https://api.devnet.solana.com"`
	WSEndpoint  string `env:"SOLANA_WS_URL" envDefault:"wss://api.devnet.solana.com"`
	ProgramID   string `env:"PROGRAM_ID"`
	BackendKey  string `env:"BACKEND_PRIVATE_KEY"`

	EntryFeeLamports    uint64        `env:"ENTRY_FEE_LAMPORTS" envDefault:"10000000"`
	SignerFloorLamports uint64        `env:"SIGNER_MIN_BALANCE_LAMPORTS" envDefault:"50000000"`
	VaultReserve        uint64        `env:"POT_VAULT_RESERVE_LAMPORTS" envDefault:"890880"`
	ConfirmTimeout      time.Duration `env:"CONFIRM_TIMEOUT" envDefault:"60s"`
	SignerCheckInterval time.Duration `env:"SIGNER_CHECK_INTERVAL" envDefault:"1m"`

	OracleURL      string        `env:"ORACLE_URL"`
	OracleAPIKey   string        `env:"ORACLE_API_KEY"`
	OracleContract string        `env:"ORACLE_CONTRACT"`
	OracleTimeout  time.Duration `env:"ORACLE_TIMEOUT" envDefault:"10s"`
	OracleRPS      float64       `env:"ORACLE_RPS" envDefault:"5"`

	RelayBroker string `env:"RELAY_BROKER" envDefault:"memory"`
	RelaySecret string `env:"RELAY_SECRET"`
	// DisableChainWatcher stops the log subscription; pot updates are then
	// published only for writes this service submits.
	DisableChainWatcher bool `env:"DISABLE_CHAIN_WATCHER"`

	IPRateLimitPerMinute int `env:"IP_RATE_LIMIT_PER_MINUTE" envDefault:"120"`
	IPRateLimitBurst     int `env:"IP_RATE_LIMIT_BURST" envDefault:"20"`

	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL"`
	SentryDSN       string `env:"SENTRY_DSN"`
}

// Load parses the environment. Call godotenv.Load first to pick up a .env file.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.ProgramID == "" {
		return errors.New("PROGRAM_ID is required")
	}
	if _, err := solana.PublicKeyFromBase58(c.ProgramID); err != nil {
		return fmt.Errorf("invalid PROGRAM_ID: %w", err)
	}
	if c.BackendKey == "" {
		return errors.New("BACKEND_PRIVATE_KEY is required")
	}
	if c.OracleURL == "" {
		return errors.New("ORACLE_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.EntryFeeLamports == 0 {
		return errors.New("ENTRY_FEE_LAMPORTS must be positive")
	}
	if c.IPRateLimitPerMinute <= 0 {
		return errors.New("IP_RATE_LIMIT_PER_MINUTE must be positive")
	}
	switch c.RelayBroker {
	case "memory", "redis":
	default:
		return fmt.Errorf("RELAY_BROKER must be memory or redis, got %q", c.RelayBroker)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) MustProgramID() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(c.ProgramID)
}
