package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config carries all runtime settings, loaded from VOTECHAIN_* environment
// variables.
type Config struct {
	ListenAddress string `envconfig:"LISTEN_ADDRESS" default:":8080"`
	DataDir       string `envconfig:"DATA_DIR" default:"data"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`

	RPCURL              string        `envconfig:"RPC_URL" default:"http://127.0.0.1:8545"`
	ContractAddress     string        `envconfig:"CONTRACT_ADDRESS"`
	SigningKey          string        `envconfig:"SIGNING_KEY"`
	ChainID             int64         `envconfig:"CHAIN_ID" default:"1337"`
	GasPriceWei         int64         `envconfig:"GAS_PRICE_WEI" default:"1000000000"`
	ConfirmationTimeout time.Duration `envconfig:"CONFIRMATION_TIMEOUT" default:"60s"`

	JWTSecret     string        `envconfig:"JWT_SECRET"`
	AdminTokenTTL time.Duration `envconfig:"ADMIN_TOKEN_TTL" default:"4h"`

	// BiometricMode selects the verifier implementation: "embedding" for the
	// real matcher, "accept-all" for the deterministic development double.
	BiometricMode  string  `envconfig:"BIOMETRIC_MODE" default:"embedding"`
	MatchThreshold float64 `envconfig:"MATCH_THRESHOLD" default:"0.6"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("votechain", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ContractAddress == "" {
		return errors.New("VOTECHAIN_CONTRACT_ADDRESS is required")
	}
	if c.SigningKey == "" {
		return errors.New("VOTECHAIN_SIGNING_KEY is required")
	}
	if c.JWTSecret == "" {
		return errors.New("VOTECHAIN_JWT_SECRET is required")
	}
	if c.ConfirmationTimeout <= 0 {
		return errors.New("confirmation timeout must be positive")
	}
	return nil
}
