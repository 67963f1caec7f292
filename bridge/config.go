// Package bridge runs the gateway: an HTTP relay front end with
// proof-of-work admission, signature login, and background event
// processing over an asynq queue.
package bridge

import (
	"fmt"
	"os"
	"strconv"
	"time"

	z "github.com/Oudwins/zog"
	"github.com/ethereum/go-ethereum/common"
	"github.com/hibiken/asynq"
	yaml "gopkg.in/yaml.v2"

	"github.com/Vibecoders-Team/dfsp-sub000/pow"
)

const (
	DefaultListenAddr    = ":8090"
	DefaultRedisAddr     = "127.0.0.1:6379"
	DefaultPowDifficulty = 20
	DefaultPowTTL        = 2 * time.Minute
	DefaultSessionTTL    = time.Hour
	ShutdownTimeout      = 30 * time.Second
)

// Config is the gateway configuration, loaded from YAML with environment
// overrides.
type Config struct {
	ListenAddr    string `yaml:"listen_addr"`
	RedisAddr     string `yaml:"redis_addr"`
	SecretKey     string `yaml:"secret_key"`
	ChainID       int64  `yaml:"chain_id"`
	LedgerAddress string `yaml:"ledger_address"`
	DataDir       string `yaml:"data_dir"`
	PowDifficulty int    `yaml:"pow_difficulty"`
	PowAlgorithm  string `yaml:"pow_algorithm"`

	PowTTL      time.Duration `yaml:"pow_ttl"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
	Concurrency int           `yaml:"concurrency"`
}

var configSchema = z.Struct(z.Shape{
	"listenAddr": z.String().Required(z.Message("listen address is required")),
	"redisAddr":  z.String().Required(z.Message("redis address is required")),
	"secretKey": z.String().
		Required().
		Min(32, z.Message("secret key must be at least 32 characters")),
	"chainID": z.Int64().GT(0, z.Message("chain id must be positive")),
	"ledgerAddress": z.String().
		Required().
		TestFunc(func(s *string, _ z.Ctx) bool {
			return s != nil && common.IsHexAddress(*s)
		}, z.Message("ledger address must be a hex address")),
	"dataDir":       z.String().Required(z.Message("data directory is required")),
	"powDifficulty": z.Int().GTE(1).LTE(64, z.Message("pow difficulty must be between 1 and 64")),
	"powAlgorithm": z.String().OneOf(
		[]string{string(pow.AlgSHA256), string(pow.AlgBlake3)},
		z.Message("unsupported pow algorithm"),
	),
})

// DefaultConfig returns a config suitable for local development.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:    DefaultListenAddr,
		RedisAddr:     DefaultRedisAddr,
		ChainID:       1,
		DataDir:       "data",
		PowDifficulty: DefaultPowDifficulty,
		PowAlgorithm:  string(pow.AlgSHA256),
		PowTTL:        DefaultPowTTL,
		SessionTTL:    DefaultSessionTTL,
		Concurrency:   10,
	}
}

// LoadConfig reads a YAML config file (path may be empty for defaults
// only), applies environment overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DFSP_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("DFSP_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("DFSP_SECRET_KEY"); v != "" {
		c.SecretKey = v
	}
	if v := os.Getenv("DFSP_CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.ChainID = id
		}
	}
	if v := os.Getenv("DFSP_LEDGER_ADDRESS"); v != "" {
		c.LedgerAddress = v
	}
	if v := os.Getenv("DFSP_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("DFSP_POW_DIFFICULTY"); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			c.PowDifficulty = d
		}
	}
}

// Validate checks the config against the schema.
func (c *Config) Validate() error {
	if issues := configSchema.Validate(c); len(issues) > 0 {
		sanitized := z.Issues.SanitizeMap(issues)
		for field, msgs := range sanitized {
			if field == "$first" {
				continue
			}
			if len(msgs) > 0 {
				return fmt.Errorf("invalid config: %s: %s", field, msgs[0])
			}
		}
		return fmt.Errorf("invalid config")
	}
	return nil
}

// Ledger returns the configured ledger target address.
func (c *Config) Ledger() common.Address {
	return common.HexToAddress(c.LedgerAddress)
}

// Algorithm returns the configured proof-of-work hash.
func (c *Config) Algorithm() pow.Algorithm {
	return pow.Algorithm(c.PowAlgorithm)
}

// AsynqConfig builds the queue server configuration.
func (c *Config) AsynqConfig() asynq.Config {
	return asynq.Config{
		Concurrency: c.Concurrency,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
		ShutdownTimeout: ShutdownTimeout,
	}
}
