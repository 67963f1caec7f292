package bridge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vibecoders-Team/dfsp-sub000/pow"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.SecretKey = testSecret
	cfg.LedgerAddress = "0xCA11CA11CA11CA11CA11CA11CA11CA11CA11CA11"
	return cfg
}

func TestConfig_Defaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultRedisAddr, cfg.RedisAddr)
	assert.Equal(t, DefaultPowDifficulty, cfg.PowDifficulty)
	assert.Equal(t, pow.AlgSHA256, cfg.Algorithm())
	assert.Equal(t, common.HexToAddress("0xCA11CA11CA11CA11CA11CA11CA11CA11CA11CA11"), cfg.Ledger())
}

func TestConfig_Validation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.SecretKey = "" }},
		{"short secret", func(c *Config) { c.SecretKey = "tooshort" }},
		{"zero chain id", func(c *Config) { c.ChainID = 0 }},
		{"bad ledger address", func(c *Config) { c.LedgerAddress = "not-an-address" }},
		{"missing ledger address", func(c *Config) { c.LedgerAddress = "" }},
		{"zero difficulty", func(c *Config) { c.PowDifficulty = 0 }},
		{"excessive difficulty", func(c *Config) { c.PowDifficulty = 65 }},
		{"unknown algorithm", func(c *Config) { c.PowAlgorithm = "md5" }},
		{"empty listen addr", func(c *Config) { c.ListenAddr = "" }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	raw := `
listen_addr: ":9999"
secret_key: "` + testSecret + `"
chain_id: 31337
ledger_address: "0xCA11CA11CA11CA11CA11CA11CA11CA11CA11CA11"
pow_difficulty: 12
pow_algorithm: "blake3"
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, int64(31337), cfg.ChainID)
	assert.Equal(t, 12, cfg.PowDifficulty)
	assert.Equal(t, pow.AlgBlake3, cfg.Algorithm())
	// Unset keys keep their defaults.
	assert.Equal(t, DefaultRedisAddr, cfg.RedisAddr)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DFSP_LISTEN_ADDR", ":7070")
	t.Setenv("DFSP_SECRET_KEY", testSecret)
	t.Setenv("DFSP_LEDGER_ADDRESS", "0xCA11CA11CA11CA11CA11CA11CA11CA11CA11CA11")
	t.Setenv("DFSP_POW_DIFFICULTY", "8")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, testSecret, cfg.SecretKey)
	assert.Equal(t, 8, cfg.PowDifficulty)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidAfterMerge(t *testing.T) {
	// A file that parses but fails validation.
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("secret_key: \"short\"\n"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfig_AsynqConfig(t *testing.T) {
	cfg := validConfig()
	qc := cfg.AsynqConfig()
	assert.Equal(t, cfg.Concurrency, qc.Concurrency)
	assert.Equal(t, 1, qc.Queues["low"])
}
