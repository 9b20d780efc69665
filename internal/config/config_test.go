package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 1000, cfg.Market.CommissionBps)
	assert.Equal(t, 72*time.Hour, cfg.Market.NegotiationTTL)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9090"
database:
  driver: mysql
  dsn: "root:root@tcp(localhost:3306)/market?parseTime=true"
market:
  negotiation_ttl: 24h
  commission_bps: 750
pricing:
  rate_limit: 5
`), 0o644))

	t.Setenv("MARKET_MARKET__COMMISSION_BPS", "500")
	t.Setenv("MARKET_REDIS__ADDR", "localhost:6379")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Market.NegotiationTTL)
	assert.Equal(t, 500, cfg.Market.CommissionBps)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 5, cfg.Pricing.RateLimit)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	// untouched defaults survive
	assert.Equal(t, ":50051", cfg.GRPC.Addr)
	assert.Equal(t, 10, cfg.Orders.Workers)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().HTTP.Addr, cfg.HTTP.Addr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"driver", func(c *Config) { c.Database.Driver = "postgres" }},
		{"dsn", func(c *Config) { c.Database.DSN = "" }},
		{"provider", func(c *Config) { c.LLM.Provider = "anthropic" }},
		{"format", func(c *Config) { c.Log.Format = "xml" }},
		{"workers", func(c *Config) { c.Orders.Workers = 0 }},
		{"commission", func(c *Config) { c.Market.CommissionBps = 20000 }},
		{"ttl", func(c *Config) { c.Market.NegotiationTTL = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
