// Package config loads marketplace settings from YAML, .env and MARKET_*
// environment variables, in that order of precedence (later wins).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "MARKET_"

type Config struct {
	HTTP     HTTPConfig     `yaml:"http" koanf:"http"`
	GRPC     GRPCConfig     `yaml:"grpc" koanf:"grpc"`
	Log      LogConfig      `yaml:"log" koanf:"log"`
	Database DatabaseConfig `yaml:"database" koanf:"database"`
	Redis    RedisConfig    `yaml:"redis" koanf:"redis"`
	Blob     BlobConfig     `yaml:"blob" koanf:"blob"`
	LLM      LLMConfig      `yaml:"llm" koanf:"llm"`
	Orders   OrdersConfig   `yaml:"orders" koanf:"orders"`
	Market   MarketConfig   `yaml:"market" koanf:"market"`
	Pricing  PricingConfig  `yaml:"pricing" koanf:"pricing"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" koanf:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins" koanf:"allowed_origins"`
	RequestTimeout  time.Duration `yaml:"request_timeout" koanf:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" koanf:"shutdown_timeout"`
	// TrustProxyHeaders reads the client IP from X-Forwarded-For; only
	// safe behind a proxy that sets it.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers" koanf:"trust_proxy_headers"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr" koanf:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"` // json or console
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver" koanf:"driver"` // mysql or sqlite
	DSN             string        `yaml:"dsn" koanf:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" koanf:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" koanf:"conn_max_lifetime"`
}

// RedisConfig with an empty Addr selects the in-process cache.
type RedisConfig struct {
	Addr     string `yaml:"addr" koanf:"addr"`
	Password string `yaml:"password" koanf:"password"`
	DB       int    `yaml:"db" koanf:"db"`
	PoolSize int    `yaml:"pool_size" koanf:"pool_size"`
}

// BlobConfig with an empty Bucket keeps statements in memory.
type BlobConfig struct {
	Endpoint       string `yaml:"endpoint" koanf:"endpoint"`
	Region         string `yaml:"region" koanf:"region"`
	Bucket         string `yaml:"bucket" koanf:"bucket"`
	Prefix         string `yaml:"prefix" koanf:"prefix"`
	AccessKey      string `yaml:"access_key" koanf:"access_key"`
	SecretKey      string `yaml:"secret_key" koanf:"secret_key"`
	UseSSL         bool   `yaml:"use_ssl" koanf:"use_ssl"`
	ForcePathStyle bool   `yaml:"force_path_style" koanf:"force_path_style"`
}

type LLMConfig struct {
	Provider string `yaml:"provider" koanf:"provider"` // gemini or openai
	Model    string `yaml:"model" koanf:"model"`
	APIKey   string `yaml:"api_key" koanf:"api_key"`
	BaseURL  string `yaml:"base_url" koanf:"base_url"`
}

type OrdersConfig struct {
	Workers   int `yaml:"workers" koanf:"workers"`
	QueueSize int `yaml:"queue_size" koanf:"queue_size"`
}

type MarketConfig struct {
	CommissionBps  int           `yaml:"commission_bps" koanf:"commission_bps"`
	NegotiationTTL time.Duration `yaml:"negotiation_ttl" koanf:"negotiation_ttl"`
	SweepInterval  time.Duration `yaml:"sweep_interval" koanf:"sweep_interval"`
	MinPayoutCents int64         `yaml:"min_payout_cents" koanf:"min_payout_cents"`
}

type PricingConfig struct {
	CacheTTL   time.Duration `yaml:"cache_ttl" koanf:"cache_ttl"`
	RateLimit  int           `yaml:"rate_limit" koanf:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window" koanf:"rate_window"`
}

func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		GRPC: GRPCConfig{Addr: ":50051"},
		Log:  LogConfig{Level: "info", Format: "json"},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "marketplace.db",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{PoolSize: 100},
		Blob:  BlobConfig{Region: "us-east-1", Prefix: "marketplace"},
		LLM:   LLMConfig{Provider: "gemini"},
		Orders: OrdersConfig{
			Workers:   10,
			QueueSize: 10000,
		},
		Market: MarketConfig{
			CommissionBps:  1000,
			NegotiationTTL: 72 * time.Hour,
			SweepInterval:  5 * time.Minute,
			MinPayoutCents: 1000,
		},
		Pricing: PricingConfig{
			CacheTTL:   15 * time.Minute,
			RateLimit:  30,
			RateWindow: time.Minute,
		},
	}
}

// Load reads path (optional; a missing file is not an error), then .env,
// then MARKET_* variables. Nested keys use a double underscore:
// MARKET_DATABASE__DSN sets database.dsn.
func Load(path string) (*Config, error) {
	// .env values never override variables already in the environment.
	_ = godotenv.Load()

	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv(APIKeyEnvVar(cfg.LLM.Provider))
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// APIKeyEnvVar returns the conventional variable holding the provider key.
func APIKeyEnvVar(provider string) string {
	switch provider {
	case "gemini", "google":
		return "GEMINI_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("invalid database.driver %q: must be mysql or sqlite", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	switch c.LLM.Provider {
	case "gemini", "google", "openai":
	default:
		return fmt.Errorf("invalid llm.provider %q: must be gemini or openai", c.LLM.Provider)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log.format %q: must be json or console", c.Log.Format)
	}
	if c.Orders.Workers <= 0 {
		return fmt.Errorf("orders.workers must be positive")
	}
	if c.Orders.QueueSize <= 0 {
		return fmt.Errorf("orders.queue_size must be positive")
	}
	if c.Market.CommissionBps < 0 || c.Market.CommissionBps > 10000 {
		return fmt.Errorf("market.commission_bps must be between 0 and 10000")
	}
	if c.Market.NegotiationTTL <= 0 || c.Market.SweepInterval <= 0 {
		return fmt.Errorf("market.negotiation_ttl and market.sweep_interval must be positive")
	}
	if c.Market.MinPayoutCents < 0 {
		return fmt.Errorf("market.min_payout_cents must be non-negative")
	}
	if c.Pricing.RateLimit < 0 {
		return fmt.Errorf("pricing.rate_limit must be non-negative")
	}
	return nil
}
