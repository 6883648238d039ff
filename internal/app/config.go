package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (SOKO_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SOKO_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	JWTSecret   string `usage:"HMAC secret for signing bearer tokens (SOKO_JWT_SECRET)" flag:"jwt-secret"`
	RabbitURL   string `usage:"RabbitMQ URL; events are dropped when unset" flag:"rabbit-url"`

	// TaxRate and CashbackRate are decimal fractions, e.g. 0.16 for 16%
	// VAT and 0.01 for 1% cashback.
	TaxRate      string `default:"0.16" usage:"Tax fraction applied at checkout" flag:"tax-rate"`
	CashbackRate string `default:"0.01" usage:"Wallet cashback fraction on mobile money payments" flag:"cashback-rate"`

	Mpesa     MpesaConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// MpesaConfig holds the Daraja gateway credentials.
type MpesaConfig struct {
	BaseURL        string        `default:"https://sandbox.safaricom.co.ke" usage:"Daraja API base URL" flag:"mpesa-base-url"`
	ConsumerKey    string        `usage:"Daraja consumer key" flag:"mpesa-consumer-key"`
	ConsumerSecret string        `usage:"Daraja consumer secret" flag:"mpesa-consumer-secret"`
	ShortCode      string        `usage:"Business short code" flag:"mpesa-short-code"`
	Passkey        string        `usage:"STK push passkey" flag:"mpesa-passkey"`
	CallbackURL    string        `usage:"Public URL Daraja posts payment results to" flag:"mpesa-callback-url"`
	Timeout        time.Duration `default:"30s" usage:"Daraja request timeout" flag:"mpesa-timeout"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SOKO",
		Files:     []string{"config.yaml", "/etc/soko/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set SOKO_DATABASE_URL or DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT secret is required: set SOKO_JWT_SECRET")
	}
	if _, err := cfg.taxRate(); err != nil {
		return nil, err
	}
	if _, err := cfg.cashbackRate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) taxRate() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.TaxRate)
	if err != nil || d.IsNegative() {
		return decimal.Zero, errors.Errorf("invalid tax rate %q", c.TaxRate)
	}
	return d, nil
}

func (c *Config) cashbackRate() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.CashbackRate)
	if err != nil || d.IsNegative() {
		return decimal.Zero, errors.Errorf("invalid cashback rate %q", c.CashbackRate)
	}
	return d, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and
// PORT to the SOKO_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
