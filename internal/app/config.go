package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/railmeal/internal/breaker"
	"github.com/xenking/railmeal/internal/ledger"
	"github.com/xenking/railmeal/internal/razorpay"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (RAILMEAL_ prefix), flags, or YAML config files.
// Secrets are never logged; prefer the *File variants pointing at mounted
// secrets over plain values.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Backend   BackendConfig
	Auth      AuthConfig
	Razorpay  RazorpayConfig
	Checkout  CheckoutConfig
	Session   SessionConfig
	Breaker   breaker.Config
	Redis     RedisConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// BackendConfig points at the RailMeal REST API owning orders and wallets.
type BackendConfig struct {
	URL     string        `usage:"RailMeal backend base URL" flag:"backend-url"`
	Timeout time.Duration `default:"10s" usage:"Per-request backend timeout"`
}

// AuthConfig verifies bearer tokens issued by the backend.
type AuthConfig struct {
	JWTSecret     string `env:"JWT_SECRET" flag:"jwt-secret" usage:"Shared HMAC secret of backend tokens"`
	JWTSecretFile string `env:"JWT_SECRET_FILE" flag:"jwt-secret-file" usage:"File holding the JWT secret"`
}

// RazorpayConfig holds the payment gateway account.
type RazorpayConfig struct {
	KeyID         string        `usage:"Public Razorpay key id"`
	KeySecret     string        `usage:"Razorpay key secret"`
	KeySecretFile string        `usage:"File holding the Razorpay key secret"`
	BaseURL       string        `default:"https://api.razorpay.com/v1" usage:"Razorpay API base URL"`
	Currency      string        `default:"INR" usage:"Currency of payment intents"`
	Timeout       time.Duration `default:"10s" usage:"Per-request gateway timeout"`
}

// CheckoutConfig prices carts.
type CheckoutConfig struct {
	TaxRate string `default:"0.05" usage:"Tax rate applied on top of the cart total"`
}

// Rate parses TaxRate.
func (c CheckoutConfig) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse tax rate")
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, errors.Errorf("tax rate %s out of range [0, 1)", rate)
	}
	return rate, nil
}

// SessionConfig controls session lifetime.
type SessionConfig struct {
	IdleTimeout   time.Duration `default:"30m" usage:"Idle time before a session is torn down"`
	SweepInterval time.Duration `default:"1m" usage:"How often idle sessions are swept"`
}

// RedisConfig enables the persistent reconciliation ledger. An empty Addr
// keeps the ledger in memory.
type RedisConfig struct {
	Addr     string        `usage:"Redis address (host:port)"`
	Password string        `usage:"Redis password"`
	DB       int           `default:"0" usage:"Redis database"`
	EntryTTL time.Duration `default:"720h" usage:"Retention of ledger entries"`
}

// KafkaConfig enables reconciliation notifications. No brokers disables them.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka bootstrap brokers"`
	Topic   string   `default:"railmeal.reconciliation" usage:"Reconciliation topic"`
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
// files and flags, reads secret files and validates the result.
func LoadConfig() (*Config, error) {
	return load(aconfig.Config{
		EnvPrefix: "RAILMEAL",
		Files:     []string{"config.yaml", "/etc/railmeal/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func load(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	var err error
	if cfg.Razorpay.KeySecret, err = readSecret(cfg.Razorpay.KeySecret, cfg.Razorpay.KeySecretFile); err != nil {
		return nil, errors.Wrap(err, "razorpay key secret")
	}
	if cfg.Auth.JWTSecret, err = readSecret(cfg.Auth.JWTSecret, cfg.Auth.JWTSecretFile); err != nil {
		return nil, errors.Wrap(err, "jwt secret")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// readSecret prefers the file when both are set.
func readSecret(value, file string) (string, error) {
	if file == "" {
		return value, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", errors.Wrap(err, "read secret file")
	}
	return strings.TrimSpace(string(data)), nil
}

func (c *Config) validate() error {
	switch {
	case c.Backend.URL == "":
		return errors.New("backend URL is required: set RAILMEAL_BACKEND_URL")
	case c.Razorpay.KeyID == "" || c.Razorpay.KeySecret == "":
		return errors.New("razorpay key id and secret are required: set RAILMEAL_RAZORPAY_KEY_ID and RAILMEAL_RAZORPAY_KEY_SECRET_FILE")
	case c.Auth.JWTSecret == "":
		return errors.New("jwt secret is required: set RAILMEAL_AUTH_JWT_SECRET_FILE")
	case c.Session.IdleTimeout <= 0 || c.Session.SweepInterval <= 0:
		return errors.New("session idle timeout and sweep interval must be positive")
	}
	if c.Razorpay.BaseURL == "" {
		c.Razorpay.BaseURL = razorpay.DefaultBaseURL
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = ledger.DefaultTopic
	}
	if _, err := c.Checkout.Rate(); err != nil {
		return err
	}
	return nil
}

// applyPlatformDefaults maps the platform-provided PORT onto Addr.
func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
