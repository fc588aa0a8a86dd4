package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	extErrors "github.com/pkg/errors"
)

var validate *validator.Validate = validator.New()

// Environment is the type for defining the running environment
type Environment string

// define constants
const (
	EnvDevelopment Environment = "Dev"
	EnvProduction  Environment = "Prod"
)

// Config holds every setting read from the environment
type Config struct {
	Environment Environment
	ListenAddr  string `validate:"required"`
	MetricsAddr string `validate:"required,nefield=ListenAddr"` // internal listener for /metrics
	SiteURL     string `validate:"required,url"`
	FrontendDir string `validate:"required"`
	SentryDSN   string

	PostgresURI string `validate:"required"`
	RedisURI    string `validate:"required"`
	RedisPW     string
	AMQPURI     string

	SupabaseJWTSecret string `validate:"required,min=16"`

	StripeKey           string        `validate:"required"`
	StripeWebhookSecret string        `validate:"required"`
	StripeTimeout       time.Duration `validate:"min=1000000000"`
	StripePrices        StripePrices

	EngineURL     string        `validate:"required,url"`
	EngineAPIKey  string        `validate:"required"`
	EngineTimeout time.Duration `validate:"min=1000000000"`

	TrialDays                int `validate:"min=1"`
	TrialGraceDays           int `validate:"min=0"`
	PaymentGraceDays         int `validate:"min=0"`
	PaymentFallbackGraceDays int `validate:"min=0"`
}

// StripePrices maps each purchasable plan to its monthly Stripe price
type StripePrices struct {
	Basic string `validate:"required"`
	Pro   string `validate:"required"`
	Elite string `validate:"required"`
}

// DotFile returns the name of the .env file for the environment, selected by API_ENV
func DotFile() (string, Environment) {
	if os.Getenv("API_ENV") == "production" {
		return ".env.production", EnvProduction
	}
	return ".env.development", EnvDevelopment
}

// Load reads dotFile into the process environment, then builds and validates a Config.
// Variables already present in the environment take precedence over dotFile.
func Load(dotFile string, env Environment) (*Config, error) {
	if dotFile != "" {
		if err := godotenv.Load(dotFile); err != nil {
			return nil, extErrors.Wrap(err, "Cannot load configurations from .env")
		}
	}
	return FromEnv(env)
}

// FromEnv builds a Config from the current process environment
func FromEnv(env Environment) (*Config, error) {
	if env == "" {
		env = EnvDevelopment
	}
	cfg := &Config{
		Environment: env,
		ListenAddr:  getString("LISTEN_ADDR", ":42069"),
		MetricsAddr: getString("METRICS_ADDR", "127.0.0.1:9090"),
		SiteURL:     getString("SITE_URL", "http://localhost:3000"),
		FrontendDir: getString("FRONTEND_DIR", "./web"),
		SentryDSN:   os.Getenv("SENTRY_DSN"),

		PostgresURI: os.Getenv("POSTGRES_URI"),
		RedisURI:    os.Getenv("REDIS_URI"),
		RedisPW:     os.Getenv("REDIS_PW"),
		AMQPURI:     os.Getenv("AMQP_URI"),

		SupabaseJWTSecret: os.Getenv("SUPABASE_JWT_SECRET"),

		StripeKey:           os.Getenv("STRIPE_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripePrices: StripePrices{
			Basic: os.Getenv("STRIPE_BASIC_PRICE_ID"),
			Pro:   os.Getenv("STRIPE_PRO_PRICE_ID"),
			Elite: os.Getenv("STRIPE_ELITE_PRICE_ID"),
		},

		EngineURL:    os.Getenv("ENGINE_URL"),
		EngineAPIKey: os.Getenv("ENGINE_API_KEY"),
	}

	var err error
	if cfg.StripeTimeout, err = getDuration("STRIPE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.EngineTimeout, err = getDuration("ENGINE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.TrialDays, err = getInt("TRIAL_DAYS", 15); err != nil {
		return nil, err
	}
	if cfg.TrialGraceDays, err = getInt("TRIAL_GRACE_DAYS", 3); err != nil {
		return nil, err
	}
	if cfg.PaymentGraceDays, err = getInt("PAYMENT_GRACE_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.PaymentFallbackGraceDays, err = getInt("PAYMENT_FALLBACK_GRACE_DAYS", 3); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, extErrors.Wrap(err, "Invalid configuration")
	}
	return cfg, nil
}

// Days converts a whole number of days into a Duration
func Days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, extErrors.Wrapf(err, "%s must be an integer", key)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, extErrors.Wrapf(err, "%s must be a duration", key)
	}
	return d, nil
}
