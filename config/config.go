// Package config loads process configuration from environment variables
// (optionally seeded from a .env file) with defaults and validation.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Bot delivery modes
const (
	BotPolling  = "polling"
	BotWebhook  = "webhook"
	BotDisabled = "disabled"
)

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// BotConfig defines the Telegram bot settings.
type BotConfig struct {
	Mode          string        // polling|webhook|disabled
	Token         string        // TELEGRAM_BOT_TOKEN
	WebhookSecret string        // TELEGRAM_WEBHOOK_SECRET
	PublicBaseURL string        // base of the deep link handed to users
	PollTimeout   time.Duration // long-poll wait per getUpdates call
	BackoffMax    time.Duration // cap for transport error backoff
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port            string
	GinMode         string // debug|release|test
	ShutdownTimeout time.Duration

	// Logging
	LogLevel  string // debug|info|warn|error
	LogPretty bool

	// Storage
	StoreBackend string // sqlite|postgres|redis|memory
	DBPath       string // SQLite path
	DatabaseURL  string // PostgreSQL DSN
	RedisURL     string

	// Linking
	NonceTTL         time.Duration
	LinkTicketSecret string // enables deep-link tickets when set
	LinkTicketTTL    time.Duration

	// Bot
	Bot BotConfig

	// Web protection
	RateRPS            float64
	RateBurst          int
	CORSAllowedOrigins []string

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads a .env file when present, then environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	// Missing .env is the normal case in containers.
	_ = godotenv.Load()

	cfg := Config{
		Port:            getenv("PORT", "8080"),
		GinMode:         strings.ToLower(getenv("GIN_MODE", "release")),
		ShutdownTimeout: getdur("SHUTDOWN_TIMEOUT", 10*time.Second),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		StoreBackend: strings.ToLower(getenv("STORE_BACKEND", StoreSQLite)),
		DBPath:       getenv("DB_PATH", "walletlink.db"),
		DatabaseURL:  getenv("DATABASE_URL", ""),
		RedisURL:     getenv("REDIS_URL", "redis://localhost:6379/0"),

		NonceTTL:         getdur("NONCE_TTL", 5*time.Minute),
		LinkTicketSecret: getenv("LINK_TICKET_SECRET", ""),
		LinkTicketTTL:    getdur("LINK_TICKET_TTL", time.Hour),

		Bot: BotConfig{
			Mode:          strings.ToLower(getenv("BOT_MODE", BotDisabled)),
			Token:         getenv("TELEGRAM_BOT_TOKEN", ""),
			WebhookSecret: getenv("TELEGRAM_WEBHOOK_SECRET", ""),
			PublicBaseURL: getenv("PUBLIC_BASE_URL", ""),
			PollTimeout:   getdur("POLL_TIMEOUT", 30*time.Second),
			BackoffMax:    getdur("POLL_BACKOFF_MAX", 30*time.Second),
		},

		RateRPS:            getfloat("RATE_RPS", 5.0),
		RateBurst:          getint("RATE_BURST", 10),
		CORSAllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "walletlink"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	cfg.Bot.PublicBaseURL = strings.TrimSpace(cfg.Bot.PublicBaseURL)

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("SHUTDOWN_TIMEOUT must be > 0")
	}
	switch cfg.StoreBackend {
	case StoreSQLite:
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case StorePostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return cfg, errors.New("DATABASE_URL is required for the postgres backend")
		}
	case StoreRedis:
		if strings.TrimSpace(cfg.RedisURL) == "" {
			return cfg, errors.New("REDIS_URL is required for the redis backend")
		}
	case StoreMemory:
	default:
		return cfg, errors.New("STORE_BACKEND must be one of: sqlite, postgres, redis, memory")
	}
	if cfg.NonceTTL <= 0 {
		return cfg, errors.New("NONCE_TTL must be > 0")
	}
	if cfg.LinkTicketSecret != "" && cfg.LinkTicketTTL <= 0 {
		return cfg, errors.New("LINK_TICKET_TTL must be > 0")
	}
	switch cfg.Bot.Mode {
	case BotDisabled:
	case BotPolling, BotWebhook:
		if cfg.Bot.Token == "" {
			return cfg, errors.New("TELEGRAM_BOT_TOKEN is required when the bot is enabled")
		}
		if cfg.Bot.PublicBaseURL == "" {
			return cfg, errors.New("PUBLIC_BASE_URL is required when the bot is enabled")
		}
		if cfg.Bot.Mode == BotWebhook && cfg.Bot.WebhookSecret == "" {
			return cfg, errors.New("TELEGRAM_WEBHOOK_SECRET is required in webhook mode")
		}
		if cfg.Bot.PollTimeout < 0 || cfg.Bot.BackoffMax <= 0 {
			return cfg, errors.New("POLL_TIMEOUT must be >= 0 and POLL_BACKOFF_MAX > 0")
		}
	default:
		return cfg, errors.New("BOT_MODE must be one of: polling, webhook, disabled")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
