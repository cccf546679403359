package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	Telemetry TelemetryConfig

	BillingProvider string
	Stripe          StripeConfig
	Prices          PriceConfig
	TaxRateID       string
	QuoteExpiryDays int

	WebBaseURL string

	Email EmailConfig
	Redis RedisConfig

	WebhookDedupeTTL time.Duration
	RateLimit        RateLimitConfig
}

// TelemetryConfig drives logging, tracing and metric export.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	Enabled       bool
	OTLPEndpoint  string
	OTLPProtocol  string
	SamplingRatio float64
}

type StripeConfig struct {
	SecretKey        string
	WebhookSecret    string
	WebhookTolerance time.Duration
	DashboardURL     string
}

// PriceConfig carries the catalog price references.
type PriceConfig struct {
	Users          string
	PackEssentiel  string
	PackPro        string
	PackEntreprise string
	Docs           string
}

type EmailConfig struct {
	Provider     string
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
	SupportEmail string
	CalendlyLink string
	BrandName    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled bool
	Rate    float64
	Burst   int
}

const (
	ProviderStripe = "stripe"
	ProviderMemory = "memory"

	EmailProviderResend = "resend"
	EmailProviderSMTP   = "smtp"
	EmailProviderNoop   = "noop"

	OTLPProtocolGRPC = "grpc"
	OTLPProtocolHTTP = "http"

	liveKeyPrefix = "sk_live_"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:         getenv("APP_SERVICE", "quotepilot"),
		AppVersion:      getenv("APP_VERSION", "0.1.0"),
		Environment:     getenv("ENVIRONMENT", "development"),
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		Telemetry: TelemetryConfig{
			LogLevel:      strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:     strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			Enabled:       getenvBool("OTEL_ENABLED", true),
			OTLPEndpoint:  strings.TrimSpace(getenv("OTLP_ENDPOINT", "localhost:4317")),
			OTLPProtocol:  strings.ToLower(strings.TrimSpace(getenv("OTLP_PROTOCOL", OTLPProtocolGRPC))),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		BillingProvider: normalizeProvider(getenv("BILLING_PROVIDER", ProviderStripe)),
		Stripe: StripeConfig{
			SecretKey:        strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			WebhookSecret:    strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			WebhookTolerance: getenvDuration("WEBHOOK_TOLERANCE", 5*time.Minute),
			DashboardURL:     strings.TrimRight(getenv("STRIPE_DASHBOARD_URL", "https://dashboard.stripe.com"), "/"),
		},
		Prices: PriceConfig{
			Users:          strings.TrimSpace(getenv("PRICE_ID_USERS", "")),
			PackEssentiel:  strings.TrimSpace(getenv("PRICE_ID_PACK_ESSENTIEL", "")),
			PackPro:        strings.TrimSpace(getenv("PRICE_ID_PACK_PRO", "")),
			PackEntreprise: strings.TrimSpace(getenv("PRICE_ID_PACK_ENTREPRISE", "")),
			Docs:           strings.TrimSpace(getenv("PRICE_ID_DOCS", "")),
		},
		TaxRateID:       strings.TrimSpace(getenv("TAX_RATE_20_ID", "")),
		QuoteExpiryDays: int(getenvInt64("QUOTE_EXPIRY_DAYS", 14)),
		WebBaseURL:      strings.TrimRight(getenv("WEB_BASE_URL", "https://datelia.ai"), "/"),
		Email: EmailConfig{
			Provider:     strings.ToLower(strings.TrimSpace(getenv("EMAIL_PROVIDER", EmailProviderResend))),
			ResendAPIKey: strings.TrimSpace(getenv("RESEND_API_KEY", "")),
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     int(getenvInt64("SMTP_PORT", 587)),
			SMTPUsername: strings.TrimSpace(getenv("SMTP_USERNAME", "")),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SenderEmail:  getenv("SENDER_EMAIL", "hello@datelia.ai"),
			SupportEmail: getenv("SUPPORT_EMAIL", "support@datelia.ai"),
			CalendlyLink: strings.TrimSpace(getenv("CALENDLY_LINK", "")),
			BrandName:    getenv("BRAND_NAME", "Datelia"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		WebhookDedupeTTL: getenvDuration("WEBHOOK_DEDUPE_TTL", 72*time.Hour),
		RateLimit: RateLimitConfig{
			Enabled: getenvBool("RATE_LIMIT_ENABLED", false),
			Rate:    getenvFloat("RATE_LIMIT_RATE", 1),
			Burst:   int(getenvInt64("RATE_LIMIT_BURST", 10)),
		},
	}

	return cfg
}

// LiveMode reports whether the configured secret key targets live data.
func (c Config) LiveMode() bool {
	return strings.HasPrefix(c.Stripe.SecretKey, liveKeyPrefix)
}

// NotificationsEnabled reports whether onboarding emails can be sent.
func (c Config) NotificationsEnabled() bool {
	if c.Email.CalendlyLink == "" {
		return false
	}
	switch c.Email.Provider {
	case EmailProviderSMTP:
		return c.Email.SMTPHost != ""
	case EmailProviderNoop:
		return false
	default:
		return c.Email.ResendAPIKey != ""
	}
}

// Scope names the keys one binary needs. A binary validates only the scopes
// of the routes it mounts.
type Scope int

const (
	ScopeAPI Scope = iota + 1
	ScopeWebhook
)

// Validate checks every key needed to serve all routes.
func (c Config) Validate() error {
	return c.ValidateFor(ScopeAPI, ScopeWebhook)
}

// ValidateFor checks the shared keys plus the keys of each scope.
func (c Config) ValidateFor(scopes ...Scope) error {
	if c.BillingProvider == ProviderStripe && c.Stripe.SecretKey == "" {
		return &ConfigurationError{Key: "STRIPE_SECRET_KEY"}
	}
	if c.Telemetry.Enabled {
		switch c.Telemetry.OTLPProtocol {
		case OTLPProtocolGRPC, OTLPProtocolHTTP, "":
		default:
			return &ConfigurationError{Key: "OTLP_PROTOCOL", Reason: "must be grpc or http"}
		}
	}
	for _, scope := range scopes {
		var err error
		switch scope {
		case ScopeAPI:
			err = c.validateAPI()
		case ScopeWebhook:
			err = c.validateWebhook()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c Config) validateAPI() error {
	required := []struct {
		key   string
		value string
	}{
		{"PRICE_ID_USERS", c.Prices.Users},
		{"PRICE_ID_PACK_PRO", c.Prices.PackPro},
		{"PRICE_ID_PACK_ENTREPRISE", c.Prices.PackEntreprise},
	}
	for _, r := range required {
		if r.value == "" {
			return &ConfigurationError{Key: r.key}
		}
	}
	if c.RateLimit.Enabled {
		if c.Redis.Addr == "" {
			return &ConfigurationError{Key: "REDIS_ADDR"}
		}
		if c.RateLimit.Rate <= 0 {
			return &ConfigurationError{Key: "RATE_LIMIT_RATE", Reason: "must be positive"}
		}
		if c.RateLimit.Burst <= 0 {
			return &ConfigurationError{Key: "RATE_LIMIT_BURST", Reason: "must be positive"}
		}
	}
	return nil
}

func (c Config) validateWebhook() error {
	if c.BillingProvider == ProviderStripe && c.Stripe.WebhookSecret == "" {
		return &ConfigurationError{Key: "STRIPE_WEBHOOK_SECRET"}
	}
	return nil
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ProviderMemory:
		return ProviderMemory
	default:
		return ProviderStripe
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
