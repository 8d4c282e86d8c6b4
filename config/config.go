package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port       string `mapstructure:"PORT"`
	DBURL      string `mapstructure:"DB_URL"`
	CORSOrigin string `mapstructure:"CORS_ORIGIN"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	// public URL of the frontend, used in emailed links
	AppURL string `mapstructure:"APP_URL"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL"`

	// external OIDC issuer whose access tokens are accepted besides our own
	OIDCIssuer   string `mapstructure:"OIDC_ISSUER"`
	OIDCClientID string `mapstructure:"OIDC_CLIENT_ID"`

	GoogleClientID         string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret     string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL      string `mapstructure:"GOOGLE_REDIRECT_URL"`
	GoogleFrontendRedirect string `mapstructure:"GOOGLE_FRONTEND_REDIRECT"`

	AdminEmail         string `mapstructure:"ADMIN_EMAIL"`
	AutoApproveOnLogin bool   `mapstructure:"AUTO_APPROVE_ON_LOGIN"`

	RedisAddr          string        `mapstructure:"REDIS_ADDR"`
	RedisPassword      string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB            int           `mapstructure:"REDIS_DB"`
	CredentialCacheTTL time.Duration `mapstructure:"CREDENTIAL_CACHE_TTL"`

	AMQPURL      string `mapstructure:"AMQP_URL"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE"`

	ResendAPIKey string `mapstructure:"RESEND_API_KEY"`
	ResendFrom   string `mapstructure:"RESEND_FROM"`
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     string `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	WebhookToken        string `mapstructure:"WEBHOOK_TOKEN"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
}

var defaults = map[string]any{
	"PORT":                 "8080",
	"CORS_ORIGIN":          "http://localhost:5173",
	"LOG_LEVEL":            "info",
	"APP_URL":              "http://localhost:5173",
	"TOKEN_TTL":            "24h",
	"CREDENTIAL_CACHE_TTL": "10m",
	"AMQP_EXCHANGE":        "assinantes",
	"RESEND_FROM":          "Equipe <onboarding@resend.dev>",
}

// Load reads .env (local development only) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}
	return fromEnv(viper.New())
}

func fromEnv(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	// Unmarshal only sees keys viper knows about
	for _, key := range envKeys() {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.AdminEmail = strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	return &cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.DBURL == "" {
		missing = append(missing, "DB_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.OIDCIssuer != "" && c.OIDCClientID == "" {
		return errors.New("OIDC_CLIENT_ID is required when OIDC_ISSUER is set")
	}
	return nil
}

func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func envKeys() []string {
	return []string{
		"PORT", "DB_URL", "CORS_ORIGIN", "LOG_LEVEL", "APP_URL",
		"JWT_SECRET", "TOKEN_TTL", "OIDC_ISSUER", "OIDC_CLIENT_ID",
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REDIRECT_URL", "GOOGLE_FRONTEND_REDIRECT",
		"ADMIN_EMAIL", "AUTO_APPROVE_ON_LOGIN",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CREDENTIAL_CACHE_TTL",
		"AMQP_URL", "AMQP_EXCHANGE",
		"RESEND_API_KEY", "RESEND_FROM",
		"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM",
		"WEBHOOK_TOKEN", "STRIPE_WEBHOOK_SECRET",
	}
}
