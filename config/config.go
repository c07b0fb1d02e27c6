// config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type DBConfig struct {
	URL          string
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// WebhooksConfig holds one downstream workflow URL per relay kind.
type WebhooksConfig struct {
	JobAnalysis   string
	CoverLetter   string
	LinkedIn      string
	Company       string
	InterviewPrep string
	Resume        string
	Source        string
	Timeout       time.Duration
}

// CreditPack is a purchasable bundle of credits.
type CreditPack struct {
	Key     string
	PriceID string
	Credits string
}

type StripeConfig struct {
	SecretKey  string
	WebhookKey string
	SuccessURL string
	CancelURL  string
	Packs      []CreditPack
}

type Config struct {
	Telegram struct {
		Token string
	}
	DB       DBConfig
	Webhooks WebhooksConfig
	Stripe   StripeConfig
	Auth     struct {
		JWTSecret string
		Issuer    string
	}
	Log struct {
		Level       string
		Development bool
	}
	Server struct {
		Port         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
	}
	ShutdownTimeout time.Duration
}

var envBindings = map[string]string{
	"db.url":                 "DATABASE_URL",
	"db.host":                "DB_HOST",
	"db.port":                "DB_PORT",
	"db.user":                "DB_USER",
	"db.password":            "DB_PASSWORD",
	"db.dbname":              "DB_NAME",
	"db.sslmode":             "DB_SSL_MODE",
	"webhooks.jobanalysis":   "N8N_JG_WEBHOOK_URL",
	"webhooks.coverletter":   "N8N_COVER_LETTER_WEBHOOK_URL",
	"webhooks.linkedin":      "N8N_LINKEDIN_WEBHOOK_URL",
	"webhooks.company":       "N8N_COMPANY_WEBHOOK_URL",
	"webhooks.interviewprep": "N8N_INTERVIEW_WEBHOOK_URL",
	"webhooks.resume":        "N8N_RESUME_WEBHOOK_URL",
	"webhooks.source":        "WEBHOOK_SOURCE",
	"stripe.secretkey":       "STRIPE_SECRET_KEY",
	"stripe.webhookkey":      "STRIPE_WEBHOOK_KEY",
	"stripe.successurl":      "STRIPE_SUCCESS_URL",
	"stripe.cancelurl":       "STRIPE_CANCEL_URL",
	"telegram.token":         "TELEGRAM_TOKEN",
	"auth.jwtsecret":         "JWT_SECRET",
	"auth.issuer":            "JWT_ISSUER",
	"log.level":              "LOG_LEVEL",
	"log.development":        "LOG_DEVELOPMENT",
	"server.port":            "SERVER_PORT",
}

// Load loads the configuration from an optional config file, .env and the
// process environment. Environment values win.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.jobpilot")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("config: binding %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("shutdowntimeout", 10*time.Second)
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readtimeout", 10*time.Second)
	v.SetDefault("server.writetimeout", 60*time.Second)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.dbname", "postgres")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.maxopenconns", 10)
	v.SetDefault("db.maxidleconns", 2)
	v.SetDefault("db.connlifetime", 5*time.Minute)
	v.SetDefault("webhooks.source", "web-app")
	v.SetDefault("webhooks.timeout", time.Duration(0))
	v.SetDefault("auth.issuer", "")
	v.SetDefault("log.level", "info")
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.DB.URL == "" && (c.DB.Host == "" || c.DB.DBName == "") {
		return errors.New("config: database is not configured (set DATABASE_URL or DB_HOST/DB_NAME)")
	}
	if c.Server.Port == "" {
		return errors.New("config: server port is empty")
	}
	for _, p := range c.Stripe.Packs {
		if p.Key == "" || p.PriceID == "" || p.Credits == "" {
			return fmt.Errorf("config: stripe credit pack %q is incomplete", p.Key)
		}
	}
	return nil
}

// ConnString returns the pgx connection string for the database section.
func (c DBConfig) ConnString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// StripeEnabled reports whether payments can be taken.
func (c *Config) StripeEnabled() bool {
	return c.Stripe.SecretKey != "" && c.Stripe.WebhookKey != ""
}
