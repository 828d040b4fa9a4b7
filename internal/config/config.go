package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/tap2go/tap2go/internal/logging"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Port  string
	Store string

	DatabaseURL string

	JWTSecret            string
	SessionTTL           time.Duration
	AdminBootstrapSecret string

	MinWithdrawal     int64
	StatementLocation *time.Location

	TelegramBotToken      string
	TelegramBotUsername   string
	TelegramWebhookURL    string
	TelegramWebhookSecret string
	LinkTokenTTL          time.Duration
	ProfileURL            string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string

	AlertsRedisAddr string
	AdminEmail      string
	SMTP            SMTPConfig

	Log logging.Config
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Configured reports whether every field needed to dial the server is set.
func (s SMTPConfig) Configured() bool {
	return s.Host != "" && s.Port != "" && s.Username != "" && s.Password != "" && s.From != ""
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	cfg := Config{
		Port:                  orDefault(get("PORT"), "8080"),
		Store:                 orDefault(strings.ToLower(get("STORE")), StorePostgres),
		JWTSecret:             get("JWT_SECRET"),
		AdminBootstrapSecret:  get("ADMIN_BOOTSTRAP_SECRET"),
		TelegramBotToken:      get("TELEGRAM_BOT_TOKEN"),
		TelegramBotUsername:   get("TELEGRAM_BOT_USERNAME"),
		TelegramWebhookURL:    get("TELEGRAM_API_DOMAIN"),
		TelegramWebhookSecret: get("TELEGRAM_WEBHOOK_SECRET"),
		ProfileURL:            orDefault(get("PROFILE_URL"), "https://tap2go.joshytheprogrammer.com/profile"),
		RedisAddr:             get("REDIS_ADDR"),
		RedisPassword:         get("REDIS_PASSWORD"),
		AlertsRedisAddr:       get("ALERTS_REDIS_ADDR"),
		AdminEmail:            orDefault(get("ADMIN_EMAIL"), "admin@tap2go.local"),
		SMTP: SMTPConfig{
			Host:     get("SMTP_HOST"),
			Port:     get("SMTP_PORT"),
			Username: get("SMTP_USERNAME"),
			Password: get("SMTP_PASSWORD"),
			From:     get("SMTP_FROM"),
		},
		Log: logging.DefaultConfig(),
	}

	if v := get("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := get("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	cfg.Log.Development = get("LOG_DEV") == "true"

	if brokers := get("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.SessionTTL, err = durationOr(get("SESSION_TTL"), 72*time.Hour); err != nil {
		return Config{}, fmt.Errorf("SESSION_TTL: %w", err)
	}
	if cfg.LinkTokenTTL, err = durationOr(get("TELEGRAM_LINK_TOKEN_TTL"), 15*time.Minute); err != nil {
		return Config{}, fmt.Errorf("TELEGRAM_LINK_TOKEN_TTL: %w", err)
	}

	cfg.MinWithdrawal = 1000
	if v := get("MIN_WITHDRAWAL"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, errors.New("MIN_WITHDRAWAL must be a positive integer (minor units)")
		}
		cfg.MinWithdrawal = n
	}

	cfg.StatementLocation = time.UTC
	if tz := get("STATEMENT_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Config{}, fmt.Errorf("STATEMENT_TIMEZONE: %w", err)
		}
		cfg.StatementLocation = loc
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}

	switch cfg.Store {
	case StoreMemory:
	case StorePostgres:
		cfg.DatabaseURL = get("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			user, password, name := get("DB_USER"), get("DB_PASSWORD"), get("DB_NAME")
			if user == "" || password == "" || name == "" {
				return Config{}, errors.New("DATABASE_URL or DB_USER/DB_PASSWORD/DB_NAME are required")
			}
			cfg.DatabaseURL = fmt.Sprintf(
				"postgres://%s:%s@%s:%s/%s?sslmode=%s",
				user,
				password,
				orDefault(get("DB_HOST"), "localhost"),
				orDefault(get("DB_PORT"), "5432"),
				name,
				orDefault(get("DB_SSLMODE"), "disable"),
			)
		}
	default:
		return Config{}, fmt.Errorf("STORE must be %q or %q", StoreMemory, StorePostgres)
	}

	return cfg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func durationOr(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}
