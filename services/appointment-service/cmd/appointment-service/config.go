package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/config"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/locking"
)

type appConfig struct {
	Service  string
	Port     string
	GRPCPort string

	StorageDriver    string
	DatabaseURL      string
	DBMaxConns       int
	DBConnectTimeout time.Duration
	MigrateOnStart   bool
	SeedFile         string

	LockStrategy string
	LockTTL      time.Duration

	RedisAddr          string
	RedisPassword      string
	RateLimitPerMinute int

	JWTSecret           string
	JWKSURL             string
	TrustGatewayHeaders bool
	CORSOrigins         []string

	KafkaBrokers      string
	TopicPrefix       string
	EmailProvider     string
	SMTPHost          string
	SMTPPort          string
	SMTPFrom          string
	SendGridAPIKey    string
	SMSWebhookURL     string
	SMSWebhookToken   string
	NotifyTimeout     time.Duration
	NotifyMaxInFlight int
	NotifyTimezone    string

	RemindersEnabled  bool
	ReminderLead      time.Duration
	ReminderInterval  time.Duration
	ReminderBatchSize int
}

func loadConfig() (appConfig, error) {
	var cfg appConfig
	var err error

	cfg.Service = config.String("SERVICE_NAME", "appointment-service")
	if cfg.Port, err = config.Port("PORT", "8084"); err != nil {
		return cfg, err
	}
	if cfg.GRPCPort, err = config.Port("GRPC_PORT", "9094"); err != nil {
		return cfg, err
	}

	cfg.StorageDriver = strings.ToLower(config.String("STORAGE_DRIVER", "postgres"))
	if cfg.StorageDriver == "postgres" {
		if cfg.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
			return cfg, err
		}
	}
	if cfg.DBMaxConns, err = config.Int("DB_MAX_CONNS", 10); err != nil {
		return cfg, err
	}
	if cfg.DBConnectTimeout, err = config.Duration("DB_CONNECT_TIMEOUT", 5*time.Second); err != nil {
		return cfg, err
	}
	cfg.MigrateOnStart = config.Bool("MIGRATE_ON_START", true)
	cfg.SeedFile = config.String("DIRECTORY_SEED_FILE", "")

	cfg.LockStrategy = strings.ToLower(config.String("BOOKING_LOCK_STRATEGY", locking.StrategyLocal))
	if cfg.LockTTL, err = config.Duration("BOOKING_LOCK_TTL", 5*time.Second); err != nil {
		return cfg, err
	}

	cfg.RedisAddr = config.String("REDIS_ADDR", "")
	cfg.RedisPassword = config.String("REDIS_PASSWORD", "")
	if cfg.RateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 300); err != nil {
		return cfg, err
	}

	cfg.JWTSecret = config.String("JWT_SECRET", "")
	cfg.JWKSURL = config.String("JWKS_URL", "")
	cfg.TrustGatewayHeaders = config.Bool("TRUST_GATEWAY_HEADERS", false)
	cfg.CORSOrigins = config.List("CORS_ALLOWED_ORIGINS")

	cfg.KafkaBrokers = config.String("KAFKA_BROKERS", "")
	cfg.TopicPrefix = config.String("NOTIFY_TOPIC_PREFIX", "")
	cfg.EmailProvider = strings.ToLower(config.String("EMAIL_PROVIDER", "none"))
	cfg.SMTPHost = config.String("SMTP_HOST", "localhost")
	cfg.SMTPPort = config.String("SMTP_PORT", "1025")
	cfg.SMTPFrom = config.String("SMTP_FROM", "no-reply@apptbook.local")
	cfg.SendGridAPIKey = config.String("SENDGRID_API_KEY", "")
	cfg.SMSWebhookURL = config.String("SMS_WEBHOOK_URL", "")
	cfg.SMSWebhookToken = config.String("SMS_WEBHOOK_TOKEN", "")
	if cfg.NotifyTimeout, err = config.Duration("NOTIFY_TIMEOUT", 10*time.Second); err != nil {
		return cfg, err
	}
	if cfg.NotifyMaxInFlight, err = config.Int("NOTIFY_MAX_IN_FLIGHT", 256); err != nil {
		return cfg, err
	}
	cfg.NotifyTimezone = config.String("NOTIFY_TIMEZONE", "UTC")

	cfg.RemindersEnabled = config.Bool("REMINDER_ENABLED", true)
	if cfg.ReminderLead, err = config.Duration("REMINDER_LEAD", 24*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.ReminderInterval, err = config.Duration("REMINDER_INTERVAL", time.Minute); err != nil {
		return cfg, err
	}
	if cfg.ReminderBatchSize, err = config.Int("REMINDER_BATCH_SIZE", 100); err != nil {
		return cfg, err
	}

	return cfg, cfg.validate()
}

func (c appConfig) validate() error {
	switch c.StorageDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORAGE_DRIVER=postgres")
		}
	case "memory":
		if c.LockStrategy == locking.StrategyAdvisory {
			return errors.New("BOOKING_LOCK_STRATEGY=advisory needs STORAGE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.LockStrategy == locking.StrategyRedis && c.RedisAddr == "" {
		return errors.New("BOOKING_LOCK_STRATEGY=redis needs REDIS_ADDR")
	}
	switch c.EmailProvider {
	case "none", "smtp":
	case "sendgrid":
		if c.SendGridAPIKey == "" {
			return errors.New("SENDGRID_API_KEY is required when EMAIL_PROVIDER=sendgrid")
		}
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q", c.EmailProvider)
	}
	if c.RemindersEnabled && (c.ReminderLead <= 0 || c.ReminderInterval <= 0) {
		return errors.New("REMINDER_LEAD and REMINDER_INTERVAL must be positive")
	}
	if c.JWTSecret == "" && c.JWKSURL == "" && !c.TrustGatewayHeaders {
		return errors.New("one of JWT_SECRET, JWKS_URL or TRUST_GATEWAY_HEADERS must be set")
	}
	return nil
}
