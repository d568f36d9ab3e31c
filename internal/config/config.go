package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPAddr       = ":8080"
	defaultDatabaseURL    = "slothold.db"
	defaultJWTSecret      = "change-me-jwt-secret"
	defaultHoldTTL        = "20m"
	defaultExtensionTTL   = "10m"
	defaultMaxExtensions  = "1"
	defaultReminderLead   = "5m"
	defaultOfferWindow    = "60m"
	defaultExpirySweep    = "60s"
	defaultWaitlistSweep  = "120s"
	defaultIdempotencyTTL = "24h"
	defaultKafkaTopic     = "reservation-events"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	DatabaseURL string
	AutoMigrate bool

	JWTSecret     string
	InternalToken string

	// RedisURL empty means the idempotency cache is memory-only.
	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string
	StripeAPIKey string

	HoldTTL       time.Duration
	ExtensionTTL  time.Duration
	MaxExtensions int
	ReminderLead  time.Duration
	OfferWindow   time.Duration

	ExpirySweepInterval   time.Duration
	WaitlistSweepInterval time.Duration
	IdempotencyTTL        time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = getEnv("HTTP_ADDR", defaultHTTPAddr)
	cfg.DatabaseURL = getEnv("DATABASE_URL", defaultDatabaseURL)
	cfg.AutoMigrate = parseBoolEnv("AUTO_MIGRATE", "true")

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.InternalToken = strings.TrimSpace(os.Getenv("INTERNAL_TOKEN"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", defaultKafkaTopic)
	cfg.StripeAPIKey = strings.TrimSpace(os.Getenv("STRIPE_API_KEY"))

	var err error
	if cfg.HoldTTL, err = parseDurationEnv("HOLD_TTL", defaultHoldTTL); err != nil {
		return nil, err
	}
	if cfg.ExtensionTTL, err = parseDurationEnv("EXTENSION_TTL", defaultExtensionTTL); err != nil {
		return nil, err
	}
	if cfg.MaxExtensions, err = parseIntEnv("MAX_EXTENSIONS", defaultMaxExtensions); err != nil {
		return nil, err
	}
	if cfg.ReminderLead, err = parseDurationEnv("REMINDER_LEAD", defaultReminderLead); err != nil {
		return nil, err
	}
	if cfg.OfferWindow, err = parseDurationEnv("OFFER_WINDOW", defaultOfferWindow); err != nil {
		return nil, err
	}
	if cfg.ExpirySweepInterval, err = parseDurationEnv("EXPIRY_SWEEP_INTERVAL", defaultExpirySweep); err != nil {
		return nil, err
	}
	if cfg.WaitlistSweepInterval, err = parseDurationEnv("WAITLIST_SWEEP_INTERVAL", defaultWaitlistSweep); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMPOTENCY_TTL", defaultIdempotencyTTL); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.HoldTTL <= 0 {
		return fmt.Errorf("HOLD_TTL must be > 0")
	}
	if cfg.ExtensionTTL <= 0 {
		return fmt.Errorf("EXTENSION_TTL must be > 0")
	}
	if cfg.MaxExtensions < 0 {
		return fmt.Errorf("MAX_EXTENSIONS must be >= 0")
	}
	if cfg.OfferWindow <= 0 {
		return fmt.Errorf("OFFER_WINDOW must be > 0")
	}
	if cfg.ExpirySweepInterval <= 0 || cfg.WaitlistSweepInterval <= 0 {
		return fmt.Errorf("sweep intervals must be > 0")
	}

	if isProdLike(cfg.AppEnv) {
		if cfg.JWTSecret == "" || cfg.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if cfg.InternalToken == "" {
			return fmt.Errorf("in prod/release INTERNAL_TOKEN must be set")
		}
	}
	return nil
}

func isProdLike(env string) bool {
	return env == "prod" || env == "production" || env == "release"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationEnv(key, fallback string) (time.Duration, error) {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return d, nil
}

func parseIntEnv(key, fallback string) (int, error) {
	raw := getEnv(key, fallback)
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, raw)
	}
	return n, nil
}

func parseBoolEnv(key, fallback string) bool {
	raw := strings.ToLower(strings.TrimSpace(getEnv(key, fallback)))
	return raw == "1" || raw == "true" || raw == "yes"
}
