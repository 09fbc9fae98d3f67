package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/otpauth/internal/auth/notify"
	"github.com/aussiebroadwan/otpauth/internal/auth/service"
)

const (
	ChallengeStoreMemory = "memory"
	ChallengeStoreSQLite = "sqlite"
	ChallengeStoreRedis  = "redis"

	NotifierSMTP = "smtp"
	NotifierNATS = "nats"
	NotifierLog  = "log"
)

type Config struct {
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired challenge sweep interval (default: 1h)

	Issuer       string   // Issuer claim for tokens (default: otpauth)
	Audience     []string // Optional: comma separated audience claim
	Algorithm    string   // JWT signing algorithm (RS256, ES256, EdDSA) (default: EdDSA)
	NumKeys      int      // Number of signing keys to generate (default: 1)
	DatabaseFile string   // Path to SQLite database file (default: ./auth.db)
	PepperFile   string   // Path to file containing pepper for password hashing (default: ./pepper)

	OTPTTL          time.Duration // Challenge lifetime (default: 2m)
	OTPMaxAttempts  int           // Wrong codes allowed per challenge (default: 3)
	OTPDigits       int           // Code width, 6 or 8 (default: 6)
	PendingTokenTTL time.Duration // default: 2m
	SessionTokenTTL time.Duration // default: 24h

	ChallengeStore string // memory, sqlite or redis (default: sqlite)
	RedisURL       string // Required when ChallengeStore is redis

	Notifier      string        // smtp, nats or log (default: smtp)
	NotifyTimeout time.Duration // Bound on one delivery (default: 10s)
	NotifyRetries int           // Extra SMTP attempts (default: 2)
	SMTPHost      string
	SMTPPort      int // default: 587
	SMTPUsername  string
	SMTPPassword  string
	SMTPFrom      string
	NATSURL       string
	NATSSubject   string // default: auth.otp.deliver

	BootstrapEmail     string // Optional: seed account created on first start
	BootstrapPassword  string
	BootstrapFirstName string
	BootstrapLastName  string
}

func LoadConfig() Config {
	return Config{
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),

		Issuer:       getEnvOrDefault("AUTH_ISSUER", "otpauth"),
		Audience:     splitList(os.Getenv("AUTH_AUDIENCE")),
		Algorithm:    getEnvOrDefault("AUTH_ALGORITHM", "EdDSA"),
		NumKeys:      getEnvIntOrDefault("AUTH_NUM_KEYS", 1),
		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:   getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),

		OTPTTL:          getEnvDurationOrDefault("OTP_TTL", service.DefaultChallengeTTL),
		OTPMaxAttempts:  getEnvIntOrDefault("OTP_MAX_ATTEMPTS", service.DefaultMaxAttempts),
		OTPDigits:       getEnvIntOrDefault("OTP_DIGITS", 6),
		PendingTokenTTL: getEnvDurationOrDefault("PENDING_TOKEN_TTL", service.DefaultPendingTTL),
		SessionTokenTTL: getEnvDurationOrDefault("SESSION_TOKEN_TTL", service.DefaultSessionTTL),

		ChallengeStore: getEnvOrDefault("CHALLENGE_STORE", ChallengeStoreSQLite),
		RedisURL:       os.Getenv("REDIS_URL"),

		Notifier:      getEnvOrDefault("NOTIFIER", NotifierSMTP),
		NotifyTimeout: getEnvDurationOrDefault("NOTIFY_TIMEOUT", service.DefaultNotifyTimeout),
		NotifyRetries: getEnvIntOrDefault("NOTIFY_RETRIES", 2),
		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPPort:      getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUsername:  os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:      os.Getenv("SMTP_FROM"),
		NATSURL:       os.Getenv("NATS_URL"),
		NATSSubject:   getEnvOrDefault("NATS_SUBJECT", notify.DefaultSubject),

		BootstrapEmail:     os.Getenv("BOOTSTRAP_EMAIL"),
		BootstrapPassword:  os.Getenv("BOOTSTRAP_PASSWORD"),
		BootstrapFirstName: os.Getenv("BOOTSTRAP_FIRST_NAME"),
		BootstrapLastName:  os.Getenv("BOOTSTRAP_LAST_NAME"),
	}
}

// Validate reports every setting that would stop the service from starting.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.OTPDigits != 6 && c.OTPDigits != 8 {
		errs = append(errs, fmt.Errorf("OTP_DIGITS must be 6 or 8, got %d", c.OTPDigits))
	}
	if c.OTPTTL <= 0 {
		errs = append(errs, errors.New("OTP_TTL must be positive"))
	}
	if c.OTPMaxAttempts < 1 {
		errs = append(errs, errors.New("OTP_MAX_ATTEMPTS must be at least 1"))
	}
	if c.PendingTokenTTL <= 0 || c.SessionTokenTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.NotifyRetries < 0 {
		errs = append(errs, errors.New("NOTIFY_RETRIES must not be negative"))
	}

	switch c.ChallengeStore {
	case ChallengeStoreMemory, ChallengeStoreSQLite:
	case ChallengeStoreRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis challenge store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CHALLENGE_STORE %q", c.ChallengeStore))
	}

	switch c.Notifier {
	case NotifierSMTP:
		if c.SMTPHost == "" || c.SMTPFrom == "" {
			errs = append(errs, errors.New("SMTP_HOST and SMTP_FROM are required for the smtp notifier"))
		}
	case NotifierNATS:
		if c.NATSURL == "" {
			errs = append(errs, errors.New("NATS_URL is required for the nats notifier"))
		}
	case NotifierLog:
		// Codes end up in plain logs.
		if c.Env != "dev" {
			errs = append(errs, fmt.Errorf("the log notifier is only allowed with ENV=dev, got %q", c.Env))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFIER %q", c.Notifier))
	}

	if (c.BootstrapEmail == "") != (c.BootstrapPassword == "") {
		errs = append(errs, errors.New("BOOTSTRAP_EMAIL and BOOTSTRAP_PASSWORD must be set together"))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
