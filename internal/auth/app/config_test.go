package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"ENV", "PORT", "OTP_TTL", "OTP_DIGITS", "CHALLENGE_STORE", "NOTIFIER", "AUTH_AUDIENCE"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 2*time.Minute, cfg.OTPTTL)
	require.Equal(t, 3, cfg.OTPMaxAttempts)
	require.Equal(t, 6, cfg.OTPDigits)
	require.Equal(t, 2*time.Minute, cfg.PendingTokenTTL)
	require.Equal(t, 24*time.Hour, cfg.SessionTokenTTL)
	require.Equal(t, ChallengeStoreSQLite, cfg.ChallengeStore)
	require.Equal(t, NotifierSMTP, cfg.Notifier)
	require.Equal(t, "auth.otp.deliver", cfg.NATSSubject)
	require.Empty(t, cfg.Audience)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("OTP_TTL", "90")
	t.Setenv("OTP_MAX_ATTEMPTS", "5")
	t.Setenv("OTP_DIGITS", "8")
	t.Setenv("SESSION_TOKEN_TTL", "8h")
	t.Setenv("AUTH_AUDIENCE", "web, mobile,,")
	t.Setenv("HOUSEKEEPING_INTERVAL", "not-a-duration")

	cfg := LoadConfig()
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 90*time.Second, cfg.OTPTTL)
	require.Equal(t, 5, cfg.OTPMaxAttempts)
	require.Equal(t, 8, cfg.OTPDigits)
	require.Equal(t, 8*time.Hour, cfg.SessionTokenTTL)
	require.Equal(t, []string{"web", "mobile"}, cfg.Audience)
	require.Equal(t, time.Hour, cfg.HousekeepingInterval)
}

func validConfig() Config {
	return Config{
		Env:             "prod",
		Port:            8080,
		OTPTTL:          2 * time.Minute,
		OTPMaxAttempts:  3,
		OTPDigits:       6,
		PendingTokenTTL: 2 * time.Minute,
		SessionTokenTTL: 24 * time.Hour,
		ChallengeStore:  ChallengeStoreSQLite,
		Notifier:        NotifierSMTP,
		SMTPHost:        "smtp.example.com",
		SMTPFrom:        "auth@example.com",
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"eight digits", func(c *Config) { c.OTPDigits = 8 }, ""},
		{"odd digits", func(c *Config) { c.OTPDigits = 7 }, "OTP_DIGITS"},
		{"zero attempts", func(c *Config) { c.OTPMaxAttempts = 0 }, "OTP_MAX_ATTEMPTS"},
		{"zero ttl", func(c *Config) { c.OTPTTL = 0 }, "OTP_TTL"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "PORT"},
		{"redis without url", func(c *Config) { c.ChallengeStore = ChallengeStoreRedis }, "REDIS_URL"},
		{"redis with url", func(c *Config) {
			c.ChallengeStore = ChallengeStoreRedis
			c.RedisURL = "redis://localhost:6379/0"
		}, ""},
		{"unknown store", func(c *Config) { c.ChallengeStore = "etcd" }, "CHALLENGE_STORE"},
		{"smtp without host", func(c *Config) { c.SMTPHost = "" }, "SMTP_HOST"},
		{"nats without url", func(c *Config) { c.Notifier = NotifierNATS }, "NATS_URL"},
		{"log notifier outside dev", func(c *Config) { c.Notifier = NotifierLog }, "ENV=dev"},
		{"log notifier in dev", func(c *Config) {
			c.Notifier = NotifierLog
			c.Env = "dev"
		}, ""},
		{"bootstrap email only", func(c *Config) { c.BootstrapEmail = "ops@example.com" }, "BOOTSTRAP_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Notifier = NotifierLog

	_, err := New(t.Context(), cfg)
	require.ErrorContains(t, err, "invalid configuration")
}
