package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/httpx"
)

type Config struct {
	Issuer    string `env:"CREDS_ISSUER" envDefault:"credentials-api"`
	Audience  string `env:"CREDS_AUDIENCE"`
	Algorithm string `env:"CREDS_ALGORITHM" envDefault:"EdDSA"` // EdDSA or ES256
	NumKeys   int    `env:"CREDS_NUM_KEYS" envDefault:"1"`

	AccessTokenTTL      time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	VerificationCodeTTL time.Duration `env:"VERIFICATION_CODE_TTL" envDefault:"15m"`
	PasswordResetTTL    time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"30m"`

	// VerificationMaxAttempts wrong codes lock a verification code until a
	// new one is sent.
	VerificationMaxAttempts int `env:"VERIFICATION_MAX_ATTEMPTS" envDefault:"5"`

	// DatabaseURL is a SQLite file path or a postgres:// URL.
	DatabaseURL string `env:"DATABASE_URL" envDefault:"credentials.db"`
	PepperFile  string `env:"PEPPER_FILE" envDefault:"pepper"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"no-reply@localhost"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	SMSWebhookURL   string `env:"SMS_WEBHOOK_URL"`
	SMSWebhookToken string `env:"SMS_WEBHOOK_TOKEN"`

	PasswordResetURL     string `env:"PASSWORD_RESET_URL" envDefault:"http://localhost:8080/reset-password"`
	MessageTemplatesFile string `env:"MESSAGE_TEMPLATES_FILE"`

	// Owner account created when the store is empty. Skipped unless all
	// three are set.
	BootstrapUsername string `env:"BOOTSTRAP_OWNER_USERNAME"`
	BootstrapEmail    string `env:"BOOTSTRAP_OWNER_EMAIL"`
	BootstrapPassword string `env:"BOOTSTRAP_OWNER_PASSWORD"`

	Env                  string        `env:"ENV" envDefault:"dev"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT" envDefault:"json"`
	Port                 int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
	RetentionPeriod      time.Duration `env:"RETENTION_PERIOD" envDefault:"24h"`

	// TrustedProxies lists CIDRs or addresses whose X-Forwarded-For is
	// believed. Empty means rate limits key on the connection address.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// LoadConfig reads .env (if present) and then the process environment.
// Variables already set in the environment win over .env.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return ParseConfig()
}

// ParseConfig reads the process environment only.
func ParseConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.Algorithm != "EdDSA" && c.Algorithm != "ES256" {
		errs = append(errs, fmt.Errorf("CREDS_ALGORITHM must be EdDSA or ES256, got %q", c.Algorithm))
	}
	for name, d := range map[string]time.Duration{
		"ACCESS_TOKEN_TTL":      c.AccessTokenTTL,
		"VERIFICATION_CODE_TTL": c.VerificationCodeTTL,
		"PASSWORD_RESET_TTL":    c.PasswordResetTTL,
		"HOUSEKEEPING_INTERVAL": c.HousekeepingInterval,
		"RETENTION_PERIOD":      c.RetentionPeriod,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.VerificationMaxAttempts <= 0 {
		errs = append(errs, errors.New("VERIFICATION_MAX_ATTEMPTS must be positive"))
	}
	if _, err := httpx.ParseTrustedProxies(c.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %w", err))
	}
	set := 0
	for _, v := range []string{c.BootstrapUsername, c.BootstrapEmail, c.BootstrapPassword} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		errs = append(errs, errors.New("BOOTSTRAP_OWNER_USERNAME, _EMAIL and _PASSWORD must be set together"))
	}
	return errors.Join(errs...)
}

// UsesPostgres reports whether DatabaseURL names a PostgreSQL server.
func (c Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

func (c Config) BootstrapEnabled() bool {
	return c.BootstrapUsername != "" && c.BootstrapEmail != "" && c.BootstrapPassword != ""
}
