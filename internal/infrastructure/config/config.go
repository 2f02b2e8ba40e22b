package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig encapsulates all runtime configuration knobs.
type AppConfig struct {
	App       AppSettings
	HTTP      HTTPSettings
	Auth      AuthSettings
	Log       LogSettings
	Database  DatabaseSettings
	Audit     AuditSettings
	Screening ScreeningSettings
}

type AppSettings struct {
	Name        string
	Version     string
	Environment string
}

type HTTPSettings struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type AuthSettings struct {
	Enabled     bool
	IssuerURI   string
	JWKSetURI   string
	ClockSkew   time.Duration
	BypassPaths []string
}

type LogSettings struct {
	Level string
}

type DatabaseSettings struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	RunMigrations   bool
}

// AuditSettings controls where screening audit records go.
type AuditSettings struct {
	Store        string // "postgres" or "memory"
	WriteTimeout time.Duration
}

// ScreeningSettings configures the upstream search provider and the retry
// policy wrapped around it.
type ScreeningSettings struct {
	BaseURL            string
	Dataset            string
	APIKey             string
	HTTPTimeout        time.Duration // per attempt
	RequestTimeout     time.Duration // whole screening call, retries included
	MaxRetries         int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	MaxConnsPerHost    int
	MaxConcurrent      int
	CircuitMaxFailures int
	CircuitCooldown    time.Duration
}

const (
	AuditStorePostgres = "postgres"
	AuditStoreMemory   = "memory"
)

// Load resolves the application configuration from environment variables.
// A .env file is read first when present; real environment variables win.
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	cfg := AppConfig{
		App: AppSettings{
			Name:        getEnv("APP_NAME", "aml_checker_core"),
			Version:     getEnv("APP_VERSION", "0.1.0"),
			Environment: getEnv("APP_ENV", "local"),
		},
		HTTP: HTTPSettings{
			Port:            getEnvAsInt("APP_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 45*time.Second),
			IdleTimeout:     getEnvAsDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Auth: AuthSettings{
			Enabled:     getEnvAsBool("AUTH_ENABLED", false),
			IssuerURI:   strings.TrimSpace(os.Getenv("JWT_ISSUER_URI")),
			JWKSetURI:   strings.TrimSpace(os.Getenv("JWT_JWK_SET_URI")),
			ClockSkew:   getEnvAsDuration("AUTH_CLOCK_SKEW", 2*time.Minute),
			BypassPaths: getEnvAsCSV("AUTH_BYPASS_PATHS", []string{"/health", "/metrics"}),
		},
		Log: LogSettings{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseSettings{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Database:        getEnv("DB_NAME", "aml_checker"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			RunMigrations:   getEnvAsBool("DB_RUN_MIGRATIONS", true),
		},
		Audit: AuditSettings{
			Store:        strings.ToLower(getEnv("AUDIT_STORE", AuditStorePostgres)),
			WriteTimeout: getEnvAsDuration("AUDIT_WRITE_TIMEOUT", 5*time.Second),
		},
		Screening: ScreeningSettings{
			BaseURL:            strings.TrimRight(strings.TrimSpace(getEnv("YENTE_API_URL", "http://localhost:8000")), "/"),
			Dataset:            getEnv("YENTE_DATASET", "default"),
			APIKey:             strings.TrimSpace(os.Getenv("YENTE_API_KEY")),
			HTTPTimeout:        getEnvAsDuration("YENTE_TIMEOUT", 5*time.Second),
			RequestTimeout:     getEnvAsDuration("SCREENING_TIMEOUT", 30*time.Second),
			MaxRetries:         getEnvAsInt("RETRY_MAX_RETRIES", 3),
			RetryBaseDelay:     getEnvAsDuration("RETRY_BASE_DELAY", 1*time.Second),
			RetryMaxDelay:      getEnvAsDuration("RETRY_MAX_DELAY", 8*time.Second),
			MaxConnsPerHost:    getEnvAsInt("YENTE_MAX_CONNS_PER_HOST", 50),
			MaxConcurrent:      getEnvAsInt("YENTE_MAX_CONCURRENT", 50),
			CircuitMaxFailures: getEnvAsInt("CIRCUIT_MAX_FAILURES", 5),
			CircuitCooldown:    getEnvAsDuration("CIRCUIT_COOLDOWN", 30*time.Second),
		},
	}

	if cfg.Screening.BaseURL == "" {
		return cfg, errors.New("invalid config: YENTE_API_URL must not be empty")
	}
	if cfg.Screening.Dataset == "" {
		return cfg, errors.New("invalid config: YENTE_DATASET must not be empty")
	}
	if cfg.Screening.MaxRetries < 0 || cfg.Screening.MaxRetries > 10 {
		return cfg, errors.New("invalid config: RETRY_MAX_RETRIES must be between 0 and 10")
	}
	if cfg.Screening.RetryBaseDelay <= 0 {
		return cfg, errors.New("invalid config: RETRY_BASE_DELAY must be greater than 0")
	}

	if cfg.Audit.Store != AuditStorePostgres && cfg.Audit.Store != AuditStoreMemory {
		return cfg, fmt.Errorf("invalid config: AUDIT_STORE must be %q or %q", AuditStorePostgres, AuditStoreMemory)
	}

	if cfg.Auth.Enabled {
		if cfg.Auth.IssuerURI == "" {
			return cfg, errors.New("invalid config: JWT_ISSUER_URI is required when AUTH_ENABLED=true")
		}
		if cfg.Auth.JWKSetURI == "" {
			return cfg, errors.New("invalid config: JWT_JWK_SET_URI is required when AUTH_ENABLED=true")
		}
	}

	return cfg, nil
}

// Address returns the HTTP listen address in host:port form.
func (h HTTPSettings) Address() string {
	return fmt.Sprintf(":%d", h.Port)
}

// SearchURL is the provider search endpoint for the configured dataset.
func (s ScreeningSettings) SearchURL() string {
	return fmt.Sprintf("%s/search/%s", s.BaseURL, s.Dataset)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsCSV(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}
