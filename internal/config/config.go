package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvProduction = "production"
	EnvDebug      = "debug"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

type Config struct {
	Env string

	// Tracker endpoints
	BaseURL     string
	UsernameURL string
	PasswordURL string

	// Debug-mode credentials
	Username string
	Password string

	// Inputs
	IssueFile    string
	TemplatePath string
	FieldMapPath string

	// Outputs
	ReportDir string

	// HTTP
	HTTPTimeout time.Duration
	UserAgent   string

	// Fixed-layout conversion; empty ConverterBin disables it.
	ConverterBin   string
	ConvertTimeout time.Duration

	LogFormat string
	LogLevel  string
}

// LoadEnvFiles seeds the process environment from .env.local and .env.
// Variables already set in the environment win. Missing files are ignored.
func LoadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env.local: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func Load() Config {
	cfg := Config{
		Env: strings.ToLower(envOr("APP_ENV", EnvProduction)),

		BaseURL:     strings.TrimSpace(os.Getenv("BASE_URL")),
		UsernameURL: strings.TrimSpace(os.Getenv("USERNAME_URL")),
		PasswordURL: strings.TrimSpace(os.Getenv("PASSWORD_URL")),

		Username: os.Getenv("APP_USERNAME"),
		Password: os.Getenv("APP_PASSWORD"),

		IssueFile:    envOr("ISSUE_FILE", "issue_list.toml"),
		TemplatePath: envOr("TEMPLATE_PATH", "hrc_report_template.docx"),
		FieldMapPath: os.Getenv("FIELD_MAP_PATH"),

		ReportDir: envOr("REPORT_DIR", "reports"),

		HTTPTimeout: envDuration("HTTP_TIMEOUT", 10*time.Second),
		UserAgent:   envOr("USER_AGENT", defaultUserAgent),

		ConverterBin:   envOrEmpty("CONVERTER_BIN", "soffice"),
		ConvertTimeout: envDuration("CONVERT_TIMEOUT", 2*time.Minute),

		LogFormat: strings.ToLower(envOr("LOG_FORMAT", "json")),
		LogLevel:  strings.ToLower(envOr("LOG_LEVEL", "info")),
	}

	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.ConvertTimeout <= 0 {
		cfg.ConvertTimeout = 2 * time.Minute
	}

	return cfg
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("BASE_URL is required")
	}
	if c.UsernameURL == "" {
		return fmt.Errorf("USERNAME_URL is required")
	}
	if c.PasswordURL == "" {
		return fmt.Errorf("PASSWORD_URL is required")
	}
	switch c.Env {
	case EnvProduction:
	case EnvDebug:
		if c.Username == "" {
			return fmt.Errorf("APP_USERNAME is required when APP_ENV=debug")
		}
		if c.Password == "" {
			return fmt.Errorf("APP_PASSWORD is required when APP_ENV=debug")
		}
	default:
		return fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvProduction, EnvDebug, c.Env)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envOrEmpty is envOr, except that a variable explicitly set to the empty
// string is honored.
func envOrEmpty(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
