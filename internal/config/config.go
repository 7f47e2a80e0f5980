// Package config manages qconsole server configuration, loaded from a JSON
// file with environment-variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

const (
	DefaultAddr            = ":3001"
	DefaultRegion          = "us-east-1"
	DefaultLogLevel        = "info"
	DefaultSessionsTable   = "qconsole-sessions"
	DefaultStoreBackend    = "dynamodb"
	DefaultCacheTTLSeconds = 1800
)

// Config holds the server configuration.
type Config struct {
	Addr     string `json:"addr"`
	Region   string `json:"region"`
	LogLevel string `json:"log_level"`

	// Identity federation settings for the token exchange path.
	IdcApplicationARN string `json:"idc_application_arn"`
	ExchangeRoleARN   string `json:"exchange_role_arn"`
	AnonymousRoleARN  string `json:"anonymous_role_arn"`

	// Session store settings.
	SessionsTable string `json:"sessions_table"`
	StoreBackend  string `json:"store_backend"` // dynamodb | sqlite
	SQLitePath    string `json:"sqlite_path"`

	// Resolver cache TTL in seconds.
	CacheTTLSeconds int `json:"cache_ttl_seconds"`

	// Secrets Manager secret holding the Cognito/federation frontend config.
	CognitoSecretName string `json:"cognito_secret_name"`

	// Origin allowed by the CORS middleware ("*" permits any).
	AllowedOrigin string `json:"allowed_origin"`
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		Addr:            DefaultAddr,
		Region:          DefaultRegion,
		LogLevel:        DefaultLogLevel,
		SessionsTable:   DefaultSessionsTable,
		StoreBackend:    DefaultStoreBackend,
		CacheTTLSeconds: DefaultCacheTTLSeconds,
		AllowedOrigin:   "*",
	}
}

// Load reads configuration from an optional JSON file, then applies
// QCONSOLE_* environment overrides on top.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString(&cfg.Addr, "QCONSOLE_ADDR")
	setString(&cfg.Region, "QCONSOLE_REGION")
	setString(&cfg.LogLevel, "QCONSOLE_LOG_LEVEL")
	setString(&cfg.IdcApplicationARN, "QCONSOLE_IDC_APPLICATION_ARN")
	setString(&cfg.ExchangeRoleARN, "QCONSOLE_EXCHANGE_ROLE_ARN")
	setString(&cfg.AnonymousRoleARN, "QCONSOLE_ANONYMOUS_ROLE_ARN")
	setString(&cfg.SessionsTable, "QCONSOLE_SESSIONS_TABLE")
	setString(&cfg.StoreBackend, "QCONSOLE_STORE_BACKEND")
	setString(&cfg.SQLitePath, "QCONSOLE_SQLITE_PATH")
	setString(&cfg.CognitoSecretName, "QCONSOLE_COGNITO_SECRET_NAME")
	setString(&cfg.AllowedOrigin, "QCONSOLE_ALLOWED_ORIGIN")

	if v := os.Getenv("QCONSOLE_CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheTTLSeconds = n
		}
	}
}

// Validate checks settings that are required for the server to start at all.
// Federation ARNs are optional: endpoints that need them fail per-request.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case "dynamodb":
		if c.SessionsTable == "" {
			return fmt.Errorf("sessions_table is required for the dynamodb store backend")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite_path is required for the sqlite store backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q (want dynamodb or sqlite)", c.StoreBackend)
	}
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	return nil
}
