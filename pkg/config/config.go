// Package config provides unified configuration for the entfalten gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (ENTFALTEN_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the entfalten gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Provider      ProviderConfig      `yaml:"provider"`
	Templates     TemplatesConfig     `yaml:"templates"`
	Engine        EngineConfig        `yaml:"engine"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 1 MiB
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
}

// ProviderConfig holds completion backend settings.
type ProviderConfig struct {
	BaseURL    string        `yaml:"base_url"`     // required
	APIKey     string        `yaml:"api_key"`      // optional
	APIKeyFile string        `yaml:"api_key_file"` // _file variant for api_key
	Timeout    time.Duration `yaml:"timeout"`      // default: 120s
}

// TemplatesConfig holds remote template store settings.
type TemplatesConfig struct {
	URL     string        `yaml:"url"`     // required
	Timeout time.Duration `yaml:"timeout"` // default: 10s
}

// EngineConfig holds request normalization settings.
type EngineConfig struct {
	DefaultModel     string `yaml:"default_model"`      // default: "gpt-3.5-turbo"
	MaxTokensCeiling int    `yaml:"max_tokens_ceiling"` // default: 1000
	DefaultSystem    string `yaml:"default_system"`     // default: "You are a helpful assistant."
}

// StorageConfig holds conversation store settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory" or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MinConns       int32  `yaml:"min_conns"`        // default: 2
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type    string         `yaml:"type"`     // "none", "apikey", or "jwt", default: "none"
	APIKeys []APIKeyConfig `yaml:"api_keys"` // API key entries for type=apikey
	JWT     JWTConfig      `yaml:"jwt"`      // settings for type=jwt
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key      string `yaml:"key"`
	KeyFile  string `yaml:"key_file"` // _file variant for key
	Subject  string `yaml:"subject"`
	Role     string `yaml:"role"` // "admin" grants elevation
}

// JWTConfig holds JWT validation settings.
type JWTConfig struct {
	Issuer    string        `yaml:"issuer"`
	Audience  string        `yaml:"audience"`
	JWKSURL   string        `yaml:"jwks_url"`
	UserClaim string        `yaml:"user_claim"` // default: "sub"
	RoleClaim string        `yaml:"role_claim"` // default: "role"
	CacheTTL  time.Duration `yaml:"cache_ttl"`  // default: 1h
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			MaxBodySize:     1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Provider: ProviderConfig{
			Timeout: 120 * time.Second,
		},
		Templates: TemplatesConfig{
			Timeout: 10 * time.Second,
		},
		Engine: EngineConfig{
			DefaultModel:     "gpt-3.5-turbo",
			MaxTokensCeiling: 1000,
			DefaultSystem:    "You are a helpful assistant.",
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
				MinConns: 2,
			},
		},
		Auth: AuthConfig{
			Type: "none",
			JWT: JWTConfig{
				UserClaim: "sub",
				RoleClaim: "role",
				CacheTTL:  time.Hour,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
