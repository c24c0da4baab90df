package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeTempConfig writes YAML content to a temp file and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalYAML = `
provider:
  base_url: http://localhost:9000
templates:
  url: https://templates.example/set.json
`

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, minimalYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Engine.DefaultModel != "gpt-3.5-turbo" {
		t.Errorf("default model = %q", cfg.Engine.DefaultModel)
	}
	if cfg.Engine.MaxTokensCeiling != 1000 {
		t.Errorf("ceiling = %d, want 1000", cfg.Engine.MaxTokensCeiling)
	}
	if cfg.Storage.Type != "memory" || cfg.Storage.MaxSize != 10000 {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Auth.Type != "none" {
		t.Errorf("auth type = %q", cfg.Auth.Type)
	}
	if !cfg.Observability.Metrics.Enabled || cfg.Observability.Metrics.Path != "/metrics" {
		t.Errorf("metrics = %+v", cfg.Observability.Metrics)
	}
	if cfg.Auth.JWT.CacheTTL != time.Hour {
		t.Errorf("jwt cache ttl = %v", cfg.Auth.JWT.CacheTTL)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
server:
  port: 9090
  shutdown_timeout: 5s
provider:
  base_url: http://localhost:9000
  timeout: 60s
templates:
  url: https://templates.example/set.json
engine:
  default_model: local-model
  max_tokens_ceiling: 2048
storage:
  type: memory
  max_size: 50
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("shutdown timeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Provider.Timeout != 60*time.Second {
		t.Errorf("provider timeout = %v", cfg.Provider.Timeout)
	}
	if cfg.Engine.DefaultModel != "local-model" || cfg.Engine.MaxTokensCeiling != 2048 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Storage.MaxSize != 50 {
		t.Errorf("storage max size = %d", cfg.Storage.MaxSize)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("ENTFALTEN_BACKEND_URL", "http://env-backend:9000")
	t.Setenv("ENTFALTEN_MODEL", "env-model")
	t.Setenv("ENTFALTEN_PORT", "7070")

	cfg, err := Load(writeTempConfig(t, minimalYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Provider.BaseURL != "http://env-backend:9000" {
		t.Errorf("base url = %q", cfg.Provider.BaseURL)
	}
	if cfg.Engine.DefaultModel != "env-model" {
		t.Errorf("model = %q", cfg.Engine.DefaultModel)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
}

func TestLoad_ConfigDiscoveryViaEnv(t *testing.T) {
	path := writeTempConfig(t, minimalYAML)
	t.Setenv("ENTFALTEN_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.BaseURL != "http://localhost:9000" {
		t.Errorf("base url = %q", cfg.Provider.BaseURL)
	}
}

func TestLoad_APIKeysFromEnvJSON(t *testing.T) {
	t.Setenv("ENTFALTEN_AUTH_TYPE", "apikey")
	t.Setenv("ENTFALTEN_API_KEYS", `[{"key":"secret1","subject":"svc-a","role":"admin"},{"key":"secret2","subject":"svc-b"}]`)

	cfg, err := Load(writeTempConfig(t, minimalYAML))
	if err != nil {
		t.Fatal(err)
	}

	if len(cfg.Auth.APIKeys) != 2 {
		t.Fatalf("api keys = %+v", cfg.Auth.APIKeys)
	}
	if cfg.Auth.APIKeys[0].Subject != "svc-a" || cfg.Auth.APIKeys[0].Role != "admin" {
		t.Errorf("first key = %+v", cfg.Auth.APIKeys[0])
	}
}

func TestLoad_SecretFileResolution(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "api-key")
	if err := os.WriteFile(keyPath, []byte("  sk-from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	path := writeTempConfig(t, `
provider:
  base_url: http://localhost:9000
  api_key_file: `+keyPath+`
templates:
  url: https://templates.example/set.json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.APIKey != "sk-from-file" {
		t.Errorf("api key = %q, want trimmed file content", cfg.Provider.APIKey)
	}
}

func TestLoad_SecretFileMissing(t *testing.T) {
	path := writeTempConfig(t, `
provider:
  base_url: http://localhost:9000
  api_key_file: /nonexistent/api-key
templates:
  url: https://templates.example/set.json
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing secret file")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "missing backend url",
			mutate:  func(c *Config) { c.Provider.BaseURL = "" },
			wantSub: "provider.base_url",
		},
		{
			name:    "missing templates url",
			mutate:  func(c *Config) { c.Templates.URL = "" },
			wantSub: "templates.url",
		},
		{
			name:    "bad storage type",
			mutate:  func(c *Config) { c.Storage.Type = "redis" },
			wantSub: "storage.type",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Storage.Type = "postgres" },
			wantSub: "storage.postgres.dsn",
		},
		{
			name:    "bad auth type",
			mutate:  func(c *Config) { c.Auth.Type = "oauth" },
			wantSub: "auth.type",
		},
		{
			name:    "apikey without keys",
			mutate:  func(c *Config) { c.Auth.Type = "apikey" },
			wantSub: "auth.api_keys",
		},
		{
			name:    "jwt without jwks url",
			mutate:  func(c *Config) { c.Auth.Type = "jwt" },
			wantSub: "auth.jwt.jwks_url",
		},
		{
			name:    "zero ceiling",
			mutate:  func(c *Config) { c.Engine.MaxTokensCeiling = 0 },
			wantSub: "max_tokens_ceiling",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Provider.BaseURL = "http://localhost:9000"
			cfg.Templates.URL = "https://templates.example/set.json"
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %s", err, tt.wantSub)
			}
		})
	}
}
