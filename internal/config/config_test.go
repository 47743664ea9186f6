package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStoreConfigGetDriver(t *testing.T) {
	tests := []struct {
		name     string
		driver   string
		expected string
	}{
		{"empty", "", "sqlite"},
		{"memory", "memory", "memory"},
		{"postgres", "postgres", "postgres"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := StoreConfig{Driver: tt.driver}
			if got := cfg.GetDriver(); got != tt.expected {
				t.Errorf("GetDriver() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestStoreConfigGetDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("SHEET_DB", "/var/lib/sheets.db")

	tests := []struct {
		name     string
		cfg      StoreConfig
		expected string
	}{
		{"sqlite default", StoreConfig{}, "./tinkersheet.db"},
		{"sqlite explicit", StoreConfig{DSN: "a.db"}, "a.db"},
		{"env expansion", StoreConfig{DSN: "${SHEET_DB}"}, "/var/lib/sheets.db"},
		{"postgres from env", StoreConfig{Driver: "postgres"}, "postgres://env/db"},
		{"memory", StoreConfig{Driver: "memory"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetDSN(); got != tt.expected {
				t.Errorf("GetDSN() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestStoreConfigRetryDefaults(t *testing.T) {
	var cfg StoreConfig
	if got := cfg.GetRetryMaxRetries(); got != 3 {
		t.Errorf("GetRetryMaxRetries() = %d, want 3", got)
	}
	if got := cfg.GetRetryBaseDelay(); got != 100*time.Millisecond {
		t.Errorf("GetRetryBaseDelay() = %v, want 100ms", got)
	}
	if got := cfg.GetRetryMaxDelay(); got != 5*time.Second {
		t.Errorf("GetRetryMaxDelay() = %v, want 5s", got)
	}

	cfg.Retry = &Retry{MaxRetries: 7, BaseDelay: "20ms", MaxDelay: "bogus"}
	if got := cfg.GetRetryMaxRetries(); got != 7 {
		t.Errorf("GetRetryMaxRetries() = %d, want 7", got)
	}
	if got := cfg.GetRetryBaseDelay(); got != 20*time.Millisecond {
		t.Errorf("GetRetryBaseDelay() = %v, want 20ms", got)
	}
	if got := cfg.GetRetryMaxDelay(); got != 5*time.Second {
		t.Errorf("GetRetryMaxDelay() = %v, want 5s", got)
	}
}

func TestRuntimeSpecDefaults(t *testing.T) {
	tests := []struct {
		name    string
		spec    RuntimeSpec
		call    time.Duration
		load    time.Duration
		retries int
	}{
		{"defaults", RuntimeSpec{}, 5 * time.Second, 30 * time.Second, 20},
		{"custom", RuntimeSpec{CallTimeout: "1s", LoadTimeout: "2m", ReadyRetries: 4}, time.Second, 2 * time.Minute, 4},
		{"invalid", RuntimeSpec{CallTimeout: "soon", LoadTimeout: "-1s"}, 5 * time.Second, 30 * time.Second, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.spec.GetCallTimeout(); got != tt.call {
				t.Errorf("GetCallTimeout() = %v, want %v", got, tt.call)
			}
			if got := tt.spec.GetLoadTimeout(); got != tt.load {
				t.Errorf("GetLoadTimeout() = %v, want %v", got, tt.load)
			}
			if got := tt.spec.GetReadyRetries(); got != tt.retries {
				t.Errorf("GetReadyRetries() = %d, want %d", got, tt.retries)
			}
		})
	}
}

func TestAPIConfigRateLimit(t *testing.T) {
	var api *APIConfig
	if got := api.GetRateLimitRPS(); got != 10 {
		t.Errorf("nil GetRateLimitRPS() = %v, want 10", got)
	}
	if got := api.GetRateLimitBurst(); got != 20 {
		t.Errorf("nil GetRateLimitBurst() = %d, want 20", got)
	}

	api = &APIConfig{RateLimit: &RateLimitConfig{RequestsPerSecond: 2.5, Burst: 4}}
	if got := api.GetRateLimitRPS(); got != 2.5 {
		t.Errorf("GetRateLimitRPS() = %v, want 2.5", got)
	}
	if got := api.GetRateLimitBurst(); got != 4 {
		t.Errorf("GetRateLimitBurst() = %d, want 4", got)
	}
}

func TestRuntimeSpecAssets(t *testing.T) {
	var spec RuntimeSpec
	if got := spec.GetVersion(); got != DefaultRuntimeVersion {
		t.Errorf("GetVersion() = %q, want %q", got, DefaultRuntimeVersion)
	}
	if got := spec.GetScript(); got != "/assets/treb-spreadsheet.mjs" {
		t.Errorf("GetScript() = %q", got)
	}
	spec = RuntimeSpec{Version: "29.1.0", Script: "https://cdn.example.com/treb.mjs"}
	if got := spec.GetVersion(); got != "29.1.0" {
		t.Errorf("GetVersion() = %q, want 29.1.0", got)
	}
	if got := spec.GetScript(); got != "https://cdn.example.com/treb.mjs" {
		t.Errorf("GetScript() = %q", got)
	}
}

func TestAPIConfigCORSOrigins(t *testing.T) {
	var api *APIConfig
	if got := api.GetCORSOrigins(); got != nil {
		t.Errorf("nil GetCORSOrigins() = %v, want nil", got)
	}
	api = &APIConfig{CORSOrigins: []string{"https://docs.example.com"}}
	if got := api.GetCORSOrigins(); len(got) != 1 || got[0] != "https://docs.example.com" {
		t.Errorf("GetCORSOrigins() = %v", got)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"dir", func(c *Config) { c.Store.Driver = "dir" }, false},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }, true},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres" }, true},
		{"postgres with dsn", func(c *Config) { c.Store = StoreConfig{Driver: "postgres", DSN: "postgres://x"} }, false},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir() without file: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}

	content := `title: Budgets
server:
  port: 9090
store:
  driver: dir
  dir: ./blocks
blocks:
  theme: treb-dark-theme
  options:
    toolbar: true
    scale: 1.1
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err = LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir(): %v", err)
	}
	if cfg.Title != "Budgets" {
		t.Errorf("Title = %q", cfg.Title)
	}
	if cfg.Server.Port != 9090 || cfg.Server.Host != "localhost" {
		t.Errorf("Server = %+v, want port 9090 on default host", cfg.Server)
	}
	if cfg.Store.GetDriver() != "dir" || cfg.Store.GetDir() != "./blocks" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Blocks.Theme != "treb-dark-theme" {
		t.Errorf("Blocks.Theme = %q", cfg.Blocks.Theme)
	}
	if cfg.Blocks.Options["toolbar"] != true || cfg.Blocks.Options["scale"] != 1.1 {
		t.Errorf("Blocks.Options = %v", cfg.Blocks.Options)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() accepted invalid YAML")
	}
}
