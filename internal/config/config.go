package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up by LoadFromDir.
const FileName = "tinkersheet.yaml"

// DefaultRuntimeVersion is the widget library version published pages load
// when none is configured.
const DefaultRuntimeVersion = "28.0.5"

// Config represents the tinkersheet configuration
type Config struct {
	Title   string        `yaml:"title"`
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Runtime RuntimeSpec   `yaml:"runtime"`
	Blocks  BlocksConfig  `yaml:"blocks"`
	Publish PublishConfig `yaml:"publish"`
	API     *APIConfig    `yaml:"api,omitempty"`
	Ignore  []string      `yaml:"ignore"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port  int    `yaml:"port"`
	Host  string `yaml:"host"`
	Debug bool   `yaml:"debug"`
}

// Addr returns host:port for net/http.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig selects and configures the attribute store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`         // "memory", "sqlite", "postgres" or "dir". Default: sqlite
	DSN    string `yaml:"dsn,omitempty"`  // For sqlite: database path. For postgres: connection string
	Dir    string `yaml:"dir,omitempty"`  // For dir: directory holding one YAML file per block
	Retry  *Retry `yaml:"retry,omitempty"` // Retry policy for busy/serialization failures
}

// Retry configures retry with exponential backoff.
type Retry struct {
	MaxRetries int    `yaml:"max_retries,omitempty"` // Maximum retry attempts (default: 3)
	BaseDelay  string `yaml:"base_delay,omitempty"`  // Initial delay (e.g., "100ms"). Default: 100ms
	MaxDelay   string `yaml:"max_delay,omitempty"`   // Maximum delay (e.g., "5s"). Default: 5s
}

// RuntimeSpec configures how the widget runtime in the editor tab is driven.
type RuntimeSpec struct {
	Version      string `yaml:"version,omitempty"`       // Widget library version recorded on new blocks. Default: 28.0.5
	Script       string `yaml:"script,omitempty"`        // Module script loaded by published pages. Default: /assets/treb-spreadsheet.mjs
	CallTimeout  string `yaml:"call_timeout,omitempty"`  // Per remote call. Default: 5s
	LoadTimeout  string `yaml:"load_timeout,omitempty"`  // Waiting for runtime-ready. Default: 30s
	ReadyRetries int    `yaml:"ready_retries,omitempty"` // Instance readiness probes. Default: 20
}

// BlocksConfig holds defaults for blocks that were never saved.
type BlocksConfig struct {
	Theme   string         `yaml:"theme"`
	Options map[string]any `yaml:"options,omitempty"`
}

// PublishConfig controls published output.
type PublishConfig struct {
	CacheTTL string `yaml:"cache_ttl,omitempty"` // Rendered markup TTL (e.g., "5m"). Default: 10m
	Out      string `yaml:"out,omitempty"`       // Output directory for `tinkersheet publish`
}

// APIConfig holds REST API configuration
type APIConfig struct {
	RateLimit   *RateLimitConfig `yaml:"rate_limit,omitempty"`
	CORSOrigins []string         `yaml:"cors_origins,omitempty"` // Allowed origins; empty disables CORS headers
}

// RateLimitConfig holds rate limiting configuration for the API
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"` // Rate limit in requests per second (default: 10)
	Burst             int     `yaml:"burst,omitempty"`               // Burst size (default: 20)
}

// GetDriver returns the store driver (default: sqlite)
func (c StoreConfig) GetDriver() string {
	if c.Driver == "" {
		return "sqlite"
	}
	return c.Driver
}

// GetDSN returns the connection string. Postgres falls back to DATABASE_URL,
// sqlite to ./tinkersheet.db.
func (c StoreConfig) GetDSN() string {
	if c.DSN != "" {
		return os.ExpandEnv(c.DSN)
	}
	switch c.GetDriver() {
	case "postgres":
		return os.Getenv("DATABASE_URL")
	case "sqlite":
		return "./tinkersheet.db"
	}
	return ""
}

// GetDir returns the dir-store directory (default: ./.tinkersheet)
func (c StoreConfig) GetDir() string {
	if c.Dir == "" {
		return "./.tinkersheet"
	}
	return c.Dir
}

// GetRetryMaxRetries returns the max retries (default: 3)
func (c StoreConfig) GetRetryMaxRetries() int {
	if c.Retry == nil || c.Retry.MaxRetries <= 0 {
		return 3
	}
	return c.Retry.MaxRetries
}

// GetRetryBaseDelay returns the base retry delay (default: 100ms)
func (c StoreConfig) GetRetryBaseDelay() time.Duration {
	if c.Retry == nil {
		return 100 * time.Millisecond
	}
	return parseDuration(c.Retry.BaseDelay, 100*time.Millisecond)
}

// GetRetryMaxDelay returns the max retry delay (default: 5s)
func (c StoreConfig) GetRetryMaxDelay() time.Duration {
	if c.Retry == nil {
		return 5 * time.Second
	}
	return parseDuration(c.Retry.MaxDelay, 5*time.Second)
}

// GetVersion returns the widget library version (default: DefaultRuntimeVersion)
func (c RuntimeSpec) GetVersion() string {
	if c.Version == "" {
		return DefaultRuntimeVersion
	}
	return c.Version
}

// GetScript returns the widget module script URL
func (c RuntimeSpec) GetScript() string {
	if c.Script == "" {
		return "/assets/treb-spreadsheet.mjs"
	}
	return c.Script
}

// GetCallTimeout returns the remote call timeout (default: 5s)
func (c RuntimeSpec) GetCallTimeout() time.Duration {
	return parseDuration(c.CallTimeout, 5*time.Second)
}

// GetLoadTimeout returns how long to wait for the runtime (default: 30s)
func (c RuntimeSpec) GetLoadTimeout() time.Duration {
	return parseDuration(c.LoadTimeout, 30*time.Second)
}

// GetReadyRetries returns the instance readiness probe budget (default: 20)
func (c RuntimeSpec) GetReadyRetries() int {
	if c.ReadyRetries <= 0 {
		return 20
	}
	return c.ReadyRetries
}

// GetCacheTTL returns the published markup TTL (default: 10m)
func (c PublishConfig) GetCacheTTL() time.Duration {
	return parseDuration(c.CacheTTL, 10*time.Minute)
}

// GetOut returns the publish output directory (default: ./public)
func (c PublishConfig) GetOut() string {
	if c.Out == "" {
		return "./public"
	}
	return c.Out
}

// GetRateLimitRPS returns the rate limit in requests per second (default: 10)
func (c *APIConfig) GetRateLimitRPS() float64 {
	if c == nil || c.RateLimit == nil || c.RateLimit.RequestsPerSecond <= 0 {
		return 10
	}
	return c.RateLimit.RequestsPerSecond
}

// GetRateLimitBurst returns the burst size (default: 20)
func (c *APIConfig) GetRateLimitBurst() int {
	if c == nil || c.RateLimit == nil || c.RateLimit.Burst <= 0 {
		return 20
	}
	return c.RateLimit.Burst
}

// GetCORSOrigins returns the allowed CORS origins (default: none)
func (c *APIConfig) GetCORSOrigins() []string {
	if c == nil {
		return nil
	}
	return c.CORSOrigins
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.Store.GetDriver() {
	case "memory", "sqlite", "dir":
	case "postgres":
		if c.Store.GetDSN() == "" {
			return fmt.Errorf("store: postgres requires dsn or DATABASE_URL")
		}
	default:
		return fmt.Errorf("store: unknown driver %q", c.Store.Driver)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Server.Port)
	}
	return nil
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Title: "tinkersheet",
		Server: ServerConfig{
			Port:  8080,
			Host:  "localhost",
			Debug: false,
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Blocks: BlocksConfig{
			Theme: "treb-light-dark-theme",
		},
		Ignore: []string{
			"drafts/**",
			"_*.md",
		},
	}
}

// Load loads configuration from a YAML file
// If the file doesn't exist, returns the default configuration
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig() // Start with defaults
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadFromDir looks for tinkersheet.yaml in the given directory.
// If it is not found, returns the default configuration
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}
