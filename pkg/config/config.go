// Package config loads the engine configuration from a YAML file with
// environment fallbacks and validated defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	Reasoner  ReasonerConfig  `yaml:"reasoner"`
	Security  SecurityConfig  `yaml:"security"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Port is the API listener port.
	Port int `yaml:"port"`
	// ObservabilityPort serves /metrics and /health endpoints.
	ObservabilityPort int `yaml:"observability_port"`
}

// SessionConfig configures session storage.
type SessionConfig struct {
	// Backend selects the storage backend: "memory" or "redis".
	Backend string `yaml:"backend"`
	// RedisAddr is the Redis server address (host:port).
	RedisAddr string `yaml:"redis_addr"`
	// RedisPassword is the Redis password (optional).
	RedisPassword string `yaml:"redis_password"`
	// RedisDB is the Redis database number.
	RedisDB int `yaml:"redis_db"`
	// KeyPrefix prefixes all session keys.
	KeyPrefix string `yaml:"key_prefix"`
	// TTL is the backend expiry for stored sessions ("0" = never).
	TTL string `yaml:"ttl"`
	// MaxIdle is how long a session may sit unused before the sweeper
	// removes it ("0" disables sweeping).
	MaxIdle string `yaml:"max_idle"`
	// SweepSchedule is the cron spec for the idle-session sweeper.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// ReasonerConfig configures the external reasoning capability.
type ReasonerConfig struct {
	// Provider selects the adapter: "none", "openai" or "vertex".
	Provider string `yaml:"provider"`
	// Model is the provider model identifier.
	Model string `yaml:"model"`
	// APIKey authenticates the OpenAI provider.
	APIKey string `yaml:"api_key"`
	// Project and Location configure the Vertex AI provider.
	Project  string `yaml:"project"`
	Location string `yaml:"location"`
	// Timeout bounds a single completion call.
	Timeout string `yaml:"timeout"`
	// MaxTokens caps the completion length.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature controls sampling.
	Temperature float64 `yaml:"temperature"`
}

// SecurityConfig tunes the security screen.
type SecurityConfig struct {
	// BlockThreshold is the risk score at which a message is blocked.
	BlockThreshold float64 `yaml:"block_threshold"`
}

// RateLimitConfig throttles API clients.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8080,
			ObservabilityPort: 9090,
		},
		Session: SessionConfig{
			Backend:       "memory",
			KeyPrefix:     "patientapp:session:",
			TTL:           "0",
			MaxIdle:       "0",
			SweepSchedule: "@every 10m",
		},
		Reasoner: ReasonerConfig{
			Provider:    "none",
			Model:       "gpt-4o-mini",
			Location:    "us-central1",
			Timeout:     "30s",
			MaxTokens:   400,
			Temperature: 0.3,
		},
		Security: SecurityConfig{
			BlockThreshold: 0.8,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a YAML file. An empty path yields the
// defaults. Environment variables override empty values in either case.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 - path comes from the operator's own flag
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		applyDefaults(cfg)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults restores defaults for fields the file left at zero.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.ObservabilityPort == 0 {
		cfg.Server.ObservabilityPort = def.Server.ObservabilityPort
	}
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = def.Session.Backend
	}
	if cfg.Session.KeyPrefix == "" {
		cfg.Session.KeyPrefix = def.Session.KeyPrefix
	}
	if cfg.Session.TTL == "" {
		cfg.Session.TTL = def.Session.TTL
	}
	if cfg.Session.MaxIdle == "" {
		cfg.Session.MaxIdle = def.Session.MaxIdle
	}
	if cfg.Session.SweepSchedule == "" {
		cfg.Session.SweepSchedule = def.Session.SweepSchedule
	}
	if cfg.Reasoner.Provider == "" {
		cfg.Reasoner.Provider = def.Reasoner.Provider
	}
	if cfg.Reasoner.Model == "" {
		cfg.Reasoner.Model = def.Reasoner.Model
	}
	if cfg.Reasoner.Location == "" {
		cfg.Reasoner.Location = def.Reasoner.Location
	}
	if cfg.Reasoner.Timeout == "" {
		cfg.Reasoner.Timeout = def.Reasoner.Timeout
	}
	if cfg.Reasoner.MaxTokens == 0 {
		cfg.Reasoner.MaxTokens = def.Reasoner.MaxTokens
	}
	if cfg.Reasoner.Temperature == 0 {
		cfg.Reasoner.Temperature = def.Reasoner.Temperature
	}
	if cfg.Security.BlockThreshold == 0 {
		cfg.Security.BlockThreshold = def.Security.BlockThreshold
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = def.RateLimit.RequestsPerSecond
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
}

// applyEnv fills empty values from the environment.
func applyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" && cfg.Session.RedisAddr == "" {
		cfg.Session.RedisAddr = addr
	}
	if cfg.Reasoner.APIKey == "" {
		cfg.Reasoner.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Reasoner.Project == "" {
		cfg.Reasoner.Project = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

// SessionTTL returns the parsed session TTL.
func (c *Config) SessionTTL() time.Duration {
	return parseDuration(c.Session.TTL, 0)
}

// SessionMaxIdle returns the parsed idle limit for the sweeper.
func (c *Config) SessionMaxIdle() time.Duration {
	return parseDuration(c.Session.MaxIdle, 0)
}

// ReasonerTimeout returns the parsed per-call completion timeout.
func (c *Config) ReasonerTimeout() time.Duration {
	return parseDuration(c.Reasoner.Timeout, 30*time.Second)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" || s == "0" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.ObservabilityPort <= 0 || c.Server.ObservabilityPort > 65535 {
		return fmt.Errorf("server.observability_port %d out of range", c.Server.ObservabilityPort)
	}
	if c.Server.Port == c.Server.ObservabilityPort {
		return fmt.Errorf("server.port and server.observability_port must differ")
	}

	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("session.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	if err := checkDuration(c.Session.TTL); err != nil {
		return fmt.Errorf("session.ttl: %w", err)
	}
	if err := checkDuration(c.Session.MaxIdle); err != nil {
		return fmt.Errorf("session.max_idle: %w", err)
	}

	switch c.Reasoner.Provider {
	case "none":
	case "openai":
		if c.Reasoner.APIKey == "" {
			return fmt.Errorf("reasoner.api_key (or OPENAI_API_KEY) is required for the openai provider")
		}
	case "vertex":
		if c.Reasoner.Project == "" {
			return fmt.Errorf("reasoner.project (or GOOGLE_CLOUD_PROJECT) is required for the vertex provider")
		}
	default:
		return fmt.Errorf("unknown reasoner provider %q", c.Reasoner.Provider)
	}
	if err := checkDuration(c.Reasoner.Timeout); err != nil {
		return fmt.Errorf("reasoner.timeout: %w", err)
	}

	if c.Security.BlockThreshold < 0 || c.Security.BlockThreshold > 1 {
		return fmt.Errorf("security.block_threshold %v outside [0,1]", c.Security.BlockThreshold)
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("ratelimit.requests_per_second must be positive")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("ratelimit.burst must be positive")
	}

	return nil
}

func checkDuration(s string) error {
	if s == "" || s == "0" {
		return nil
	}
	if _, err := time.ParseDuration(s); err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	return nil
}
