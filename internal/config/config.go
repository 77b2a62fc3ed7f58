package config

import (
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Router          RouterConfig      `yaml:"router"`
	Database        DatabaseConfig    `yaml:"database"`
	API             APIConfig         `yaml:"api"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	Poller          PollerConfig      `yaml:"poller"`
	Presence        PresenceConfig    `yaml:"presence"`
	Hooks           HooksConfig       `yaml:"hooks"`
	Log             LogConfig         `yaml:"log"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// RouterConfig contains connection settings for the router presence backend
type RouterConfig struct {
	BaseURL     string   `yaml:"base_url"`
	Timeout     Duration `yaml:"timeout"`      // HTTP timeout for presence requests
	InsecureTLS bool     `yaml:"insecure_tls"` // Skip TLS verification (router backends often use self-signed certs)
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// APIConfig contains REST API server settings
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// PollerConfig contains router polling settings
type PollerConfig struct {
	Interval       Duration `yaml:"interval"`         // Periodic snapshot poll interval
	RefreshRateRPS float64  `yaml:"refresh_rate_rps"` // Rate limit for manual refresh triggers
}

// PresenceConfig contains home/away derivation settings
type PresenceConfig struct {
	ConsiderHome Duration `yaml:"consider_home"` // Offline devices seen within this window still count as home
}

// HooksConfig contains Lua automation hook settings
type HooksConfig struct {
	Enabled bool   `yaml:"enabled"`
	Script  string `yaml:"script"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in defaults for unset fields.
func (cfg *Config) ApplyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./presenced.sqlite"
	}

	// Router defaults
	if cfg.Router.BaseURL == "" {
		cfg.Router.BaseURL = "http://localhost:8080"
	}
	if cfg.Router.Timeout == 0 {
		cfg.Router.Timeout = Duration(10 * time.Second)
	}

	// API server defaults
	if cfg.API.Port == 0 {
		cfg.API.Port = 4000
	}
	if cfg.API.Host == "" {
		cfg.API.Host = "0.0.0.0"
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// Poller defaults
	if cfg.Poller.Interval == 0 {
		cfg.Poller.Interval = Duration(1 * time.Minute)
	}
	if cfg.Poller.RefreshRateRPS == 0 {
		cfg.Poller.RefreshRateRPS = 1.0
	}

	// Presence defaults
	if cfg.Presence.ConsiderHome == 0 {
		cfg.Presence.ConsiderHome = Duration(5 * time.Minute)
	}

	// Hooks defaults
	if cfg.Hooks.Script == "" {
		cfg.Hooks.Script = "hooks.lua"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
