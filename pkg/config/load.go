package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Variables follow the naming convention
// JANUS_SECTION_FIELD (e.g. JANUS_SERVER_LISTEN_ADDRESS) and always take
// precedence over file-based configuration.
//
// The plain SERVER_IP and SERVER_PORT variables are also recognized for the
// upstream target, matching the conventional deployment surface of the proxy.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("JANUS_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("JANUS_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("JANUS_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Upstream overrides
	if val := os.Getenv("JANUS_UPSTREAM_HOST"); val != "" {
		cfg.Upstream.Host = val
	}
	if val := os.Getenv("JANUS_UPSTREAM_PORT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Upstream.Port = i
		}
	}
	if val := os.Getenv("JANUS_UPSTREAM_SCHEME"); val != "" {
		cfg.Upstream.Scheme = val
	}
	if val := os.Getenv("JANUS_UPSTREAM_CONNECT_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Upstream.ConnectTimeout = d
		}
	}

	// Conventional names for the upstream target.
	if val := os.Getenv("SERVER_IP"); val != "" {
		cfg.Upstream.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Upstream.Port = i
		}
	}

	// Credentials overrides
	if val := os.Getenv("JANUS_CREDENTIALS_FILE"); val != "" {
		cfg.Credentials.File = val
	}

	// Usage overrides
	if val := os.Getenv("JANUS_USAGE_BACKEND"); val != "" {
		cfg.Usage.Backend = val
	}
	if val := os.Getenv("JANUS_USAGE_SQLITE_PATH"); val != "" {
		cfg.Usage.SQLite.Path = val
	}
	if val := os.Getenv("JANUS_USAGE_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Usage.Retention.Days = i
		}
	}

	// Telemetry overrides
	if val := os.Getenv("JANUS_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("JANUS_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("JANUS_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
}
