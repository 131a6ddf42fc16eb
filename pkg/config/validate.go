package config

import (
	"fmt"
	"strings"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors. It returns the first
// validation error encountered, or nil if the configuration is valid.
// Configuration errors are fatal; they prevent startup.
func Validate(cfg *Config) error {
	if cfg.Server.ListenAddress == "" {
		return &ValidationError{Field: "server.listen_address", Message: "must not be empty"}
	}
	if !strings.Contains(cfg.Server.ListenAddress, ":") {
		return &ValidationError{Field: "server.listen_address", Message: "must be in host:port form"}
	}

	if cfg.Upstream.Host == "" {
		return &ValidationError{Field: "upstream.host", Message: "upstream target is required"}
	}
	if cfg.Upstream.Port <= 0 || cfg.Upstream.Port > 65535 {
		return &ValidationError{Field: "upstream.port", Message: fmt.Sprintf("must be in range 1-65535, got %d", cfg.Upstream.Port)}
	}
	if cfg.Upstream.Scheme != "http" && cfg.Upstream.Scheme != "https" {
		return &ValidationError{Field: "upstream.scheme", Message: fmt.Sprintf("must be http or https, got %q", cfg.Upstream.Scheme)}
	}

	if cfg.Credentials.File == "" && len(cfg.Credentials.Inline) == 0 {
		return &ValidationError{Field: "credentials", Message: "a credential source is required (file or inline)"}
	}

	switch cfg.Usage.Backend {
	case "sqlite":
		if cfg.Usage.SQLite.Path == "" {
			return &ValidationError{Field: "usage.sqlite.path", Message: "must not be empty"}
		}
	case "memory":
	default:
		return &ValidationError{Field: "usage.backend", Message: fmt.Sprintf("unsupported backend %q", cfg.Usage.Backend)}
	}

	if cfg.Usage.Retention.Days < 0 {
		return &ValidationError{Field: "usage.retention.days", Message: "must not be negative"}
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Field: "telemetry.logging.level", Message: fmt.Sprintf("unknown level %q", cfg.Telemetry.Logging.Level)}
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		return &ValidationError{Field: "telemetry.logging.format", Message: fmt.Sprintf("unknown format %q", cfg.Telemetry.Logging.Format)}
	}

	return nil
}
