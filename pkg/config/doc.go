// Package config provides configuration loading, defaulting, and validation
// for Janus.
//
// Configuration is loaded from a YAML file and may be overridden by
// environment variables (JANUS_SECTION_FIELD). All configuration is resolved
// once at startup; invalid or missing configuration is a fatal error, never a
// runtime one.
package config
