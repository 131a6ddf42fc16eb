package config

import "time"

// Config is the root configuration structure for Janus. It contains all
// configuration sections for the HTTP server, the upstream target, the
// credential source, usage accounting, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Upstream contains the single fixed backend target that authorized
	// requests are forwarded to. Resolved once at startup.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Credentials contains the credential source configuration. The
	// identity-to-secret mapping is loaded once at startup and is
	// immutable for the process lifetime.
	Credentials CredentialsConfig `yaml:"credentials"`

	// Usage contains configuration for usage accounting including the
	// storage backend, recorder buffering, and retention.
	Usage UsageConfig `yaml:"usage"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port". Default: "127.0.0.1:8081"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of
	// the response. A zero value means no timeout; streaming upstream
	// responses need the headroom, forwarding enforces its own deadlines.
	// Default: 0
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next
	// request when keep-alives are enabled. Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown. Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// UpstreamConfig contains the fixed upstream target.
type UpstreamConfig struct {
	// Host is the upstream host name or IP address.
	Host string `yaml:"host"`

	// Port is the upstream TCP port.
	Port int `yaml:"port"`

	// Scheme is the URL scheme used for outbound requests ("http" or
	// "https"). Default: "http"
	Scheme string `yaml:"scheme"`

	// ConnectTimeout bounds the TCP dial to the upstream. Default: 5s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// ResponseHeaderTimeout bounds the wait for the upstream's response
	// headers. The body may stream past this point. Default: 30s
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout"`

	// MaxIdleConns is the connection pool size for the upstream
	// transport. Default: 100
	MaxIdleConns int `yaml:"max_idle_conns"`
}

// CredentialsConfig contains the credential source.
type CredentialsConfig struct {
	// File is the path to a file of identity=secret lines.
	File string `yaml:"file"`

	// Inline maps identity names to secrets directly in the config file.
	// Merged with File entries; a secret may only appear once.
	Inline map[string]string `yaml:"inline"`
}

// UsageConfig contains configuration for usage accounting.
type UsageConfig struct {
	// Backend selects the usage storage backend ("sqlite" or "memory").
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite backend settings.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Recorder contains async recorder settings.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention contains record retention settings.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains settings for the SQLite usage backend.
type SQLiteConfig struct {
	// Path is the database file path. Default: "data/usage.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecorderConfig contains settings for the async usage recorder.
type RecorderConfig struct {
	// Buffer is the size of the async write channel. Records beyond this
	// are dropped (and counted) rather than blocking traffic.
	// Default: 1000
	Buffer int `yaml:"buffer"`

	// WriteTimeout is the timeout for a single storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetentionConfig contains settings for usage record retention.
type RetentionConfig struct {
	// Days is the number of days to keep usage records. Zero disables
	// pruning. Default: 0
	Days int `yaml:"days"`

	// PruneSchedule is a cron expression for when to prune expired
	// records. Empty disables the scheduler. Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains logging and metrics configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json" or "text"). Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the /metrics endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the Prometheus metric namespace. Default: "janus"
	Namespace string `yaml:"namespace"`

	// RequestDurationBuckets are histogram buckets for request duration
	// in seconds.
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}
