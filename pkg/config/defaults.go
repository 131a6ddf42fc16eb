package config

import "time"

// ApplyDefaults fills in default values for any configuration fields that
// were not set. It mutates the provided config in place.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = "127.0.0.1:8081"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = 1 << 20 // 1MB
	}

	// Upstream defaults
	if cfg.Upstream.Scheme == "" {
		cfg.Upstream.Scheme = "http"
	}
	if cfg.Upstream.ConnectTimeout == 0 {
		cfg.Upstream.ConnectTimeout = 5 * time.Second
	}
	if cfg.Upstream.ResponseHeaderTimeout == 0 {
		cfg.Upstream.ResponseHeaderTimeout = 30 * time.Second
	}
	if cfg.Upstream.MaxIdleConns == 0 {
		cfg.Upstream.MaxIdleConns = 100
	}

	// Usage defaults
	if cfg.Usage.Backend == "" {
		cfg.Usage.Backend = "sqlite"
	}
	if cfg.Usage.SQLite.Path == "" {
		cfg.Usage.SQLite.Path = "data/usage.db"
	}
	if cfg.Usage.SQLite.MaxOpenConns == 0 {
		cfg.Usage.SQLite.MaxOpenConns = 10
	}
	if cfg.Usage.SQLite.MaxIdleConns == 0 {
		cfg.Usage.SQLite.MaxIdleConns = 5
	}
	if cfg.Usage.SQLite.BusyTimeout == 0 {
		cfg.Usage.SQLite.WALMode = true
		cfg.Usage.SQLite.BusyTimeout = 5 * time.Second
	}
	if cfg.Usage.Recorder.Buffer == 0 {
		cfg.Usage.Recorder.Buffer = 1000
	}
	if cfg.Usage.Recorder.WriteTimeout == 0 {
		cfg.Usage.Recorder.WriteTimeout = 5 * time.Second
	}
	if cfg.Usage.Retention.Days > 0 && cfg.Usage.Retention.PruneSchedule == "" {
		cfg.Usage.Retention.PruneSchedule = "0 3 * * *"
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Enabled = true
		cfg.Telemetry.Metrics.Namespace = "janus"
	}
	if len(cfg.Telemetry.Metrics.RequestDurationBuckets) == 0 {
		// Proxied API latencies range from milliseconds to long
		// streaming completions.
		cfg.Telemetry.Metrics.RequestDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}
	}
}
