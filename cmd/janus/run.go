package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"mercator-hq/janus/pkg/auth"
	"mercator-hq/janus/pkg/cli"
	"mercator-hq/janus/pkg/config"
	"mercator-hq/janus/pkg/credentials"
	"mercator-hq/janus/pkg/proxy"
	"mercator-hq/janus/pkg/server"
	"mercator-hq/janus/pkg/telemetry/metrics"
	"mercator-hq/janus/pkg/usage"
	"mercator-hq/janus/pkg/usage/recorder"
	"mercator-hq/janus/pkg/usage/retention"
	"mercator-hq/janus/pkg/usage/storage"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Janus proxy server",
	Long: `Start the Janus proxy server with the specified configuration.

The server listens on the configured address, authenticates bearer
credentials, records usage, and forwards authorized requests to the
configured upstream.

Examples:
  # Start with default config
  janus run

  # Start with custom config
  janus run --config /etc/janus/config.yaml

  # Override listen address
  janus run --listen 0.0.0.0:8080

  # Validate config and credentials without starting the server
  janus run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	setupLogging(&cfg.Telemetry.Logging)

	store, err := loadCredentials(&cfg.Credentials)
	if err != nil {
		return cli.NewConfigError("credentials", err.Error())
	}

	if runFlags.dryRun {
		fmt.Printf("✓ Configuration valid (%d credentials, upstream %s:%d)\n",
			store.Len(), cfg.Upstream.Host, cfg.Upstream.Port)
		return nil
	}

	fmt.Printf("Janus v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")
	fmt.Printf("✓ Credentials loaded (%d identities)\n", store.Len())

	usageStorage, err := openUsageStorage(&cfg.Usage)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer usageStorage.Close()

	rec := recorder.NewRecorder(usageStorage, &recorder.Config{
		Buffer:       cfg.Usage.Recorder.Buffer,
		WriteTimeout: cfg.Usage.Recorder.WriteTimeout,
	})
	defer rec.Close()

	ctx := cli.SetupSignalHandler()

	if cfg.Usage.Retention.Days > 0 && cfg.Usage.Retention.PruneSchedule != "" {
		pruner := retention.NewPruner(usageStorage, &retention.Config{
			RetentionDays: cfg.Usage.Retention.Days,
			PruneSchedule: cfg.Usage.Retention.PruneSchedule,
		})
		scheduler := retention.NewScheduler(pruner)
		if err := scheduler.Start(ctx); err != nil {
			slog.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer scheduler.Stop()
			fmt.Printf("✓ Retention scheduler started (%d days)\n", cfg.Usage.Retention.Days)
		}
	}

	forwarder := proxy.NewForwarder(&proxy.Config{
		Scheme:                cfg.Upstream.Scheme,
		Host:                  cfg.Upstream.Host,
		Port:                  cfg.Upstream.Port,
		ConnectTimeout:        cfg.Upstream.ConnectTimeout,
		ResponseHeaderTimeout: cfg.Upstream.ResponseHeaderTimeout,
		MaxIdleConns:          cfg.Upstream.MaxIdleConns,
	})

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	srv := server.NewServer(cfg, auth.NewAuthenticator(store), rec, usageStorage, forwarder, collector)

	fmt.Printf("✓ Forwarding to %s\n", forwarder.Target())
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}

// setupLogging installs the process-wide slog handler from config.
func setupLogging(cfg *config.LoggingConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// loadCredentials builds the credential store from the configured file and
// any inline entries. The two sources are merged; a duplicate secret across
// them is a startup error.
func loadCredentials(cfg *config.CredentialsConfig) (*credentials.Store, error) {
	var entries []credentials.Entry

	if cfg.File != "" {
		f, err := os.Open(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("opening credentials file %q: %w", cfg.File, err)
		}
		defer f.Close()

		entries, err = credentials.Parse(f)
		if err != nil {
			return nil, fmt.Errorf("parsing credentials file %q: %w", cfg.File, err)
		}
	}

	for identity, secret := range cfg.Inline {
		entries = append(entries, credentials.Entry{Identity: identity, Secret: secret})
	}

	return credentials.NewStore(entries)
}

// openUsageStorage opens the configured usage backend.
func openUsageStorage(cfg *config.UsageConfig) (usage.Storage, error) {
	switch cfg.Backend {
	case "sqlite":
		s, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.SQLite.MaxIdleConns,
			WALMode:      cfg.SQLite.WALMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("opening SQLite usage storage: %w", err)
		}
		return s, nil
	case "memory":
		return storage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported usage backend: %s (supported: sqlite, memory)", cfg.Backend)
	}
}
