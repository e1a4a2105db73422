package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quarrydb/quarry/pkg/kv"
	"github.com/quarrydb/quarry/pkg/telemetry"
)

var (
	// Global flags
	configPath  string
	verbose     bool
	metricsAddr string
	traceStdout bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "quarry",
		Short: "Quarry - persistent key-value storage over a relational database",
		Long: `Quarry stores durable key-value tables and lazily initialized
persistent cells in a relational database (PostgreSQL or SQLite),
with pooled connections and streaming iteration over large tables.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics", "", "expose Prometheus metrics on this address (e.g. :9090)")
	rootCmd.PersistentFlags().BoolVar(&traceStdout, "trace", false, "emit spans to stdout for each store operation")

	rootCmd.AddCommand(newGetCommand())
	rootCmd.AddCommand(newPutCommand())
	rootCmd.AddCommand(newDelCommand())
	rootCmd.AddCommand(newKeysCommand())
	rootCmd.AddCommand(newCountCommand())
	rootCmd.AddCommand(newFoldCommand())
	rootCmd.AddCommand(newCellCommand())
	rootCmd.AddCommand(newPingCommand())

	return rootCmd
}

// openStore loads configuration, initializes a store and returns it
// with a cleanup func. Each invocation gets an operation id so log
// lines from one CLI run can be correlated.
func openStore(ctx context.Context) (*kv.Store, func(), error) {
	cfg := kv.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = kv.LoadConfig(configPath)
		if err != nil {
			return nil, nil, err
		}
	}

	telCfg := telemetry.DefaultConfig()
	if verbose {
		telCfg.Logging.Level = "debug"
	}
	logger, err := telemetry.NewLogger(telCfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger = logger.WithField("op_id", uuid.NewString())
	opts := []kv.Option{kv.WithLogger(logger)}

	if metricsAddr != "" {
		telCfg.Metrics.Enabled = true
		telCfg.Metrics.ListenAddress = metricsAddr
		metrics, err := telemetry.NewMetrics(telCfg.Metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create metrics: %w", err)
		}
		if err := metrics.StartMetricsServer(); err != nil {
			return nil, nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
		opts = append(opts, kv.WithMetrics(metrics))
	}

	var tracer *telemetry.Tracer
	if traceStdout {
		telCfg.Tracing.Enabled = true
		tracer, err = telemetry.NewTracer(telCfg.Tracing, telCfg.ServiceName, telCfg.ServiceVersion)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create tracer: %w", err)
		}
		opts = append(opts, kv.WithTracer(tracer))
	}

	store, err := kv.New(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = store.Close()
		if tracer != nil {
			_ = tracer.Shutdown(context.Background())
		}
	}
	return store, cleanup, nil
}
