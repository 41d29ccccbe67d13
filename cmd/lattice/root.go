package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/adapters/redis"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lattice",
	Short: "Lattice runs graph queries with managed session lifetimes",
	Long: `Lattice runs Cypher queries against a RedisGraph/FalkorDB engine and
closes each query's session according to a disposal policy:
immediate, close_on_exhaust, deferred or manual.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (.yaml, .toml or .json)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("driver", "redis", "Engine driver: redis or memory")
}

// loadConfig resolves the config file and LATTICE_* overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Resolve(path)
}

// newLogger builds the logger for cfg. --debug wins over the configured level.
func newLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}
	return logging.NewWithFormat(cfg.LogFormat, level)
}

func newDriver(cmd *cobra.Command, cfg config.Config) (ports.Driver, error) {
	name, _ := cmd.Flags().GetString("driver")
	switch name {
	case "redis":
		return redis.NewDriver(redis.WithGraph(cfg.Graph)), nil
	case "memory":
		// Answers a single smoke-test query; useful without an engine at hand.
		return memory.NewDriver(
			memory.WithQuery("RETURN 1", domain.NewRecord([]string{"1"}, domain.Int(1))),
		), nil
	default:
		return nil, fmt.Errorf("unknown driver %q (want redis or memory)", name)
	}
}

// newClient wires config, logger and driver into a client.
func newClient(cmd *cobra.Command, opts ...lattice.Option) (*lattice.Client, config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, nil, err
	}
	logger := newLogger(cmd, cfg)
	driver, err := newDriver(cmd, cfg)
	if err != nil {
		return nil, cfg, logger, err
	}
	opts = append([]lattice.Option{lattice.WithConfig(cfg), lattice.WithLogger(logger)}, opts...)
	return lattice.New(driver, opts...), cfg, logger, nil
}
