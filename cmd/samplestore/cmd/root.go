package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/spf13/cobra"
	"github.com/ssargent/samplestore/pkg/config"
	"github.com/ssargent/samplestore/pkg/di"
	"github.com/ssargent/samplestore/pkg/storage"
	"github.com/ssargent/samplestore/pkg/store"
)

var log = logger.GetOrCreate("cmd")

type contextKey string

const configKey contextKey = "config"

var container *di.Container

// SetContainer injects the dependency container used by the commands
func SetContainer(c *di.Container) {
	container = c
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "samplestore",
	Short: "samplestore - Kafka partition metric sample store",
	Long: `samplestore encodes, decodes and stores versioned binary metric samples
of Kafka partitions. Samples are kept in an append-only segmented log and,
optionally, in a time-ordered index for range queries.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		if err := logger.SetLogLevel(cfg.LogLevelPattern()); err != nil {
			return fmt.Errorf("failed to set log level: %w", err)
		}
		cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: OS-specific location)")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "Data directory, overrides the config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, warn, error), overrides the config file")
}

// resolveConfig loads the config file when it exists, falls back to defaults
// otherwise, and applies command line overrides
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg := config.DefaultConfig()
	if config.ConfigExists(configPath) {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func configFromContext(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey).(*config.Config)
	if !ok {
		return nil, errors.New("configuration not found in context")
	}
	return cfg, nil
}

// openStore opens the sample log under the configured data directory
func openStore(cfg *config.Config) (*store.SampleStore, error) {
	sampleStore, err := store.NewSampleStore(store.SampleStoreConfig{
		DataDir:       cfg.DataDir,
		SegmentBytes:  cfg.Store.SegmentBytes,
		FsyncInterval: cfg.Store.FsyncInterval,
		Retention:     cfg.Store.Retention,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	recovery, err := sampleStore.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if recovery.BytesTruncated > 0 {
		log.Warn("recovered sample store", "bytes truncated", recovery.BytesTruncated)
	}
	return sampleStore, nil
}

// openIndex opens the sample index, or returns nil when it is disabled
func openIndex(cfg *config.Config) (*storage.SampleIndex, error) {
	if !cfg.Index.Enabled {
		return nil, nil
	}
	index, err := storage.NewSampleIndex(filepath.Join(cfg.DataDir, "index"))
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return index, nil
}
