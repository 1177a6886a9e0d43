package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/ssargent/samplestore/pkg/api"
	"github.com/ssargent/samplestore/pkg/config"
	"github.com/ssargent/samplestore/pkg/storage"
	"github.com/ssargent/samplestore/pkg/store"
)

const retentionInterval = time.Minute

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Open the sample store and index and serve the REST API until
interrupted. Expired segments and index entries older than the
retention period are removed in the background.

Examples:
  samplestore serve
  samplestore serve --config ./samplestore.yaml --port 9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromContext(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("bind") {
			cfg.Bind, _ = cmd.Flags().GetString("bind")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runServe(ctx, cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on, overrides the config file")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind to, overrides the config file")
}

func runServe(ctx context.Context, out io.Writer, cfg *config.Config) error {
	if container == nil {
		return errors.New("dependency container not initialized")
	}
	if cfg.Security.APIKey == "" || cfg.Security.APIKey == "auto" {
		log.Warn("no API key configured, the REST API is unauthenticated; run 'samplestore init' to generate one")
	}

	sampleStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer sampleStore.Close()

	index, err := openIndex(cfg)
	if err != nil {
		return err
	}
	if index != nil {
		defer index.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go enforceRetention(ctx, sampleStore, index, cfg.Store.Retention, retentionInterval)

	apiKey := cfg.Security.APIKey
	if apiKey == "auto" {
		apiKey = ""
	}

	fmt.Fprintf(out, "Starting samplestore API on %s:%d\n", cfg.Bind, cfg.Port)
	fmt.Fprintf(out, "Data directory: %s\n", cfg.DataDir)

	starter := container.GetServerFactory().CreateServerStarter()
	return starter.StartServer(ctx, sampleStore, index, api.ServerConfig{
		Port:   cfg.Port,
		Bind:   cfg.Bind,
		APIKey: apiKey,
	})
}

// enforceRetention applies retention every interval until ctx is done
func enforceRetention(ctx context.Context, sampleStore *store.SampleStore, index *storage.SampleIndex, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			applyRetention(now, sampleStore, index, retention)
		}
	}
}

// applyRetention removes expired segments and the indexed samples older
// than now minus retention. A zero retention keeps everything.
func applyRetention(now time.Time, sampleStore *store.SampleStore, index *storage.SampleIndex, retention time.Duration) {
	removed, err := sampleStore.EnforceRetention(now)
	if err != nil {
		log.Error("retention failed", "error", err)
	} else if removed > 0 {
		log.Info("removed expired segments", "count", removed)
	}

	if index == nil || retention <= 0 {
		return
	}
	cutoff := now.Add(-retention).UnixMilli()
	trimmed, err := index.DeleteOlderThan(cutoff)
	if err != nil {
		log.Error("index retention failed", "error", err)
		return
	}
	log.Debug("trimmed index", "partitions", trimmed, "cutoff", cutoff)
}
