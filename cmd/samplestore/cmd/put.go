package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/ssargent/samplestore/pkg/config"
)

// putCmd represents the put command
var putCmd = &cobra.Command{
	Use:   "put",
	Short: "Append a metric sample to the store",
	Long: `Append a metric sample to the sample log and, when enabled, the index.

The data directory is locked while a command uses it, so put fails instead
of writing while 'samplestore serve' is running on the same directory. Use
POST /api/v1/samples against the running server instead.

Example:
  samplestore put --broker 1 --topic orders --partition 0 -m CPU_USAGE=0.5 ...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromContext(cmd)
		if err != nil {
			return err
		}
		return runPut(cmd.OutOrStdout(), cfg, sampleOptionsFromFlags(cmd))
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
	addSampleFlags(putCmd)
}

func runPut(out io.Writer, cfg *config.Config, opts sampleOptions) error {
	ms, err := buildSample(opts)
	if err != nil {
		return err
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

	if err := sampleStore.Append(ms); err != nil {
		return fmt.Errorf("failed to append sample: %w", err)
	}
	if index != nil {
		if err := index.Put(ms); err != nil {
			return fmt.Errorf("failed to index sample: %w", err)
		}
	}

	_, err = fmt.Fprintf(out, "Stored sample for %s at %d\n", ms.Entity(), ms.SampleTime())
	return err
}
