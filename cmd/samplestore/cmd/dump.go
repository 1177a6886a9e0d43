package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/ssargent/samplestore/pkg/config"
	"github.com/ssargent/samplestore/pkg/sample"
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print every stored sample",
	Long: `Replay the sample log from the oldest segment and print every sample.
Samples written by a newer release are skipped and counted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromContext(cmd)
		if err != nil {
			return err
		}
		topic, _ := cmd.Flags().GetString("topic")
		return runDump(cmd.Context(), cmd.OutOrStdout(), cfg, topic)
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().String("topic", "", "Only print samples of this topic")
}

func runDump(ctx context.Context, out io.Writer, cfg *config.Config, topic string) error {
	sampleStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer sampleStore.Close()

	result, err := sampleStore.Load(ctx, func(ms *sample.PartitionMetricSample) error {
		if topic != "" && ms.Entity().Topic != topic {
			return nil
		}
		_, err := fmt.Fprintln(out, ms)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to load samples: %w", err)
	}

	_, err = fmt.Fprintf(out, "%d samples in %d segments (%d from newer releases, %d corrupt, %d damaged segments)\n",
		result.SamplesLoaded, result.Segments, result.UnknownVersion, result.CorruptSamples, result.CorruptFrames)
	return err
}
