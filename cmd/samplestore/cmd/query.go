package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/ssargent/samplestore/pkg/config"
	"github.com/ssargent/samplestore/pkg/sample"
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query <topic> <partition>",
	Short: "Query indexed samples of a partition",
	Long: `Print the indexed samples of a partition with from <= sample time < to,
in time order.

Example:
  samplestore query orders 0 --from 1600000000000 --to 1600000060000`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromContext(cmd)
		if err != nil {
			return err
		}

		partition, err := strconv.ParseInt(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid partition %q", args[1])
		}
		from, _ := cmd.Flags().GetInt64("from")
		to, _ := cmd.Flags().GetInt64("to")
		latest, _ := cmd.Flags().GetBool("latest")

		entity := sample.PartitionEntity{Topic: args[0], Partition: int32(partition)}
		return runQuery(cmd.Context(), cmd.OutOrStdout(), cfg, entity, from, to, latest)
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().Int64("from", math.MinInt64, "Inclusive lower bound in epoch milliseconds")
	queryCmd.Flags().Int64("to", math.MaxInt64, "Exclusive upper bound in epoch milliseconds")
	queryCmd.Flags().Bool("latest", false, "Only print the most recent sample")
}

func runQuery(ctx context.Context, out io.Writer, cfg *config.Config, entity sample.PartitionEntity, from, to int64, latest bool) error {
	index, err := openIndex(cfg)
	if err != nil {
		return err
	}
	if index == nil {
		return errors.New("the sample index is disabled in the configuration")
	}
	defer index.Close()

	if latest {
		ms, err := index.Latest(entity)
		if err != nil {
			return err
		}
		if ms == nil {
			_, err = fmt.Fprintf(out, "No samples for %s\n", entity)
			return err
		}
		_, err = fmt.Fprintln(out, ms)
		return err
	}

	samples, err := index.Range(ctx, entity, from, to)
	if err != nil {
		return fmt.Errorf("failed to query samples: %w", err)
	}

	for _, ms := range samples {
		if _, err := fmt.Fprintln(out, ms); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(out, "%d samples\n", len(samples))
	return err
}
