package cmd

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// encodeCmd represents the encode command
var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode a metric sample and print it as hex",
	Long: `Encode a metric sample in the current wire version and print the bytes
as hex. Every metric of the current version must be given.

Example:
  samplestore encode --broker 3 --topic orders --partition 2 --time 1600000000000 \
    -m CPU_USAGE=0.42 -m DISK_USAGE=0.1 -m LEADER_BYTES_IN=1000.5 ...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEncode(cmd.OutOrStdout(), sampleOptionsFromFlags(cmd))
	},
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	addSampleFlags(encodeCmd)
}

func runEncode(out io.Writer, opts sampleOptions) error {
	ms, err := buildSample(opts)
	if err != nil {
		return err
	}

	encoded, err := ms.ToBytes()
	if err != nil {
		return fmt.Errorf("failed to encode sample: %w", err)
	}

	_, err = fmt.Fprintln(out, hex.EncodeToString(encoded))
	return err
}
