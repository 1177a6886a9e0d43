package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ssargent/samplestore/pkg/sample"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode a hex encoded metric sample",
	Long: `Decode a metric sample written by this or any earlier release and print
it. Samples from a newer release are reported, not decoded.

Example:
  samplestore decode 0100000003...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDecode(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(out io.Writer, encoded string) error {
	data, err := hex.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}

	ms, err := sample.FromBytes(data)
	if err != nil {
		var unknown *sample.UnknownVersionError
		if errors.As(err, &unknown) {
			return fmt.Errorf("sample was written by a newer release (version %d, this release reads up to %d): %w",
				unknown.Version, unknown.Current, err)
		}
		return fmt.Errorf("failed to decode sample: %w", err)
	}

	_, err = fmt.Fprintf(out, "version %d, %d bytes\n%s\n", data[0], len(data), ms)
	return err
}
