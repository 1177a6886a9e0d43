package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/ssargent/samplestore/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with a generated API key",
	Long: `Create the configuration file and data directory. A random API key is
generated for the REST API.

Examples:
  samplestore init
  samplestore init --config ./samplestore.yaml --data-dir ./data --print-key`,
	// Runs before a config file exists
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}
		dataDir, _ := cmd.Flags().GetString("data-dir")
		force, _ := cmd.Flags().GetBool("force")
		printKey, _ := cmd.Flags().GetBool("print-key")

		return runInit(cmd.OutOrStdout(), configPath, dataDir, force, printKey)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration file")
	initCmd.Flags().Bool("print-key", false, "Print the generated API key")
}

func runInit(out io.Writer, configPath, dataDir string, force, printKey bool) error {
	if config.ConfigExists(configPath) && !force {
		_, err := fmt.Fprintf(out, "Configuration already exists at %s. Use --force to overwrite.\n", configPath)
		return err
	}

	cfg, err := config.BootstrapConfig(configPath, dataDir)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	fmt.Fprintf(out, "Configuration created at %s\n", configPath)
	fmt.Fprintf(out, "Data directory: %s\n", cfg.DataDir)
	if printKey {
		fmt.Fprintf(out, "API key: %s\n", cfg.Security.APIKey)
	}
	return nil
}
