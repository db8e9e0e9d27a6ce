package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/mb2/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an mb2 configuration file",
	Long: `Create a configuration file with a freshly generated API key.

Examples:
  mb2 init
  mb2 init --config ./mb2.yaml --data-dir /var/lib/mb2 --print-key`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		force, _ := cmd.Flags().GetBool("force")
		printKey, _ := cmd.Flags().GetBool("print-key")

		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}
		if config.ConfigExists(configPath) && !force {
			return fmt.Errorf("config already exists at %s; use --force to replace it", configPath)
		}

		c, err := config.BootstrapConfig(configPath, cfg.DataDir)
		if err != nil {
			return err
		}
		cmd.Printf("Configuration created at %s\n", configPath)
		cmd.Printf("Data directory: %s\n", c.DataDir)
		if printKey {
			cmd.Printf("API key: %s\n", c.Security.APIKey)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "Replace an existing configuration")
	initCmd.Flags().Bool("print-key", false, "Print the generated API key")
}
