package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ssargent/mb2/pkg/api"
	"github.com/ssargent/mb2/pkg/config"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the mb2 REST API server. Dumps posted to it are validated and,
when well formed, archived under the data directory.

A configuration file with a generated API key is created on first run
unless --api-key is given.

Examples:
  mb2 serve
  mb2 serve --port 9300 --bind 0.0.0.0
  mb2 serve --api-key mysecretkey --data-dir ./archive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyServeFlags(cmd); err != nil {
			return err
		}
		if container == nil {
			return fmt.Errorf("dependency container not initialized")
		}

		store, err := container.GetStoreFactory().OpenStore(cfg.DataDir, log)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.WithFields(logrus.Fields{"data_dir": cfg.DataDir, "bind": cfg.Bind, "port": cfg.Port}).Info("starting mb2 server")
		starter := container.GetServerFactory().CreateServerStarter()
		return starter.StartServer(ctx, store, serverConfig(cfg), log)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind server to")
	serveCmd.Flags().String("api-key", "", "API key for client authentication")
	serveCmd.Flags().Int64("max-dump-size", 0, "Largest accepted request body in bytes")
	serveCmd.Flags().Bool("print-key", false, "Print a newly generated API key to the console")
}

// applyServeFlags overrides cfg with explicitly set flags and makes sure an
// API key exists, bootstrapping a config file if needed.
func applyServeFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("bind") {
		cfg.Bind, _ = flags.GetString("bind")
	}
	if flags.Changed("max-dump-size") {
		cfg.Security.MaxDumpSize, _ = flags.GetInt64("max-dump-size")
	}
	if key, _ := flags.GetString("api-key"); key != "" {
		cfg.Security.APIKey = key
	}
	if cfg.Security.APIKey != "" && cfg.Security.APIKey != "auto" {
		return cfg.Validate()
	}

	configPath, _ := flags.GetString("config")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}
	boot, err := config.BootstrapConfig(configPath, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to bootstrap config: %w", err)
	}
	cfg.Security.APIKey = boot.Security.APIKey
	log.WithField("path", configPath).Info("configuration created with a new API key")
	if printKey, _ := flags.GetBool("print-key"); printKey {
		cmd.Printf("API key: %s\n", cfg.Security.APIKey)
	}
	return cfg.Validate()
}

func serverConfig(c *config.Config) api.ServerConfig {
	return api.ServerConfig{
		Port:               c.Port,
		Bind:               c.Bind,
		APIKey:             c.Security.APIKey,
		MaxDumpSize:        c.Security.MaxDumpSize,
		RelaxedTermination: c.Parse.RelaxedTermination,
	}
}

