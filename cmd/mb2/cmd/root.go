package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ssargent/mb2/pkg/config"
	"github.com/ssargent/mb2/pkg/di"
)

var (
	container *di.Container
	cfg       = config.DefaultConfig()
	log       = logrus.New()
)

// SetContainer injects the dependency container used by commands that open
// the archive or start the server.
func SetContainer(c *di.Container) {
	container = c
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mb2",
	Short: "mb2 - Multiboot2 boot information and header toolkit",
	Long: `mb2 validates, inspects and builds Multiboot2 boot information
structures and kernel image headers, and can archive dumps behind a small
REST API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		loaded, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
			cfg.Logging.Level = f.Value.String()
		}
		if f := cmd.Flags().Lookup("data-dir"); f != nil && f.Changed {
			cfg.DataDir = f.Value.String()
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return configureLogger(log, cfg.Logging.Level, cmd.ErrOrStderr())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: ~/.config/mb2/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "./data", "Data directory for the dump archive")
}

// loadConfig reads the config file when there is one and falls back to the
// defaults otherwise, so init can create the file --config names.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	if !config.ConfigExists(path) {
		log.WithField("path", path).Debug("no configuration file, using defaults")
		return config.DefaultConfig(), nil
	}
	c, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	log.WithField("path", path).Debug("loaded configuration")
	return c, nil
}

func configureLogger(l *logrus.Logger, level string, w io.Writer) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	l.SetLevel(lvl)
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return nil
}
