package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ssargent/mb2/pkg/config"
)

const serviceName = "mb2.service"

// Replaced in tests.
var (
	unitPath   = "/etc/systemd/system/" + serviceName
	runCommand = func(command string, args ...string) error {
		c := exec.Command(command, args...)
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	}
	requireRoot = func() error {
		if os.Geteuid() != 0 {
			return fmt.Errorf("this command requires root privileges")
		}
		return nil
	}
)

// serviceCmd represents the service command
var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the mb2 server as a systemd service",
	Long: `Install and control "mb2 serve" as a systemd service. The unit runs
with a restrictive umask and may only write to the data and config
directories.`,
}

var installServiceCmd = &cobra.Command{
	Use:   "install",
	Short: "Install mb2 as a systemd service",
	Long: `Write the systemd unit, creating a configuration with a generated API key
first if none exists, then enable and optionally start the service.

Examples:
  sudo mb2 service install
  sudo mb2 service install --data-dir /var/lib/mb2 --user mb2 --config /etc/mb2/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}
		configPath, _ := cmd.Flags().GetString("config")
		user, _ := cmd.Flags().GetString("user")
		binary, _ := cmd.Flags().GetString("binary")
		startNow, _ := cmd.Flags().GetBool("start")
		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}

		if !config.ConfigExists(configPath) {
			if _, err := config.BootstrapConfig(configPath, cfg.DataDir); err != nil {
				return fmt.Errorf("failed to bootstrap config: %w", err)
			}
			cmd.Printf("Created configuration at %s\n", configPath)
		} else if cmd.Flags().Changed("data-dir") {
			if err := config.SaveConfig(cfg, configPath); err != nil {
				return err
			}
		}

		if err := writeSystemdUnit(unitPath, systemdUnit(cfg, configPath, user, binary)); err != nil {
			return fmt.Errorf("failed to write unit: %w", err)
		}
		if err := runCommand("systemctl", "daemon-reload"); err != nil {
			return err
		}
		if err := runCommand("systemctl", "enable", serviceName); err != nil {
			return err
		}
		if startNow {
			if err := runCommand("systemctl", "start", serviceName); err != nil {
				return err
			}
		}
		cmd.Printf("Installed %s (config %s, data %s)\n", serviceName, configPath, cfg.DataDir)
		return nil
	},
}

var uninstallServiceCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the mb2 systemd service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}
		_ = runCommand("systemctl", "stop", serviceName)
		if err := runCommand("systemctl", "disable", serviceName); err != nil {
			log.WithError(err).Warn("could not disable service")
		}
		if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove unit: %w", err)
		}
		if err := runCommand("systemctl", "daemon-reload"); err != nil {
			return err
		}
		cmd.Println("Service removed; configuration and archive were kept")
		return nil
	},
}

var serviceLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show service logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		follow, _ := cmd.Flags().GetBool("follow")
		lines, _ := cmd.Flags().GetInt("lines")
		journalArgs := []string{"-u", serviceName}
		if follow {
			journalArgs = append(journalArgs, "-f")
		}
		if lines > 0 {
			journalArgs = append(journalArgs, fmt.Sprintf("-n%d", lines))
		}
		return runCommand("journalctl", journalArgs...)
	},
}

// systemctlCmd builds a subcommand that forwards one verb to systemctl.
func systemctlCmd(verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand("systemctl", verb, serviceName)
		},
	}
}

func init() {
	rootCmd.AddCommand(serviceCmd)
	serviceCmd.AddCommand(
		installServiceCmd,
		uninstallServiceCmd,
		serviceLogsCmd,
		systemctlCmd("start", "Start the service"),
		systemctlCmd("stop", "Stop the service"),
		systemctlCmd("restart", "Restart the service"),
		systemctlCmd("status", "Show service status"),
	)

	installServiceCmd.Flags().String("user", "mb2", "User to run the service as")
	installServiceCmd.Flags().String("binary", "/usr/local/bin/mb2", "Path of the installed mb2 binary")
	installServiceCmd.Flags().Bool("start", true, "Start the service after installation")

	serviceLogsCmd.Flags().BoolP("follow", "f", false, "Follow log output")
	serviceLogsCmd.Flags().IntP("lines", "n", 0, "Number of lines to show")
}

func systemdUnit(c *config.Config, configPath, user, binary string) string {
	return fmt.Sprintf(`[Unit]
Description=mb2 Multiboot2 inspection server
After=network-online.target
Wants=network-online.target

[Service]
User=%s
Group=%s
ExecStart=%s serve --config %s
Restart=on-failure
NoNewPrivileges=true
UMask=0077
ReadWritePaths=%s
ReadWritePaths=%s

[Install]
WantedBy=multi-user.target
`, user, user, binary, configPath, c.DataDir, filepath.Dir(configPath))
}

func writeSystemdUnit(path, unit string) error {
	return os.WriteFile(path, []byte(unit), 0644)
}
