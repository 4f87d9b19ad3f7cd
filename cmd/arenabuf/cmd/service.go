package cmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ssargent/arenabuf/pkg/config"
)

const (
	serviceName       = "arenabuf.service"
	defaultUnitDir    = "/etc/systemd/system"
	defaultBinaryPath = "/usr/local/bin/arenabuf"
)

// runCommand runs a system command with its output attached to out. Tests
// replace it.
var runCommand = func(out io.Writer, command string, args ...string) error {
	c := exec.Command(command, args...)
	c.Stdout = out
	c.Stderr = out
	return c.Run()
}

// renderSystemdUnit returns the unit file running "arenabuf serve" with cfg
func renderSystemdUnit(cfg *config.Config, configPath, user, binary string) string {
	return fmt.Sprintf(`[Unit]
Description=arenabuf document server
After=network-online.target
Wants=network-online.target

[Service]
User=%s
Group=%s
ExecStart=%s --config %s serve
Restart=on-failure
NoNewPrivileges=true
UMask=0077
ReadWritePaths=%s
ReadOnlyPaths=%s
ReadOnlyPaths=%s

[Install]
WantedBy=multi-user.target
`, user, user, binary, configPath, cfg.DataDir, filepath.Dir(configPath), cfg.SchemaPath)
}

func newServiceCmd(a *app) *cobra.Command {
	var (
		user    string
		binary  string
		unitDir string
		start   bool
	)
	systemctl := func(cmd *cobra.Command, args ...string) error {
		return runCommand(cmd.OutOrStdout(), "systemctl", args...)
	}
	requireRoot := func(action string) error {
		if unitDir == defaultUnitDir && os.Geteuid() != 0 {
			return fmt.Errorf("service %s requires root privileges, run with sudo", action)
		}
		return nil
	}

	serviceCmd := &cobra.Command{
		Use:   "service",
		Short: "Manage arenabuf as a systemd service",
		Long: `Manage "arenabuf serve" as a systemd service for production deployments.

The unit runs with a restricted filesystem view and restarts on failure.`,
	}
	serviceCmd.PersistentFlags().StringVar(&unitDir, "unit-dir", defaultUnitDir, "Directory for the systemd unit file")

	unitCmd := &cobra.Command{
		Use:   "unit",
		Short: "Print the systemd unit file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			cmd.Print(renderSystemdUnit(cfg, a.resolvedConfigPath(), user, binary))
			return nil
		},
	}

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Install and enable the systemd service",
		Long: `Write the systemd unit for the current configuration, enable it and optionally
start it. A configuration is bootstrapped first if none exists.

Examples:
  sudo arenabuf service install
  sudo arenabuf --config /etc/arenabuf/config.yaml service install --user arenabuf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot("install"); err != nil {
				return err
			}
			configPath := a.resolvedConfigPath()
			if !config.ConfigExists(configPath) {
				if _, err := config.BootstrapConfig(configPath, a.dataDir, a.schemaPath); err != nil {
					return err
				}
				cmd.Printf("Created new configuration at %s\n", configPath)
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			unitPath := filepath.Join(unitDir, serviceName)
			if err := os.WriteFile(unitPath, []byte(renderSystemdUnit(cfg, configPath, user, binary)), 0600); err != nil {
				return fmt.Errorf("failed to write unit file: %w", err)
			}
			if err := systemctl(cmd, "daemon-reload"); err != nil {
				return fmt.Errorf("failed to reload systemd: %w", err)
			}
			if err := systemctl(cmd, "enable", serviceName); err != nil {
				return fmt.Errorf("failed to enable service: %w", err)
			}
			if start {
				if err := systemctl(cmd, "start", serviceName); err != nil {
					return fmt.Errorf("failed to start service: %w", err)
				}
			}

			cmd.Printf("Service %s installed\n", serviceName)
			cmd.Printf("Unit: %s\n", unitPath)
			cmd.Printf("Config: %s\n", configPath)
			cmd.Printf("Data: %s\n", cfg.DataDir)
			return nil
		},
	}
	for _, c := range []*cobra.Command{unitCmd, installCmd} {
		c.Flags().StringVar(&user, "user", "arenabuf", "User to run the service as")
		c.Flags().StringVar(&binary, "binary", defaultBinaryPath, "Path of the installed arenabuf binary")
	}
	installCmd.Flags().BoolVar(&start, "start", true, "Start the service after installation")

	uninstallCmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Stop, disable and remove the systemd service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot("uninstall"); err != nil {
				return err
			}
			_ = systemctl(cmd, "stop", serviceName)
			if err := systemctl(cmd, "disable", serviceName); err != nil {
				cmd.Printf("Warning: could not disable service: %v\n", err)
			}
			unitPath := filepath.Join(unitDir, serviceName)
			if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove unit file: %w", err)
			}
			if err := systemctl(cmd, "daemon-reload"); err != nil {
				return fmt.Errorf("failed to reload systemd: %w", err)
			}
			cmd.Println("Service uninstalled. Configuration and data were not removed.")
			return nil
		},
	}

	serviceCmd.AddCommand(unitCmd, installCmd, uninstallCmd)
	for _, action := range []string{"start", "stop", "restart", "status"} {
		action := action
		serviceCmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("Run systemctl %s for the service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return systemctl(cmd, action, serviceName)
			},
		})
	}

	var follow bool
	var lines int
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Show service logs with journalctl",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			journalArgs := []string{"-u", serviceName}
			if follow {
				journalArgs = append(journalArgs, "-f")
			}
			if lines > 0 {
				journalArgs = append(journalArgs, fmt.Sprintf("-n%d", lines))
			}
			return runCommand(cmd.OutOrStdout(), "journalctl", journalArgs...)
		},
	}
	logsCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&lines, "lines", "n", 0, "Number of lines to show")
	serviceCmd.AddCommand(logsCmd)

	return serviceCmd
}
