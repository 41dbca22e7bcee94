package cli

import (
	"fmt"
	"os"

	"github.com/sdejongh/sftpmirror/pkg/config"
	"github.com/spf13/cobra"
)

// NewConfigCommand creates the config command
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `View or create the sftpmirror configuration.`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigInitCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Log Level: %s\n", cfg.Logging.Level)
			fmt.Fprintf(out, "Log Format: %s\n", cfg.Logging.Format)
			if cfg.Logging.File != "" {
				fmt.Fprintf(out, "Log File: %s\n", cfg.Logging.File)
			}
			fmt.Fprintf(out, "Retry Interval: %s\n", cfg.Defaults.RetryInterval.Std())
			fmt.Fprintf(out, "Connect Timeout: %s\n", cfg.Defaults.ConnectTimeout.Std())

			for i := range cfg.Targets {
				t := &cfg.Targets[i]
				timing := cfg.EffectiveTiming(t)

				fmt.Fprintf(out, "\nTarget: %s (enabled: %v)\n", t.Name, t.Enabled)
				fmt.Fprintf(out, "  Local:        %s\n", t.LocalPath)
				if t.Transport == config.TransportSFTP {
					fmt.Fprintf(out, "  Remote:       %s@%s:%d:%s\n", t.SSHUser, t.SSHHost, t.SSHPort, t.RemotePath)
				} else {
					fmt.Fprintf(out, "  Remote:       %s (%s)\n", t.RemotePath, t.Transport)
				}
				fmt.Fprintf(out, "  Initial sync: %v (delete: %v)\n", t.InitialSync.Enabled, t.InitialSync.Delete)
				fmt.Fprintf(out, "  Excludes:     %v\n", t.ExcludePatterns)
				fmt.Fprintf(out, "  Source only:  %v\n", t.SourceCodeOnly)
				fmt.Fprintf(out, "  Permissive:   %v\n", t.Permissive)
				if t.BandwidthLimit != "" {
					fmt.Fprintf(out, "  Bandwidth:    %s/s\n", t.BandwidthLimit)
				}
				fmt.Fprintf(out, "  Retry:        %s\n", timing.RetryInterval.Std())
			}

			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an example configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
			}

			if err := config.SaveToFile(config.Example(), path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created at: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}
