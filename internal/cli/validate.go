package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file",
		Long: `Load and validate the configuration file, then check that the local path
of every enabled target exists.`,
		Args: cobra.NoArgs,
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for i := range cfg.Targets {
		t := &cfg.Targets[i]
		if !t.Enabled {
			fmt.Fprintf(out, "  %-20s disabled\n", t.Name)
			continue
		}
		if err := checkLocalRoot(t); err != nil {
			fmt.Fprintf(out, "✗ %-20s %v\n", t.Name, err)
			failed++
			continue
		}
		fmt.Fprintf(out, "✓ %-20s %s -> %s:%s\n", t.Name, t.LocalPath, t.SSHHost, t.RemotePath)
	}

	if failed > 0 {
		return fmt.Errorf("%d enabled target(s) cannot start", failed)
	}
	fmt.Fprintf(out, "Configuration is valid (%d target(s), %d enabled)\n", len(cfg.Targets), len(cfg.EnabledTargets()))
	return nil
}
