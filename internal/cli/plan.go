package cli

import (
	"context"
	"fmt"

	"github.com/sdejongh/sftpmirror/pkg/logging"
	"github.com/sdejongh/sftpmirror/pkg/output"
	"github.com/spf13/cobra"
)

// PlanFlags holds plan command flags
type PlanFlags struct {
	Target string
	Delete bool
	Output string
}

var planFlags PlanFlags

// NewPlanCommand creates the plan command
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a reconciliation pass would change",
		Long: `Scan the local and remote trees of a target and print the actions a
reconciliation pass would perform, without changing anything.`,
		Args: cobra.NoArgs,
		RunE: runPlan,
	}

	cmd.Flags().StringVarP(&planFlags.Target, "target", "t", "", "target name (required)")
	cmd.MarkFlagRequired("target")
	cmd.Flags().BoolVar(&planFlags.Delete, "delete", false, "plan removal of remote paths absent locally")
	cmd.Flags().StringVarP(&planFlags.Output, "output", "o", "human", "output format: human, json")

	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	formatter, err := output.NewFormatter(planFlags.Output)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	target, err := cfg.Target(planFlags.Target)
	if err != nil {
		return err
	}
	if err := checkLocalRoot(target); err != nil {
		return err
	}

	logger, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer logger.Close()
	logger = logger.WithFields(logging.Fields{logging.TargetField: target.Name})

	session, err := connect(ctx, cfg, target)
	if err != nil {
		return err
	}
	defer session.Close()

	r, err := newReconciler(target, logger, nil)
	if err != nil {
		return err
	}
	r.DeletionAllowed = target.InitialSync.Delete || planFlags.Delete

	plan, _, err := r.Compute(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to scan trees: %w", err)
	}

	return formatter.Plan(cmd.OutOrStdout(), target.Name, plan)
}
