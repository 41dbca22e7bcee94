package cli

import (
	"context"
	"fmt"

	"github.com/sdejongh/sftpmirror/pkg/config"
	"github.com/sdejongh/sftpmirror/pkg/logging"
	"github.com/sdejongh/sftpmirror/pkg/orchestrator"
	"github.com/sdejongh/sftpmirror/pkg/output"
	"github.com/sdejongh/sftpmirror/pkg/supervisor"
	"github.com/sdejongh/sftpmirror/pkg/watch"
	"github.com/spf13/cobra"
)

// RunFlags holds run command flags
type RunFlags struct {
	Targets []string
}

var runFlags RunFlags

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Mirror enabled targets until interrupted",
		Long: `Start one supervisor per enabled target. Each target connects, optionally
reconciles the remote tree, then mirrors local changes as they happen and
reconnects after transport failures. Runs until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}

	cmd.Flags().StringSliceVarP(&runFlags.Targets, "target", "t", nil, "only run these targets (enabled or not)")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	targets, err := selectTargets(cfg, runFlags.Targets)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer logger.Close()

	var opts []supervisor.Option
	if j, err := openJournal(cfg); err != nil {
		logger.Warn(ctx, "Status journal disabled", logging.Fields{"error": err.Error()})
	} else {
		opts = append(opts, supervisor.WithJournal(j))
	}

	var runners []orchestrator.Runner
	for i := range targets {
		sup, err := newSupervisor(cfg, &targets[i], logger, opts...)
		if err != nil {
			return fmt.Errorf("target %q: %w", targets[i].Name, err)
		}
		runners = append(runners, sup)
	}

	o := orchestrator.New(logger, runners...)
	logger.Info(ctx, fmt.Sprintf("Started %d sync task(s)", len(runners)), logging.Fields{"targets": o.Targets()})

	results := o.Run(ctx)
	logger.Info(ctx, "All targets stopped", nil)

	if err := orchestrator.Failed(results); err != nil {
		return err
	}
	return nil
}

// selectTargets returns the named targets, or every enabled one
func selectTargets(cfg *config.Config, names []string) ([]config.TargetConfig, error) {
	if len(names) == 0 {
		targets := cfg.EnabledTargets()
		if len(targets) == 0 {
			return nil, fmt.Errorf("no enabled targets in configuration")
		}
		return targets, nil
	}

	var targets []config.TargetConfig
	for _, name := range names {
		t, err := cfg.Target(name)
		if err != nil {
			return nil, err
		}
		targets = append(targets, *t)
	}
	return targets, nil
}

func newSupervisor(cfg *config.Config, t *config.TargetConfig, logger logging.Logger, opts ...supervisor.Option) (*supervisor.Supervisor, error) {
	rules, err := t.Rules()
	if err != nil {
		return nil, err
	}
	dialer, err := newDialer(cfg, t)
	if err != nil {
		return nil, err
	}
	source, err := watch.NewFSNotifySource(nil)
	if err != nil {
		return nil, err
	}

	timing := cfg.EffectiveTiming(t)
	targetLogger := logger.WithFields(logging.Fields{logging.TargetField: t.Name})

	opts = append([]supervisor.Option{
		supervisor.WithLogger(logger),
		supervisor.WithReporter(output.NewLogReporter(targetLogger, 500)),
	}, opts...)

	return supervisor.New(supervisor.Config{
		Name:            t.Name,
		Roots:           rootsOf(t),
		Rules:           rules,
		InitialSync:     t.InitialSync.Enabled,
		DeletionAllowed: t.InitialSync.Delete,
		Permissive:      t.Permissive,
		RetryInterval:   timing.RetryInterval.Std(),
		ConnectTimeout:  timing.ConnectTimeout.Std(),
		PollInterval:    timing.PollInterval.Std(),
	}, dialer, source, opts...), nil
}
