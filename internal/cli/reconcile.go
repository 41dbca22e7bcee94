package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/sdejongh/sftpmirror/pkg/config"
	"github.com/sdejongh/sftpmirror/pkg/logging"
	"github.com/sdejongh/sftpmirror/pkg/models"
	"github.com/sdejongh/sftpmirror/pkg/output"
	"github.com/sdejongh/sftpmirror/pkg/reconcile"
	"github.com/sdejongh/sftpmirror/pkg/scan"
	"github.com/sdejongh/sftpmirror/pkg/storage"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// ReconcileFlags holds reconcile command flags
type ReconcileFlags struct {
	Target       string
	Delete       bool
	Output       string
	ReportFile   string
	ReportFormat string
	NoProgress   bool
}

var reconcileFlags ReconcileFlags

// NewReconcileCommand creates the reconcile command
func NewReconcileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass for a target",
		Long: `Connect to a target once, bring the remote tree in line with the local
tree, print a summary and exit. The exit code is non-zero when any action
failed.`,
		Args: cobra.NoArgs,
		RunE: runReconcile,
	}

	cmd.Flags().StringVarP(&reconcileFlags.Target, "target", "t", "", "target name (required)")
	cmd.MarkFlagRequired("target")
	cmd.Flags().BoolVar(&reconcileFlags.Delete, "delete", false, "remove remote paths absent locally, even if the config disables it")
	cmd.Flags().StringVarP(&reconcileFlags.Output, "output", "o", "human", "summary format: human, json")
	cmd.Flags().StringVar(&reconcileFlags.ReportFile, "report-file", "", "also write the summary to file")
	cmd.Flags().StringVar(&reconcileFlags.ReportFormat, "report-format", "json", "report file format: human, json")
	cmd.Flags().BoolVar(&reconcileFlags.NoProgress, "no-progress", false, "disable the progress bar")

	return cmd
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	formatter, err := output.NewFormatter(reconcileFlags.Output)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	target, err := cfg.Target(reconcileFlags.Target)
	if err != nil {
		return err
	}
	if err := checkLocalRoot(target); err != nil {
		return err
	}

	showProgress := !reconcileFlags.NoProgress && !globalFlags.Quiet &&
		term.IsTerminal(int(os.Stderr.Fd()))

	logger, err := newLogger(cfg, showProgress)
	if err != nil {
		return err
	}
	defer logger.Close()
	logger = logger.WithFields(logging.Fields{logging.TargetField: target.Name})

	var reporter reconcile.Reporter = reconcile.NopReporter{}
	if showProgress {
		reporter = output.NewProgressReporter(os.Stderr, true)
	}

	session, err := connect(ctx, cfg, target)
	if err != nil {
		return err
	}
	defer session.Close()

	r, err := newReconciler(target, logger, reporter)
	if err != nil {
		return err
	}
	r.DeletionAllowed = target.InitialSync.Delete || reconcileFlags.Delete

	report, runErr := r.Run(ctx, session)
	if report != nil {
		recordReport(ctx, cfg, target.Name, report, logger)

		if !globalFlags.Quiet {
			if err := formatter.Report(cmd.OutOrStdout(), report); err != nil {
				return err
			}
		}
		if reconcileFlags.ReportFile != "" {
			if err := output.WriteReportFile(report, reconcileFlags.ReportFile, reconcileFlags.ReportFormat); err != nil {
				return err
			}
		}
	}

	if runErr != nil {
		return fmt.Errorf("reconcile failed: %w", runErr)
	}
	if code := report.Status.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// connect opens one session to a target within its connect timeout
func connect(ctx context.Context, cfg *config.Config, t *config.TargetConfig) (storage.Session, error) {
	dialer, err := newDialer(cfg, t)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.EffectiveTiming(t).ConnectTimeout.Std())
	defer cancel()

	session, err := dialer.Dial(dialCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", t.Name, err)
	}
	if t.Permissive {
		session = storage.Permissive(session)
	}
	return session, nil
}

func newReconciler(t *config.TargetConfig, logger logging.Logger, reporter reconcile.Reporter) (*reconcile.Reconciler, error) {
	rules, err := t.Rules()
	if err != nil {
		return nil, err
	}
	return &reconcile.Reconciler{
		Name:            t.Name,
		Roots:           rootsOf(t),
		Rules:           rules,
		DeletionAllowed: t.InitialSync.Delete,
		Local:           scan.NewLocalScanner(afero.NewOsFs(), logger),
		Remote:          scan.NewRemoteScanner(logger),
		Logger:          logger,
		Reporter:        reporter,
	}, nil
}

// recordReport stores the outcome in the status journal, best-effort
func recordReport(ctx context.Context, cfg *config.Config, target string, report *models.ReconcileReport, logger logging.Logger) {
	j, err := openJournal(cfg)
	if err == nil {
		err = j.RecordReconcile(target, report)
	}
	if err != nil {
		logger.Debug(ctx, "Failed to record reconcile report", logging.Fields{"error": err.Error()})
	}
}
