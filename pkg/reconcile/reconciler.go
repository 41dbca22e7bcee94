package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/sdejongh/sftpmirror/pkg/filter"
	"github.com/sdejongh/sftpmirror/pkg/logging"
	"github.com/sdejongh/sftpmirror/pkg/models"
	"github.com/sdejongh/sftpmirror/pkg/scan"
	"github.com/sdejongh/sftpmirror/pkg/storage"
	"golang.org/x/sync/errgroup"
)

// Reconciler runs a full pass for one target: scan both sides, plan, apply
type Reconciler struct {
	Name            string
	Roots           Roots
	Rules           *filter.RuleSet
	DeletionAllowed bool

	Local    *scan.LocalScanner
	Remote   *scan.RemoteScanner
	Logger   logging.Logger
	Reporter Reporter
}

// Compute scans both trees concurrently and returns the plan with the
// scan statistics filled into a fresh report
func (r *Reconciler) Compute(ctx context.Context, session storage.Session) (*models.Plan, *models.ReconcileReport, error) {
	report := &models.ReconcileReport{Target: r.Name, StartTime: time.Now()}

	localScanner, remoteScanner := r.Local, r.Remote
	if localScanner == nil {
		localScanner = scan.NewLocalScanner(nil, r.logger())
	}
	if remoteScanner == nil {
		remoteScanner = scan.NewRemoteScanner(r.logger())
	}

	var local, remote models.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap, err := localScanner.Scan(gctx, r.Roots.Local, r.Rules)
		if err != nil {
			return err
		}
		local = snap
		return nil
	})
	g.Go(func() error {
		snap, err := remoteScanner.Scan(gctx, session, r.Roots.Remote, r.Rules)
		if err != nil {
			return err
		}
		remote = snap
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, report, err
	}

	report.Stats.LocalFiles, report.Stats.LocalDirs = local.Counts()
	report.Stats.RemoteFiles, report.Stats.RemoteDirs = remote.Counts()

	plan := Plan(local, remote, r.DeletionAllowed)
	for i := range plan.Actions {
		if plan.Actions[i].IsTransfer() {
			plan.Actions[i].LocalPath = r.Roots.LocalPath(plan.Actions[i].RelativePath)
		}
	}

	return plan, report, nil
}

// Run performs one reconciliation pass through session
func (r *Reconciler) Run(ctx context.Context, session storage.Session) (*models.ReconcileReport, error) {
	logger := r.logger()
	logger.Info(ctx, "Starting initial sync", nil)

	plan, report, err := r.Compute(ctx, session)
	if err != nil {
		report.Status = models.StatusFailed
		if ctx.Err() != nil {
			report.Status = models.StatusCancelled
		}
		return report, fmt.Errorf("failed to scan trees: %w", err)
	}

	logger.Debug(ctx, "Reconciliation plan computed", logging.Fields{
		"actions":      len(plan.Actions),
		"unchanged":    plan.Unchanged,
		"extra_remote": plan.ExtraRemote,
	})

	report, err = NewExecutor(r.Roots, logger, r.Reporter).Execute(ctx, session, plan, report)
	if err != nil {
		return report, err
	}

	logger.Info(ctx, "Initial sync completed", logging.Fields{
		"status":   string(report.Status),
		"created":  report.Stats.DirsCreated,
		"uploaded": report.Stats.FilesUploaded,
		"updated":  report.Stats.FilesUpdated,
		"removed":  report.Stats.FilesRemoved + report.Stats.DirsRemoved,
		"failed":   report.Stats.ActionsFailed,
		"duration": report.Duration.Round(time.Millisecond).String(),
	})
	return report, nil
}

func (r *Reconciler) logger() logging.Logger {
	if r.Logger == nil {
		return logging.NewNullLogger()
	}
	return r.Logger
}
