package reconcile

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/sdejongh/sftpmirror/pkg/logging"
	"github.com/sdejongh/sftpmirror/pkg/models"
	"github.com/sdejongh/sftpmirror/pkg/storage"
)

// Reporter receives progress of a reconciliation pass
type Reporter interface {
	// Start is called once with the plan about to run
	Start(plan *models.Plan)

	// ActionDone is called after every action with its error, if any
	ActionDone(action models.Action, err error)

	// Finish is called once with the final report
	Finish(report *models.ReconcileReport)
}

// NopReporter ignores all progress
type NopReporter struct{}

func (NopReporter) Start(plan *models.Plan)                    {}
func (NopReporter) ActionDone(action models.Action, err error) {}
func (NopReporter) Finish(report *models.ReconcileReport)      {}

// Roots locates a target on both sides
type Roots struct {
	Local  string
	Remote string
}

// LocalPath returns the absolute local path of rel
func (r Roots) LocalPath(rel string) string {
	return filepath.Join(r.Local, filepath.FromSlash(rel))
}

// RemotePath returns the absolute remote path of rel
func (r Roots) RemotePath(rel string) string {
	return path.Join(r.Remote, rel)
}

// Apply performs one action through the session
func Apply(ctx context.Context, session storage.Session, roots Roots, action models.Action) error {
	remote := roots.RemotePath(action.RelativePath)

	switch action.Kind {
	case models.ActionMkdir:
		return session.Mkdir(ctx, remote)
	case models.ActionUpload, models.ActionUpdate:
		local := action.LocalPath
		if local == "" {
			local = roots.LocalPath(action.RelativePath)
		}
		_, err := session.Upload(ctx, local, remote)
		return err
	case models.ActionRemoveFile:
		return session.Remove(ctx, remote)
	case models.ActionRemoveDir:
		return session.RemoveDirectory(ctx, remote)
	default:
		return fmt.Errorf("unknown action kind: %s", action.Kind)
	}
}

// Executor applies plans best-effort: a failed action is logged and
// skipped, only a lost session stops the pass
type Executor struct {
	Roots    Roots
	Logger   logging.Logger
	Reporter Reporter

	now func() time.Time
}

// NewExecutor creates an executor for one target
func NewExecutor(roots Roots, logger logging.Logger, reporter Reporter) *Executor {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Executor{Roots: roots, Logger: logger, Reporter: reporter, now: time.Now}
}

// Execute runs every action of the plan in order.
// The returned error is non-nil only when the pass was interrupted, by a
// transport error or by cancellation; the report is returned in all cases.
func (e *Executor) Execute(ctx context.Context, session storage.Session, plan *models.Plan, report *models.ReconcileReport) (*models.ReconcileReport, error) {
	if report == nil {
		report = &models.ReconcileReport{StartTime: e.now()}
	}
	report.Stats.FilesUnchanged = plan.Unchanged
	report.Stats.ExtraRemote = plan.ExtraRemote

	e.Reporter.Start(plan)

	finish := func(status models.Status, err error) (*models.ReconcileReport, error) {
		report.EndTime = e.now()
		report.Duration = report.EndTime.Sub(report.StartTime)
		report.Status = status
		e.Reporter.Finish(report)
		return report, err
	}

	for _, action := range plan.Actions {
		if err := ctx.Err(); err != nil {
			return finish(models.StatusCancelled, err)
		}

		fields := logging.Fields{"action": string(action.Kind), "path": e.Roots.RemotePath(action.RelativePath)}
		e.Logger.Info(ctx, describe(action), fields)

		err := Apply(ctx, session, e.Roots, action)
		e.Reporter.ActionDone(action, err)

		if err != nil {
			if storage.IsTransportError(err) {
				e.Logger.Error(ctx, "Connection lost during reconciliation", err, fields)
				return finish(models.StatusFailed, err)
			}
			if ctx.Err() != nil {
				return finish(models.StatusCancelled, ctx.Err())
			}

			e.Logger.Error(ctx, "Action failed", err, fields)
			report.Stats.ActionsFailed++
			report.Errors = append(report.Errors, models.ActionError{
				Action:    action,
				Error:     err.Error(),
				Timestamp: e.now(),
			})
			continue
		}

		report.Stats.Record(action)
	}

	if plan.ExtraRemote > 0 {
		e.Logger.Info(ctx, fmt.Sprintf("Found %d extra remote item(s). Deletion is disabled in config.", plan.ExtraRemote), nil)
	}

	if report.Stats.ActionsFailed > 0 {
		return finish(models.StatusPartial, nil)
	}
	return finish(models.StatusSuccess, nil)
}

func describe(a models.Action) string {
	switch a.Kind {
	case models.ActionMkdir:
		return "Creating remote directory"
	case models.ActionUpload:
		return "Uploading new file"
	case models.ActionUpdate:
		return "Updating modified file"
	case models.ActionRemoveFile:
		return "Deleting extra remote file"
	case models.ActionRemoveDir:
		return "Deleting extra remote directory"
	default:
		return string(a.Kind)
	}
}
