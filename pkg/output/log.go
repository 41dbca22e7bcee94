package output

import (
	"context"

	"github.com/sdejongh/sftpmirror/pkg/logging"
	"github.com/sdejongh/sftpmirror/pkg/models"
)

// LogReporter logs the progress of long passes. The executor already logs
// every action; this adds periodic "n of m" lines.
type LogReporter struct {
	logger logging.Logger
	every  int

	total int
	done  int
}

// NewLogReporter logs a progress line every `every` actions
func NewLogReporter(logger logging.Logger, every int) *LogReporter {
	if every <= 0 {
		every = 100
	}
	return &LogReporter{logger: logger, every: every}
}

// Start records the size of the plan
func (r *LogReporter) Start(plan *models.Plan) {
	r.total = len(plan.Actions)
	r.done = 0
	if r.total > r.every {
		r.logger.Info(context.Background(), "Reconcile started", logging.Fields{
			"actions": r.total,
			"bytes":   plan.TotalBytes(),
		})
	}
}

// ActionDone logs every n-th action
func (r *LogReporter) ActionDone(action models.Action, err error) {
	r.done++
	if r.done%r.every == 0 && r.done < r.total {
		r.logger.Info(context.Background(), "Reconcile progress", logging.Fields{
			"done":  r.done,
			"total": r.total,
		})
	}
}

// Finish is a no-op; the reconciler logs the summary
func (r *LogReporter) Finish(report *models.ReconcileReport) {}
