// Package orchestrator runs every enabled target side by side.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/sdejongh/sftpmirror/pkg/logging"
	"golang.org/x/sync/errgroup"
)

// Runner is one independently supervised target
type Runner interface {
	Name() string
	Run(ctx context.Context) error
}

// Result is the outcome of one target
type Result struct {
	Target string
	Err    error
}

// Orchestrator owns the running targets. A failing or panicking target
// never affects the others.
type Orchestrator struct {
	runners []Runner
	logger  logging.Logger
}

// New creates an orchestrator over runners
func New(logger logging.Logger, runners ...Runner) *Orchestrator {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Orchestrator{runners: runners, logger: logger}
}

// Targets returns the names of the managed targets
func (o *Orchestrator) Targets() []string {
	names := make([]string, len(o.runners))
	for i, r := range o.runners {
		names[i] = r.Name()
	}
	return names
}

// Run starts every target and blocks until all of them have returned.
// Cancelling ctx stops them cooperatively.
func (o *Orchestrator) Run(ctx context.Context) []Result {
	results := make([]Result, len(o.runners))

	// a plain Group: one target's error must not cancel the others
	var g errgroup.Group
	for i, r := range o.runners {
		g.Go(func() error {
			results[i] = Result{Target: r.Name(), Err: o.runOne(ctx, r)}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) runOne(ctx context.Context, r Runner) (err error) {
	logger := o.logger.WithFields(logging.Fields{logging.TargetField: r.Name()})

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("target %s panicked: %v", r.Name(), p)
			logger.Error(ctx, "Target crashed", err, logging.Fields{"stack": string(debug.Stack())})
		}
	}()

	logger.Info(ctx, "Starting target", nil)
	err = r.Run(ctx)
	if err != nil {
		logger.Error(ctx, "Target stopped", err, nil)
		return err
	}
	logger.Info(ctx, "Target stopped", nil)
	return nil
}

// Failed joins the errors of failed targets, nil when all stopped cleanly
func Failed(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Target, r.Err))
		}
	}
	return errors.Join(errs...)
}
