package output

import (
	"io"
	"os"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/sdejongh/sftpmirror/pkg/models"
)

// progressTemplate shows the action counter, the bar and the current path
const progressTemplate = `{{counters . }} {{bar . "[" "=" ">" " " "]"}} {{percent . }} {{string . "action"}}`

// ProgressReporter draws a progress bar while a plan runs
type ProgressReporter struct {
	writer io.Writer
	static bool

	mu     sync.Mutex
	bar    *pb.ProgressBar
	failed int
}

// NewProgressReporter creates a progress bar reporter writing to w
// (stderr when nil). A non-interactive writer gets no redraw loop; the bar
// is printed once when the pass finishes.
func NewProgressReporter(w io.Writer, interactive bool) *ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &ProgressReporter{writer: w, static: !interactive}
}

// Start creates the bar for the plan
func (p *ProgressReporter) Start(plan *models.Plan) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failed = 0
	p.bar = pb.ProgressBarTemplate(progressTemplate).New(len(plan.Actions))
	p.bar.SetWriter(p.writer)
	p.bar.SetMaxWidth(120)
	p.bar.Set(pb.Static, p.static)
	p.bar.Set("action", "")
	p.bar.Start()
}

// ActionDone advances the bar
func (p *ProgressReporter) ActionDone(action models.Action, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		return
	}
	if err != nil {
		p.failed++
	}
	p.bar.Set("action", action.String())
	p.bar.Increment()
}

// Finish stops the bar
func (p *ProgressReporter) Finish(report *models.ReconcileReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		return
	}
	p.bar.Set("action", string(report.Status))
	if p.static {
		p.bar.Write()
	}
	p.bar.Finish()
}

// Done returns the number of actions reported so far
func (p *ProgressReporter) Done() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return 0
	}
	return p.bar.Current()
}

// Failed returns the number of failed actions reported so far
func (p *ProgressReporter) Failed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}
