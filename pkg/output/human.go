package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sdejongh/sftpmirror/pkg/models"
)

// HumanFormatter formats output in human-readable format
type HumanFormatter struct{}

// NewHumanFormatter creates a new human-readable formatter
func NewHumanFormatter() *HumanFormatter {
	return &HumanFormatter{}
}

// Plan prints actions grouped by kind
func (f *HumanFormatter) Plan(w io.Writer, target string, plan *models.Plan) error {
	fmt.Fprintf(w, "Plan for %s: %d action(s), %s to transfer\n",
		target, len(plan.Actions), formatBytes(plan.TotalBytes()))

	byKind := make(map[models.ActionKind][]models.Action)
	for _, a := range plan.Actions {
		byKind[a.Kind] = append(byKind[a.Kind], a)
	}

	for _, g := range planGroups {
		actions := byKind[g.kind]
		if len(actions) == 0 {
			continue
		}

		label := fmt.Sprintf("%s (%d)", g.label, len(actions))
		fmt.Fprintf(w, "\n%s\n", label)
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", len(label)))
		for _, a := range actions {
			if a.IsTransfer() {
				fmt.Fprintf(w, "  %s (%s)\n", a.RelativePath, formatBytes(a.Size))
			} else {
				fmt.Fprintf(w, "  %s\n", a.RelativePath)
			}
		}
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Unchanged files:   %d\n", plan.Unchanged)
	if plan.ExtraRemote > 0 {
		fmt.Fprintf(w, "Remote-only paths: %d (kept, deletion is disabled)\n", plan.ExtraRemote)
	}
	if plan.Empty() {
		fmt.Fprintf(w, "Remote is up to date.\n")
	}

	return nil
}

// Report prints the summary of a pass
func (f *HumanFormatter) Report(w io.Writer, report *models.ReconcileReport) error {
	stats := report.Stats

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Reconcile of %s completed in %s\n", report.Target, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Scanned:\n")
	fmt.Fprintf(w, "    Local:          %d files, %d dirs\n", stats.LocalFiles, stats.LocalDirs)
	fmt.Fprintf(w, "    Remote:         %d files, %d dirs\n", stats.RemoteFiles, stats.RemoteDirs)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Operations:\n")
	fmt.Fprintf(w, "    Dirs created:       %d\n", stats.DirsCreated)
	fmt.Fprintf(w, "    Files uploaded:     %d\n", stats.FilesUploaded)
	fmt.Fprintf(w, "    Files updated:      %d\n", stats.FilesUpdated)
	fmt.Fprintf(w, "    Files unchanged:    %d\n", stats.FilesUnchanged)
	fmt.Fprintf(w, "    Files removed:      %d\n", stats.FilesRemoved)
	fmt.Fprintf(w, "    Dirs removed:       %d\n", stats.DirsRemoved)
	fmt.Fprintf(w, "    Remote-only kept:   %d\n", stats.ExtraRemote)
	fmt.Fprintf(w, "    Failed:             %d\n", stats.ActionsFailed)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Transfer:\n")
	fmt.Fprintf(w, "    Data:           %s\n", formatBytes(stats.BytesTransferred))

	if report.Duration.Seconds() > 0 {
		avgSpeed := float64(stats.BytesTransferred) / report.Duration.Seconds()
		fmt.Fprintf(w, "    Average speed:  %s/s\n", formatBytes(int64(avgSpeed)))
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Status: %s\n", report.Status)

	if len(report.Errors) > 0 {
		fmt.Fprintf(w, "\nErrors:\n")
		for _, e := range report.Errors {
			fmt.Fprintf(w, "  %s: %s\n", e.Action, e.Error)
		}
	}

	return nil
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}

// formatBytes formats bytes in human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats a duration for status listings
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
