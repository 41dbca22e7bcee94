package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sdejongh/sftpmirror/pkg/journal"
	"github.com/sdejongh/sftpmirror/pkg/output"
	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last known state of every target",
		Long: `Print the status journal written by running supervisors: current state,
last connection, last reconciliation and last error of every target.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			j, err := openJournal(cfg)
			if err != nil {
				return err
			}
			statuses, err := j.List()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(statuses)
			}
			printStatuses(out, statuses, time.Now())
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "human", "output format: human, json")

	return cmd
}

func printStatuses(w io.Writer, statuses []journal.TargetStatus, now time.Time) {
	if len(statuses) == 0 {
		fmt.Fprintln(w, "No target has reported yet.")
		return
	}

	for _, s := range statuses {
		fmt.Fprintf(w, "%s: %s", s.Target, s.State)
		if !s.UpdatedAt.IsZero() {
			fmt.Fprintf(w, " (%s ago)", output.FormatDuration(now.Sub(s.UpdatedAt)))
		}
		fmt.Fprintln(w)

		if s.Session != "" {
			fmt.Fprintf(w, "  Session:        %s\n", s.Session)
		}
		if !s.LastConnected.IsZero() {
			fmt.Fprintf(w, "  Last connected: %s (%d connection(s))\n", s.LastConnected.Format(time.RFC3339), s.Connects)
		}
		if r := s.LastReconcile; r != nil {
			fmt.Fprintf(w, "  Last reconcile: %s, %s in %s (%d uploaded, %d updated, %d failed)\n",
				r.At.Format(time.RFC3339), r.Status, r.Duration.Round(time.Millisecond),
				r.Stats.FilesUploaded, r.Stats.FilesUpdated, r.Stats.ActionsFailed)
		}
		if s.LastError != "" {
			fmt.Fprintf(w, "  Last error:     %s (%s)\n", s.LastError, s.LastErrorAt.Format(time.RFC3339))
		}
	}
}
