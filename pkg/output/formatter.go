// Package output renders reconciliation plans and reports for operators.
package output

import (
	"fmt"
	"io"

	"github.com/sdejongh/sftpmirror/pkg/models"
)

// Formatter defines the interface for output formatting
// Implementations include human-readable and JSON formatters
type Formatter interface {
	// Plan prints the actions a pass would perform
	Plan(w io.Writer, target string, plan *models.Plan) error

	// Report prints the summary of a finished pass
	Report(w io.Writer, report *models.ReconcileReport) error

	// Name returns the formatter name
	Name() string
}

// NewFormatter returns the formatter registered under name
func NewFormatter(name string) (Formatter, error) {
	switch name {
	case "", "human":
		return NewHumanFormatter(), nil
	case "json":
		return NewJSONFormatter(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want human or json)", name)
	}
}

// planGroups lists action kinds in display order
var planGroups = []struct {
	kind  models.ActionKind
	label string
}{
	{models.ActionMkdir, "Directories to create"},
	{models.ActionUpload, "Files to upload"},
	{models.ActionUpdate, "Files to update"},
	{models.ActionRemoveFile, "Files to remove"},
	{models.ActionRemoveDir, "Directories to remove"},
}
