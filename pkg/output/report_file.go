package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sdejongh/sftpmirror/pkg/models"
)

// WriteReportFile writes the report to a file
// Format can be "human" or "json"
func WriteReportFile(report *models.ReconcileReport, path string, format string) error {
	f, err := NewFormatter(format)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	if err := f.Report(file, report); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}
