package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/sdejongh/sftpmirror/pkg/models"
)

// JSONFormatter formats output as JSON for automation and scripting
type JSONFormatter struct{}

// JSONPlanData is the JSON form of a plan
type JSONPlanData struct {
	Target      string           `json:"target"`
	TotalBytes  int64            `json:"total_bytes"`
	Unchanged   int              `json:"unchanged"`
	ExtraRemote int              `json:"extra_remote"`
	Actions     []JSONActionData `json:"actions"`
}

// JSONActionData represents one planned action
type JSONActionData struct {
	Kind   string `json:"kind"`
	Path   string `json:"path"`
	Size   int64  `json:"size,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// JSONReportData represents the final report data
type JSONReportData struct {
	Target     string          `json:"target"`
	Status     string          `json:"status"`
	Duration   string          `json:"duration"`
	DurationMs int64           `json:"duration_ms"`
	Stats      JSONStatsData   `json:"stats"`
	Errors     []JSONErrorData `json:"errors,omitempty"`
}

// JSONStatsData represents statistics in JSON format
type JSONStatsData struct {
	Scanned    JSONScannedData    `json:"scanned"`
	Operations JSONOperationsData `json:"operations"`
	Transfer   JSONTransferData   `json:"transfer"`
}

// JSONScannedData represents scanned entries
type JSONScannedData struct {
	LocalFiles  int `json:"local_files"`
	LocalDirs   int `json:"local_dirs"`
	RemoteFiles int `json:"remote_files"`
	RemoteDirs  int `json:"remote_dirs"`
}

// JSONOperationsData represents operations statistics
type JSONOperationsData struct {
	DirsCreated    int `json:"dirs_created"`
	FilesUploaded  int `json:"files_uploaded"`
	FilesUpdated   int `json:"files_updated"`
	FilesUnchanged int `json:"files_unchanged"`
	FilesRemoved   int `json:"files_removed"`
	DirsRemoved    int `json:"dirs_removed"`
	ExtraRemote    int `json:"extra_remote"`
	Failed         int `json:"failed"`
}

// JSONTransferData represents transfer statistics
type JSONTransferData struct {
	BytesTransferred int64  `json:"bytes_transferred"`
	AverageSpeed     int64  `json:"average_speed_bytes_per_sec,omitempty"`
	AverageSpeedStr  string `json:"average_speed,omitempty"`
}

// JSONErrorData represents an error entry
type JSONErrorData struct {
	Action    string    `json:"action"`
	Path      string    `json:"path"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Plan writes the plan as one JSON document
func (f *JSONFormatter) Plan(w io.Writer, target string, plan *models.Plan) error {
	data := JSONPlanData{
		Target:      target,
		TotalBytes:  plan.TotalBytes(),
		Unchanged:   plan.Unchanged,
		ExtraRemote: plan.ExtraRemote,
		Actions:     make([]JSONActionData, 0, len(plan.Actions)),
	}
	for _, a := range plan.Actions {
		data.Actions = append(data.Actions, JSONActionData{
			Kind:   string(a.Kind),
			Path:   a.RelativePath,
			Size:   a.Size,
			Reason: a.Reason,
		})
	}
	return encode(w, data)
}

// Report writes the report as one JSON document
func (f *JSONFormatter) Report(w io.Writer, report *models.ReconcileReport) error {
	stats := report.Stats

	// Calculate average speed
	var avgSpeed int64
	var avgSpeedStr string
	if report.Duration.Seconds() > 0 {
		avgSpeed = int64(float64(stats.BytesTransferred) / report.Duration.Seconds())
		avgSpeedStr = formatBytes(avgSpeed) + "/s"
	}

	var errors []JSONErrorData
	for _, e := range report.Errors {
		errors = append(errors, JSONErrorData{
			Action:    string(e.Action.Kind),
			Path:      e.Action.RelativePath,
			Error:     e.Error,
			Timestamp: e.Timestamp,
		})
	}

	return encode(w, JSONReportData{
		Target:     report.Target,
		Status:     string(report.Status),
		Duration:   report.Duration.Round(time.Millisecond).String(),
		DurationMs: report.Duration.Milliseconds(),
		Stats: JSONStatsData{
			Scanned: JSONScannedData{
				LocalFiles:  stats.LocalFiles,
				LocalDirs:   stats.LocalDirs,
				RemoteFiles: stats.RemoteFiles,
				RemoteDirs:  stats.RemoteDirs,
			},
			Operations: JSONOperationsData{
				DirsCreated:    stats.DirsCreated,
				FilesUploaded:  stats.FilesUploaded,
				FilesUpdated:   stats.FilesUpdated,
				FilesUnchanged: stats.FilesUnchanged,
				FilesRemoved:   stats.FilesRemoved,
				DirsRemoved:    stats.DirsRemoved,
				ExtraRemote:    stats.ExtraRemote,
				Failed:         stats.ActionsFailed,
			},
			Transfer: JSONTransferData{
				BytesTransferred: stats.BytesTransferred,
				AverageSpeed:     avgSpeed,
				AverageSpeedStr:  avgSpeedStr,
			},
		},
		Errors: errors,
	})
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}

func encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
