package models

import (
	"time"
)

// ReconcileReport represents the results of one reconciliation pass
type ReconcileReport struct {
	Target string

	// Timing
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Statistics
	Stats Statistics

	// Errors encountered by individual actions
	Errors []ActionError

	// Overall status
	Status Status
}

// Statistics holds reconciliation metrics
type Statistics struct {
	LocalFiles  int
	LocalDirs   int
	RemoteFiles int
	RemoteDirs  int

	DirsCreated    int
	FilesUploaded  int
	FilesUpdated   int
	FilesRemoved   int
	DirsRemoved    int
	FilesUnchanged int

	// ExtraRemote counts remote-only paths kept because deletion is disabled
	ExtraRemote int

	ActionsFailed int

	BytesTransferred int64
}

// Record updates the counters for a completed action
func (s *Statistics) Record(a Action) {
	switch a.Kind {
	case ActionMkdir:
		s.DirsCreated++
	case ActionUpload:
		s.FilesUploaded++
		s.BytesTransferred += a.Size
	case ActionUpdate:
		s.FilesUpdated++
		s.BytesTransferred += a.Size
	case ActionRemoveFile:
		s.FilesRemoved++
	case ActionRemoveDir:
		s.DirsRemoved++
	}
}

// Status represents the overall result
type Status string

const (
	// StatusSuccess indicates all actions completed successfully
	StatusSuccess Status = "success"
	// StatusPartial indicates some actions failed
	StatusPartial Status = "partial"
	// StatusFailed indicates the pass could not complete
	StatusFailed Status = "failed"
	// StatusCancelled indicates the pass was cancelled
	StatusCancelled Status = "cancelled"
)

// ActionError represents an error during a single action
type ActionError struct {
	Action    Action
	Error     string
	Timestamp time.Time
}

// ExitCode returns the appropriate exit code for the status
func (s Status) ExitCode() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusPartial:
		return 1
	case StatusFailed:
		return 2
	case StatusCancelled:
		return 3
	default:
		return 2
	}
}
