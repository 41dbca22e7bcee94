package models

import "fmt"

// ActionKind is the remote mutation an action performs
type ActionKind string

const (
	// ActionMkdir creates a remote directory
	ActionMkdir ActionKind = "mkdir"
	// ActionUpload uploads a file that is absent remotely
	ActionUpload ActionKind = "upload"
	// ActionUpdate re-uploads a file whose remote copy is stale
	ActionUpdate ActionKind = "update"
	// ActionRemoveFile removes a remote file
	ActionRemoveFile ActionKind = "remove-file"
	// ActionRemoveDir removes a remote directory
	ActionRemoveDir ActionKind = "remove-dir"
)

// Action is a single remote mutation derived from reconciliation or a live event
type Action struct {
	Kind ActionKind

	// RelativePath is relative to both roots
	RelativePath string

	// LocalPath is the absolute local source of an upload
	LocalPath string

	// Size is the expected number of bytes for uploads
	Size int64

	// Reason explains why the action was planned
	Reason string
}

// IsTransfer reports whether the action moves file content
func (a Action) IsTransfer() bool {
	return a.Kind == ActionUpload || a.Kind == ActionUpdate
}

func (a Action) String() string {
	return fmt.Sprintf("%s %s", a.Kind, a.RelativePath)
}

// Plan is the ordered result of diffing a local and a remote snapshot
type Plan struct {
	// Actions in execution order
	Actions []Action

	// ExtraRemote counts remote-only paths left in place because deletion
	// is disabled
	ExtraRemote int

	// Unchanged counts files present on both sides that need no transfer
	Unchanged int
}

// Empty reports whether the plan performs no mutation
func (p *Plan) Empty() bool {
	return len(p.Actions) == 0
}

// TotalBytes is the sum of bytes the plan uploads
func (p *Plan) TotalBytes() int64 {
	var total int64
	for _, a := range p.Actions {
		if a.IsTransfer() {
			total += a.Size
		}
	}
	return total
}
