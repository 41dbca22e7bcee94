// Package watch turns local filesystem notifications into remote actions.
package watch

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Handle identifies one watched directory
type Handle int

// Mask is a set of event flags
type Mask uint32

const (
	// Create means a child was created
	Create Mask = 1 << iota
	// Modify means a child file was written
	Modify
	// Delete means a child was removed
	Delete
	// MovedTo means a child was renamed into the directory
	MovedTo
	// MovedFrom means a child was renamed out of the directory
	MovedFrom
)

// Has reports whether any flag of other is set
func (m Mask) Has(other Mask) bool {
	return m&other != 0
}

func (m Mask) String() string {
	var names []string
	for _, f := range []struct {
		flag Mask
		name string
	}{
		{Create, "CREATE"}, {Modify, "MODIFY"}, {Delete, "DELETE"},
		{MovedTo, "MOVED_TO"}, {MovedFrom, "MOVED_FROM"},
	} {
		if m.Has(f.flag) {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

// Event is a change to a child of a watched directory.
// An empty Name refers to the watched directory itself.
type Event struct {
	Handle Handle
	Name   string
	Mask   Mask
	IsDir  bool
}

var (
	// ErrClosed is returned by a source after Close
	ErrClosed = errors.New("event source closed")

	// ErrOverflow means events were dropped and the mirror may be stale
	ErrOverflow = errors.New("event queue overflow")
)

// Source delivers filesystem events for registered directories
type Source interface {
	// Add starts watching a directory and returns its handle
	Add(path string) (Handle, error)

	// Poll waits up to timeout for events and returns those available
	Poll(ctx context.Context, timeout time.Duration) ([]Event, error)

	// Close stops the source
	Close() error
}
