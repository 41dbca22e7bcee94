package models

import (
	"sort"
	"time"
)

// Kind distinguishes files from directories
type Kind string

const (
	// KindFile is a regular file
	KindFile Kind = "file"
	// KindDir is a directory
	KindDir Kind = "dir"
)

// Entry represents one path under a sync root, local or remote
type Entry struct {
	// RelativePath is the slash-separated path relative to the root
	RelativePath string

	// Kind is file or directory
	Kind Kind

	// Size in bytes (files only)
	Size int64

	// ModTime is the last modification time (files only)
	ModTime time.Time
}

// IsDir reports whether the entry is a directory
func (e Entry) IsDir() bool {
	return e.Kind == KindDir
}

// Snapshot maps relative paths to entries captured under one root
type Snapshot map[string]Entry

// Add records an entry, replacing any previous entry for the same path
func (s Snapshot) Add(e Entry) {
	s[e.RelativePath] = e
}

// Paths returns the snapshot's keys in ascending order
func (s Snapshot) Paths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Counts returns the number of files and directories in the snapshot
func (s Snapshot) Counts() (files, dirs int) {
	for _, e := range s {
		if e.IsDir() {
			dirs++
		} else {
			files++
		}
	}
	return files, dirs
}
