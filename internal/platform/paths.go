package platform

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// ExpandPath resolves a leading ~ to the user's home directory
func ExpandPath(p string) (string, error) {
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("failed to expand path %s: %w", p, err)
	}
	return expanded, nil
}

// NormalizeLocal expands ~ and returns a clean absolute local path
func NormalizeLocal(p string) (string, error) {
	if err := ValidatePath(p); err != nil {
		return "", err
	}
	expanded, err := ExpandPath(p)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", p, err)
	}
	return abs, nil
}

// NormalizeRemote cleans a remote path. Remote paths always use forward
// slashes whatever the local platform.
func NormalizeRemote(p string) (string, error) {
	if err := ValidatePath(p); err != nil {
		return "", err
	}
	return path.Clean(strings.ReplaceAll(p, "\\", "/")), nil
}

// ValidatePath rejects paths that cannot name a directory
func ValidatePath(p string) error {
	if strings.TrimSpace(p) == "" {
		return &PathError{Path: p, Message: "path is empty"}
	}
	if strings.ContainsRune(p, 0) {
		return &PathError{Path: p, Message: "path contains a NUL byte"}
	}
	return nil
}

// PathError represents a path validation error
type PathError struct {
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Message
}
