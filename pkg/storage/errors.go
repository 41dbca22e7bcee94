package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pkg/sftp"
)

// ErrSessionClosed is returned by operations on a closed session
var ErrSessionClosed = errors.New("session closed")

// TransportError reports a failure of the session itself.
// The session must be discarded and a new one dialed.
type TransportError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport %s %s failed: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err means the session is lost
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// classify wraps a remote error. Status replies from the server concern one
// path and leave the session usable; anything else is a transport failure.
func classify(op, path string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, fs.ErrExist):
		return &fs.PathError{Op: op, Path: path, Err: err}
	}

	var status *sftp.StatusError
	if errors.As(err, &status) {
		return &fs.PathError{Op: op, Path: path, Err: err}
	}

	return &TransportError{Op: op, Path: path, Err: err}
}
