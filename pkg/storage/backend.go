package storage

import (
	"context"
	"os"
	"time"
)

// FileInfo represents metadata about one remote directory entry
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
	Mode    os.FileMode
}

// Session defines the remote operations a mirror needs.
// Paths are absolute on the remote side; upload sources are absolute local paths.
// Implementations include SFTP and a local directory.
type Session interface {
	// ReadDir lists one remote directory with attributes
	ReadDir(ctx context.Context, path string) ([]FileInfo, error)

	// Upload copies a local file to the remote path, replacing any existing file,
	// and returns the number of bytes written
	Upload(ctx context.Context, localPath, remotePath string) (int64, error)

	// Mkdir creates a single remote directory
	Mkdir(ctx context.Context, path string) error

	// Remove removes a remote file
	Remove(ctx context.Context, path string) error

	// RemoveDirectory removes an empty remote directory
	RemoveDirectory(ctx context.Context, path string) error

	// Chmod sets permissions on a remote path
	Chmod(ctx context.Context, path string, mode os.FileMode) error

	// Close releases the session
	Close() error
}

// Dialer opens sessions
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// DialerFunc adapts a function to the Dialer interface
type DialerFunc func(ctx context.Context) (Session, error)

// Dial calls f(ctx)
func (f DialerFunc) Dial(ctx context.Context) (Session, error) {
	return f(ctx)
}

func fileInfoFrom(info os.FileInfo) FileInfo {
	return FileInfo{
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
		Mode:    info.Mode(),
	}
}
