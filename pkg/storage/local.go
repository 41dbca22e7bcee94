package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/sdejongh/sftpmirror/pkg/ratelimit"
	"github.com/spf13/afero"
)

// LocalDialer opens sessions onto a filesystem reachable without a network,
// such as a mounted share
type LocalDialer struct {
	// Fs is the destination filesystem
	Fs afero.Fs

	// Source is the filesystem upload sources are read from
	Source afero.Fs

	// Limiter throttles uploads, nil for unlimited
	Limiter *ratelimit.Limiter
}

// Dial returns a new local session
func (d *LocalDialer) Dial(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewLocalSession(d.Fs, d.Source, d.Limiter), nil
}

// LocalSession is a filesystem-based session
type LocalSession struct {
	fs      afero.Fs
	source  afero.Fs
	limiter *ratelimit.Limiter

	mu     sync.Mutex
	closed bool
}

// NewLocalSession creates a session writing to dst and reading uploads from src
func NewLocalSession(dst, src afero.Fs, limiter *ratelimit.Limiter) *LocalSession {
	if dst == nil {
		dst = afero.NewOsFs()
	}
	if src == nil {
		src = afero.NewOsFs()
	}
	return &LocalSession{fs: dst, source: src, limiter: limiter}
}

func (l *LocalSession) check(op, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return &TransportError{Op: op, Path: path, Err: ErrSessionClosed}
	}
	return nil
}

// ReadDir lists one directory
func (l *LocalSession) ReadDir(ctx context.Context, path string) ([]FileInfo, error) {
	if err := l.check("readdir", path); err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(l.fs, path)
	if err != nil {
		return nil, err
	}

	entries := make([]FileInfo, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, fileInfoFrom(info))
	}
	return entries, nil
}

// Upload copies a local file over the destination path
func (l *LocalSession) Upload(ctx context.Context, localPath, remotePath string) (int64, error) {
	if err := l.check("upload", remotePath); err != nil {
		return 0, err
	}

	src, reader, err := openSource(ctx, l.source, localPath, l.limiter)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := l.fs.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(dst, reader)
	if err != nil {
		dst.Close()
		return written, fmt.Errorf("failed to write file: %w", err)
	}

	if err := dst.Close(); err != nil {
		return written, fmt.Errorf("failed to close file: %w", err)
	}

	return written, nil
}

// Mkdir creates a single directory
func (l *LocalSession) Mkdir(ctx context.Context, path string) error {
	if err := l.check("mkdir", path); err != nil {
		return err
	}

	// Some filesystems create missing parents implicitly
	if _, err := l.fs.Stat(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return l.fs.Mkdir(path, 0755)
}

// Remove removes a file
func (l *LocalSession) Remove(ctx context.Context, path string) error {
	if err := l.check("remove", path); err != nil {
		return err
	}

	info, err := l.fs.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return &fs.PathError{Op: "remove", Path: path, Err: syscall.EISDIR}
	}
	return l.fs.Remove(path)
}

// RemoveDirectory removes an empty directory
func (l *LocalSession) RemoveDirectory(ctx context.Context, path string) error {
	if err := l.check("rmdir", path); err != nil {
		return err
	}

	info, err := l.fs.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &fs.PathError{Op: "rmdir", Path: path, Err: syscall.ENOTDIR}
	}

	children, err := afero.ReadDir(l.fs, path)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return &fs.PathError{Op: "rmdir", Path: path, Err: syscall.ENOTEMPTY}
	}
	return l.fs.Remove(path)
}

// Chmod sets permissions
func (l *LocalSession) Chmod(ctx context.Context, path string, mode os.FileMode) error {
	if err := l.check("chmod", path); err != nil {
		return err
	}
	return l.fs.Chmod(path, mode)
}

// Close marks the session closed; later operations report a transport error
func (l *LocalSession) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
