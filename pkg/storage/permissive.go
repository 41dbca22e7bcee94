package storage

import (
	"context"
	"os"
)

// PermissiveMode is applied to every uploaded file and created directory
const PermissiveMode os.FileMode = 0777

type permissiveSession struct {
	Session
}

// Permissive wraps a session so that every upload and mkdir is followed by
// a chmod to PermissiveMode
func Permissive(s Session) Session {
	return &permissiveSession{Session: s}
}

func (p *permissiveSession) Upload(ctx context.Context, localPath, remotePath string) (int64, error) {
	n, err := p.Session.Upload(ctx, localPath, remotePath)
	if err != nil {
		return n, err
	}
	return n, p.Session.Chmod(ctx, remotePath, PermissiveMode)
}

func (p *permissiveSession) Mkdir(ctx context.Context, path string) error {
	if err := p.Session.Mkdir(ctx, path); err != nil {
		return err
	}
	return p.Session.Chmod(ctx, path, PermissiveMode)
}
