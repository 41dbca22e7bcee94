package storage

import (
	"context"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissiveSession(t *testing.T) {
	src := afero.NewMemMapFs()
	dst := afero.NewMemMapFs()
	require.NoError(t, dst.MkdirAll("/remote", 0755))
	require.NoError(t, afero.WriteFile(src, "/local/f.py", []byte("print()"), 0600))

	session := Permissive(NewLocalSession(dst, src, nil))
	ctx := context.Background()

	require.NoError(t, session.Mkdir(ctx, "/remote/d"))
	_, err := session.Upload(ctx, "/local/f.py", "/remote/d/f.py")
	require.NoError(t, err)

	info, err := dst.Stat("/remote/d")
	require.NoError(t, err)
	assert.Equal(t, PermissiveMode, info.Mode().Perm())

	info, err = dst.Stat("/remote/d/f.py")
	require.NoError(t, err)
	assert.Equal(t, PermissiveMode, info.Mode().Perm())
}

func TestPermissiveSkipsChmodOnFailure(t *testing.T) {
	rec := &chmodRecorder{Session: NewLocalSession(afero.NewMemMapFs(), afero.NewMemMapFs(), nil)}
	session := Permissive(rec)

	assert.Error(t, session.Mkdir(context.Background(), "/no/parent"))
	assert.Empty(t, rec.paths)
}

type chmodRecorder struct {
	Session
	paths []string
}

func (c *chmodRecorder) Chmod(ctx context.Context, path string, mode os.FileMode) error {
	c.paths = append(c.paths, path)
	return c.Session.Chmod(ctx, path, mode)
}
