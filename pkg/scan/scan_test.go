package scan

import (
	"context"
	"errors"
	"os"
	"path"
	"testing"
	"time"

	"github.com/sdejongh/sftpmirror/pkg/filter"
	"github.com/sdejongh/sftpmirror/pkg/models"
	"github.com/sdejongh/sftpmirror/pkg/storage"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, fs afero.Fs, root string, files map[string]string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(root, 0755))
	for p, content := range files {
		full := root + "/" + p
		if content == "/" {
			require.NoError(t, fs.MkdirAll(full, 0755))
			continue
		}
		require.NoError(t, fs.MkdirAll(path.Dir(full), 0755))
		require.NoError(t, afero.WriteFile(fs, full, []byte(content), 0644))
	}
}

func TestLocalScan(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs, "/src", map[string]string{
		"a/x.py":                "print(1)",
		"a/notes.txt":           "hello",
		"empty":                 "/",
		"node_modules/lib/i.js": "x",
		"web/node_modules/m.js": "x",
		"debug.log":             "log",
		"web/index.html":        "<html>",
	})
	mtime := time.Unix(1700000000, 0)
	require.NoError(t, fs.Chtimes("/src/a/x.py", mtime, mtime))

	rules := filter.MustCompile([]string{"*.log", "node_modules/"}, false)
	snap, err := NewLocalScanner(fs, nil).Scan(context.Background(), "/src", rules)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "a/notes.txt", "a/x.py", "empty", "web", "web/index.html"}, snap.Paths())
	assert.Equal(t, models.KindDir, snap["a"].Kind)
	assert.Equal(t, int64(8), snap["a/x.py"].Size)
	assert.True(t, snap["a/x.py"].ModTime.Equal(mtime))
}

func TestLocalScanSourceCodeOnly(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs, "/src", map[string]string{
		"docs/readme.txt": "x",
		"docs/guide.md":   "x",
		"main.py":         "x",
	})

	snap, err := NewLocalScanner(fs, nil).Scan(context.Background(), "/src", filter.MustCompile(nil, true))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"docs", "docs/guide.md", "main.py"}, snap.Paths())
}

func TestLocalScanMissingRoot(t *testing.T) {
	_, err := NewLocalScanner(afero.NewMemMapFs(), nil).Scan(context.Background(), "/nope", nil)
	assert.Error(t, err)
}

func TestLocalScanSkipsVanishedFiles(t *testing.T) {
	base := afero.NewMemMapFs()
	writeTree(t, base, "/src", map[string]string{"keep.py": "x", "gone.py": "x"})

	fs := &vanishingFs{Fs: base, gone: map[string]bool{"/src/gone.py": true}}
	snap, err := NewLocalScanner(fs, nil).Scan(context.Background(), "/src", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"keep.py"}, snap.Paths())
}

func TestLocalScanCancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs, "/src", map[string]string{"a.py": "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocalScanner(fs, nil).Scan(ctx, "/src", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

// vanishingFs reports selected paths as missing on stat while still listing them
type vanishingFs struct {
	afero.Fs
	gone map[string]bool
}

func (v *vanishingFs) Stat(name string) (os.FileInfo, error) {
	if v.gone[name] {
		return nil, &os.PathError{Op: "stat", Path: name, Err: os.ErrNotExist}
	}
	return v.Fs.Stat(name)
}

func TestRemoteScan(t *testing.T) {
	dst := afero.NewMemMapFs()
	writeTree(t, dst, "/srv/web", map[string]string{
		"a/x.py":     "print(1)",
		"a/b/c.go":   "package c",
		"old.log":    "x",
		".git/HEAD":  "ref",
		"stale/file": "x",
	})

	session := storage.NewLocalSession(dst, afero.NewMemMapFs(), nil)
	rules := filter.MustCompile([]string{"*.log", ".git/"}, false)

	snap, err := NewRemoteScanner(nil).Scan(context.Background(), session, "/srv/web", rules)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "a/b", "a/b/c.go", "a/x.py", "stale", "stale/file"}, snap.Paths())
	assert.Equal(t, int64(8), snap["a/x.py"].Size)
	assert.True(t, snap["a/b"].IsDir())
}

func TestRemoteScanMissingRoot(t *testing.T) {
	session := storage.NewLocalSession(afero.NewMemMapFs(), afero.NewMemMapFs(), nil)

	snap, err := NewRemoteScanner(nil).Scan(context.Background(), session, "/srv/none", nil)
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestRemoteScanSkipsVanishedDirectory(t *testing.T) {
	dst := afero.NewMemMapFs()
	writeTree(t, dst, "/r", map[string]string{"keep/a.py": "x", "gone/b.py": "x"})

	session := &failingSession{
		Session: storage.NewLocalSession(dst, afero.NewMemMapFs(), nil),
		fail:    map[string]error{"/r/gone": &os.PathError{Op: "readdir", Path: "/r/gone", Err: os.ErrNotExist}},
	}

	snap, err := NewRemoteScanner(nil).Scan(context.Background(), session, "/r", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"gone", "keep", "keep/a.py"}, snap.Paths())
}

func TestRemoteScanAbortsOnTransportError(t *testing.T) {
	dst := afero.NewMemMapFs()
	writeTree(t, dst, "/r", map[string]string{"sub/a.py": "x"})

	lost := &storage.TransportError{Op: "readdir", Path: "/r/sub", Err: errors.New("connection lost")}
	session := &failingSession{
		Session: storage.NewLocalSession(dst, afero.NewMemMapFs(), nil),
		fail:    map[string]error{"/r/sub": lost},
	}

	_, err := NewRemoteScanner(nil).Scan(context.Background(), session, "/r", nil)
	require.Error(t, err)
	assert.True(t, storage.IsTransportError(err))
}

type failingSession struct {
	storage.Session
	fail map[string]error
}

func (f *failingSession) ReadDir(ctx context.Context, path string) ([]storage.FileInfo, error) {
	if err, ok := f.fail[path]; ok {
		return nil, err
	}
	return f.Session.ReadDir(ctx, path)
}
