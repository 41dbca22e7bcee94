package platform

import (
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := homedir.Dir()
	require.NoError(t, err)

	got, err := ExpandPath("~/src")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "src"), got)

	got, err = ExpandPath("/srv/www")
	require.NoError(t, err)
	assert.Equal(t, "/srv/www", got)
}

func TestNormalizeLocal(t *testing.T) {
	got, err := NormalizeLocal("/srv/www/../app/")
	require.NoError(t, err)
	assert.Equal(t, "/srv/app", got)

	_, err = NormalizeLocal("  ")
	var perr *PathError
	assert.ErrorAs(t, err, &perr)
}

func TestNormalizeRemote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/srv/web/", "/srv/web"},
		{"srv//web", "srv/web"},
		{"C:\\deploy\\web", "C:/deploy/web"},
		{"/", "/"},
	}
	for _, tt := range tests {
		got, err := NormalizeRemote(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := NormalizeRemote("")
	assert.Error(t, err)
}
