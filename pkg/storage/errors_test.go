package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transport bool
	}{
		{"not exist", fs.ErrNotExist, false},
		{"permission", fs.ErrPermission, false},
		{"status", &sftp.StatusError{Code: 4}, false},
		{"eof", io.EOF, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"connection lost", errors.New("connection lost"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("mkdir", "/x", tt.err)
			assert.Equal(t, tt.transport, IsTransportError(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestClassifyPassesThrough(t *testing.T) {
	assert.NoError(t, classify("mkdir", "/x", nil))
	assert.Equal(t, context.Canceled, classify("mkdir", "/x", context.Canceled))
}

func TestTransportErrorMessage(t *testing.T) {
	err := &TransportError{Op: "dial", Path: "host:22", Err: errors.New("refused")}
	assert.Equal(t, "transport dial host:22 failed: refused", err.Error())

	err = &TransportError{Op: "dial", Err: errors.New("refused")}
	assert.Equal(t, "transport dial failed: refused", err.Error())
}

func TestSFTPConfigAddress(t *testing.T) {
	assert.Equal(t, "example.org:22", SFTPConfig{Host: "example.org"}.Address())
	assert.Equal(t, "example.org:2222", SFTPConfig{Host: "example.org", Port: 2222}.Address())
}
