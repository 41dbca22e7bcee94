package storage

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// silentServer accepts connections and never answers the ssh handshake
func silentServer(t *testing.T) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	t.Cleanup(func() {
		ln.Close()
		<-done
	})

	go func() {
		defer close(done)
		var conns []net.Conn
		defer func() {
			for _, c := range conns {
				c.Close()
			}
		}()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conns = append(conns, conn)
		}
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return host, p
}

func TestSFTPDialerCancelDuringHandshake(t *testing.T) {
	host, port := silentServer(t)
	dialer := &SFTPDialer{
		Config: SFTPConfig{Host: host, Port: port, User: "deploy", Password: "secret", Timeout: time.Minute},
		Source: afero.NewMemMapFs(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := dialer.Dial(ctx)

	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestSFTPDialerNoAuth(t *testing.T) {
	dialer := &SFTPDialer{Config: SFTPConfig{Host: "example.org", User: "deploy"}}
	_, err := dialer.Dial(context.Background())
	assert.ErrorContains(t, err, "no ssh authentication method")
}
