package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"github.com/sdejongh/sftpmirror/pkg/ratelimit"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultSSHPort is used when no port is configured
const DefaultSSHPort = 22

// SFTPConfig holds the connection settings of an SFTP session
type SFTPConfig struct {
	Host     string
	Port     int
	User     string
	KeyPath  string
	Password string

	// KnownHosts is a known_hosts file; empty accepts any host key
	KnownHosts string

	// Timeout bounds the TCP connect and SSH handshake
	Timeout time.Duration
}

// Address returns host:port
func (c SFTPConfig) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// SFTPDialer opens SFTP sessions over SSH
type SFTPDialer struct {
	Config SFTPConfig

	// Source is the filesystem upload sources are read from
	Source afero.Fs

	// Limiter throttles uploads, nil for unlimited
	Limiter *ratelimit.Limiter
}

// Dial connects, authenticates and starts the sftp subsystem
func (d *SFTPDialer) Dial(ctx context.Context) (Session, error) {
	source := d.Source
	if source == nil {
		source = afero.NewOsFs()
	}

	clientConfig, err := d.clientConfig(source)
	if err != nil {
		return nil, err
	}

	addr := d.Config.Address()
	dialer := net.Dialer{Timeout: d.Config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &TransportError{Op: "dial", Path: addr, Err: err}
	}

	if d.Config.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(d.Config.Timeout))
	}

	// the ssh handshake does not take a context; closing the connection
	// unblocks it when ctx is cancelled
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, &TransportError{Op: "handshake", Path: addr, Err: err}
	}
	conn.SetDeadline(time.Time{})

	sshClient := ssh.NewClient(sshConn, chans, reqs)
	client, err := sftp.NewClient(sshClient)
	if err == nil && !stop() {
		client.Close()
		err = ctx.Err()
	}
	if err != nil {
		sshClient.Close()
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, &TransportError{Op: "sftp", Path: addr, Err: err}
	}

	return &SFTPSession{
		ssh:     sshClient,
		client:  client,
		source:  source,
		limiter: d.Limiter,
	}, nil
}

func (d *SFTPDialer) clientConfig(source afero.Fs) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if d.Config.KeyPath != "" {
		signer, err := loadSigner(source, d.Config.KeyPath, d.Config.Password)
		if err != nil {
			return nil, err
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if d.Config.Password != "" {
		auth = append(auth, ssh.Password(d.Config.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no ssh authentication method configured for %s", d.Config.Host)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if d.Config.KnownHosts != "" {
		cb, err := knownhosts.New(d.Config.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
		hostKeyCallback = cb
	}

	return &ssh.ClientConfig{
		User:            d.Config.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         d.Config.Timeout,
	}, nil
}

// loadSigner reads a private key, using the password as passphrase when the
// key is encrypted
func loadSigner(source afero.Fs, keyPath, passphrase string) (ssh.Signer, error) {
	pem, err := afero.ReadFile(source, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(pem)
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) && passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(passphrase))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse ssh key %s: %w", keyPath, err)
	}

	return signer, nil
}

// SFTPSession is a Session over an SFTP client
type SFTPSession struct {
	ssh     *ssh.Client
	client  *sftp.Client
	source  afero.Fs
	limiter *ratelimit.Limiter
}

// ReadDir lists one remote directory
func (s *SFTPSession) ReadDir(ctx context.Context, path string) ([]FileInfo, error) {
	infos, err := s.client.ReadDir(path)
	if err != nil {
		return nil, classify("readdir", path, err)
	}

	entries := make([]FileInfo, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, fileInfoFrom(info))
	}
	return entries, nil
}

// Upload copies a local file over the remote path
func (s *SFTPSession) Upload(ctx context.Context, localPath, remotePath string) (int64, error) {
	src, reader, err := openSource(ctx, s.source, localPath, s.limiter)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := s.client.Create(remotePath)
	if err != nil {
		return 0, classify("create", remotePath, err)
	}

	written, err := io.Copy(dst, reader)
	if err != nil {
		dst.Close()
		if reader.err != nil {
			return written, fmt.Errorf("failed to read local file: %w", reader.err)
		}
		return written, classify("write", remotePath, err)
	}

	if err := dst.Close(); err != nil {
		return written, classify("close", remotePath, err)
	}

	return written, nil
}

// Mkdir creates a single remote directory
func (s *SFTPSession) Mkdir(ctx context.Context, path string) error {
	return classify("mkdir", path, s.client.Mkdir(path))
}

// Remove removes a remote file
func (s *SFTPSession) Remove(ctx context.Context, path string) error {
	return classify("remove", path, s.client.Remove(path))
}

// RemoveDirectory removes an empty remote directory
func (s *SFTPSession) RemoveDirectory(ctx context.Context, path string) error {
	return classify("rmdir", path, s.client.RemoveDirectory(path))
}

// Chmod sets remote permissions
func (s *SFTPSession) Chmod(ctx context.Context, path string, mode os.FileMode) error {
	return classify("chmod", path, s.client.Chmod(path, mode))
}

// Close closes the sftp subsystem and the ssh connection
func (s *SFTPSession) Close() error {
	sftpErr := s.client.Close()
	sshErr := s.ssh.Close()
	if sftpErr != nil {
		return sftpErr
	}
	return sshErr
}
