package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/sdejongh/sftpmirror/pkg/ratelimit"
	"github.com/spf13/afero"
)

// sourceReader records the last error of the local side of a copy so that
// a failed local read is not mistaken for a lost session
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}

// openSource opens a local upload source and wraps it with the limiter
func openSource(ctx context.Context, local afero.Fs, localPath string, limiter *ratelimit.Limiter) (afero.File, *sourceReader, error) {
	f, err := local.Open(localPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat local file: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("local path is a directory: %s", localPath)
	}

	return f, &sourceReader{r: ratelimit.NewReader(ctx, f, limiter)}, nil
}
