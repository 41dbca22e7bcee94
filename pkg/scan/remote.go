package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/sdejongh/sftpmirror/pkg/filter"
	"github.com/sdejongh/sftpmirror/pkg/logging"
	"github.com/sdejongh/sftpmirror/pkg/models"
	"github.com/sdejongh/sftpmirror/pkg/storage"
)

// RemoteScanner walks a remote root through a session
type RemoteScanner struct {
	logger logging.Logger
}

// NewRemoteScanner creates a remote scanner
func NewRemoteScanner(logger logging.Logger) *RemoteScanner {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &RemoteScanner{logger: logger}
}

// Scan lists the remote tree with an explicit stack of pending directories.
// A directory that disappears between listing and visiting is logged and
// skipped. Transport errors abort the scan.
func (s *RemoteScanner) Scan(ctx context.Context, session storage.Session, root string, rules *filter.RuleSet) (models.Snapshot, error) {
	snapshot := models.Snapshot{}
	stack := []string{""}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		dir := path.Join(root, current)
		entries, err := session.ReadDir(ctx, dir)
		if err != nil {
			if storage.IsTransportError(err) || ctx.Err() != nil {
				return nil, fmt.Errorf("failed to list remote directory %s: %w", dir, err)
			}
			if errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn(ctx, "Remote path not found during scan", logging.Fields{"path": dir})
			} else {
				s.logger.Warn(ctx, "Skipping unreadable remote directory", logging.Fields{"path": dir, "error": err.Error()})
			}
			continue
		}

		for _, e := range entries {
			if e.Name == "." || e.Name == ".." {
				continue
			}

			rel := path.Join(current, e.Name)
			if !filter.Included(rel, e.IsDir, rules, !e.IsDir) {
				continue
			}

			if e.IsDir {
				snapshot.Add(models.Entry{RelativePath: rel, Kind: models.KindDir})
				stack = append(stack, rel)
				continue
			}

			snapshot.Add(models.Entry{
				RelativePath: rel,
				Kind:         models.KindFile,
				Size:         e.Size,
				ModTime:      e.ModTime,
			})
		}
	}

	return snapshot, nil
}
