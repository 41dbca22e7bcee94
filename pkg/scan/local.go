// Package scan builds snapshots of the local and remote trees of a target.
package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sdejongh/sftpmirror/pkg/filter"
	"github.com/sdejongh/sftpmirror/pkg/logging"
	"github.com/sdejongh/sftpmirror/pkg/models"
	"github.com/spf13/afero"
)

// LocalScanner walks a local root
type LocalScanner struct {
	fs     afero.Fs
	logger logging.Logger
}

// NewLocalScanner creates a scanner over fs (the OS filesystem when nil)
func NewLocalScanner(fs afero.Fs, logger logging.Logger) *LocalScanner {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &LocalScanner{fs: fs, logger: logger}
}

// Scan returns every included file and directory under root.
// Excluded directories are pruned before descent. Entries that vanish
// during the walk are skipped.
func (s *LocalScanner) Scan(ctx context.Context, root string, rules *filter.RuleSet) (models.Snapshot, error) {
	info, err := s.fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access local root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local root is not a directory: %s", root)
	}

	snapshot := models.Snapshot{}

	err = afero.Walk(s.fs, root, func(p string, info os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if p == root {
				return err
			}
			if os.IsNotExist(err) {
				return nil
			}
			s.logger.Warn(ctx, "Skipping unreadable local path", logging.Fields{"path": p, "error": err.Error()})
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if info.Mode()&os.ModeSymlink != 0 {
			// Links are followed for content but never descended into
			target, statErr := s.fs.Stat(p)
			if statErr != nil {
				return nil
			}
			info = target
			if info.IsDir() {
				if filter.Included(rel, true, rules, false) {
					snapshot.Add(models.Entry{RelativePath: rel, Kind: models.KindDir})
				}
				return nil
			}
		}

		if info.IsDir() {
			if !filter.Included(rel, true, rules, false) {
				return filepath.SkipDir
			}
			snapshot.Add(models.Entry{RelativePath: rel, Kind: models.KindDir})
			return nil
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		if !filter.Included(rel, false, rules, true) {
			return nil
		}

		snapshot.Add(models.Entry{
			RelativePath: rel,
			Kind:         models.KindFile,
			Size:         info.Size(),
			ModTime:      info.ModTime(),
		})
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to scan local tree: %w", err)
	}

	return snapshot, nil
}
