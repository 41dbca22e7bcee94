package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/sdejongh/sftpmirror/pkg/filter"
	"github.com/sdejongh/sftpmirror/pkg/logging"
	"github.com/sdejongh/sftpmirror/pkg/models"
	"github.com/sdejongh/sftpmirror/pkg/reconcile"
	"github.com/sdejongh/sftpmirror/pkg/storage"
	"github.com/spf13/afero"
)

// Translator maps watch events of one target to remote actions and applies
// them
type Translator struct {
	source   Source
	registry *Registry
	fs       afero.Fs
	roots    reconcile.Roots
	rules    *filter.RuleSet
	logger   logging.Logger
}

// Options configures a Translator
type Options struct {
	Source   Source
	Registry *Registry
	Fs       afero.Fs
	Roots    reconcile.Roots
	Rules    *filter.RuleSet
	Logger   logging.Logger
}

// NewTranslator creates a translator. The registry is created when nil and
// is expected to outlive sessions.
func NewTranslator(opts Options) *Translator {
	t := &Translator{
		source:   opts.Source,
		registry: opts.Registry,
		fs:       opts.Fs,
		roots:    opts.Roots,
		rules:    opts.Rules,
		logger:   opts.Logger,
	}
	if t.registry == nil {
		t.registry = NewRegistry()
	}
	if t.fs == nil {
		t.fs = afero.NewOsFs()
	}
	if t.logger == nil {
		t.logger = logging.NewNullLogger()
	}
	return t
}

// Registry returns the handle registry
func (t *Translator) Registry() *Registry {
	return t.registry
}

// WatchTree registers dir and every included directory below it, parents
// before children. Only a failure to watch dir itself is returned.
func (t *Translator) WatchTree(ctx context.Context, dir string) error {
	dir = filepath.Clean(dir)

	return afero.Walk(t.fs, dir, func(p string, info os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if p == dir {
				return err
			}
			t.logger.Warn(ctx, "Cannot read directory, not watching it", logging.Fields{"path": p, "error": err.Error()})
			return nil
		}
		if !info.IsDir() {
			return nil
		}

		if rel, ok := t.relative(p); ok && rel != "" && !filter.Included(rel, true, t.rules, false) {
			return filepath.SkipDir
		}

		h, err := t.source.Add(p)
		if err != nil {
			if p == dir {
				return err
			}
			t.logger.Warn(ctx, "Failed to watch directory", logging.Fields{"path": p, "error": err.Error()})
			return filepath.SkipDir
		}
		t.registry.Register(h, p)
		t.logger.Debug(ctx, "Watching directory", logging.Fields{"path": p})
		return nil
	})
}

// Translate turns an event into an action; false means the event is ignored
func (t *Translator) Translate(ev Event) (models.Action, bool) {
	dir, ok := t.registry.Lookup(ev.Handle)
	if !ok || ev.Name == "" {
		return models.Action{}, false
	}

	abs := filepath.Join(dir, ev.Name)
	rel, ok := t.relative(abs)
	if !ok || rel == "" {
		return models.Action{}, false
	}
	if !filter.Included(rel, ev.IsDir, t.rules, !ev.IsDir) {
		return models.Action{}, false
	}

	action := models.Action{RelativePath: rel, LocalPath: abs, Reason: ev.Mask.String()}

	switch {
	case ev.Mask.Has(Create | MovedTo):
		if ev.IsDir {
			action.Kind = models.ActionMkdir
		} else {
			action.Kind = models.ActionUpload
		}
	case ev.Mask.Has(Modify):
		if ev.IsDir {
			return models.Action{}, false
		}
		action.Kind = models.ActionUpdate
	case ev.Mask.Has(Delete | MovedFrom):
		if ev.IsDir {
			action.Kind = models.ActionRemoveDir
		} else {
			action.Kind = models.ActionRemoveFile
		}
	default:
		return models.Action{}, false
	}

	return action, true
}

// Handle translates and applies one event.
// Only transport errors are returned; anything else is logged.
func (t *Translator) Handle(ctx context.Context, session storage.Session, ev Event) error {
	action, ok := t.Translate(ev)
	if !ok {
		return nil
	}

	fields := logging.Fields{"action": string(action.Kind), "path": t.roots.RemotePath(action.RelativePath)}
	t.logger.Info(ctx, "Event: "+action.String(), fields)

	err := reconcile.Apply(ctx, session, t.roots, action)

	// A new directory is watched whatever the remote outcome, so later
	// events below it are not lost.
	if action.Kind == models.ActionMkdir {
		if werr := t.WatchTree(ctx, action.LocalPath); werr != nil {
			t.logger.Warn(ctx, "Failed to watch new directory", logging.Fields{"path": action.LocalPath, "error": werr.Error()})
		}
	}

	if err == nil {
		return nil
	}
	if storage.IsTransportError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	t.logger.Error(ctx, "Failed to apply event", err, fields)
	return nil
}

// HandleBatch applies events in order and stops at the first transport
// error. It returns the events not yet applied, starting with the one that
// failed, so that they can be retried on the next session.
func (t *Translator) HandleBatch(ctx context.Context, session storage.Session, events []Event) ([]Event, error) {
	for i, ev := range events {
		if err := t.Handle(ctx, session, ev); err != nil {
			return events[i:], err
		}
	}
	return nil, nil
}

func (t *Translator) relative(abs string) (string, bool) {
	rel, err := filepath.Rel(t.roots.Local, abs)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return filepath.ToSlash(rel), true
}
