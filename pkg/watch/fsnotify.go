package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// FSNotifySource is a Source backed by fsnotify.
// fsnotify reports full paths; events are mapped back to the handle of the
// parent directory. Removal of a watched directory is reported once even
// though both the directory and its parent see it.
type FSNotifySource struct {
	watcher *fsnotify.Watcher
	fs      afero.Fs

	mu      sync.Mutex
	next    Handle
	dirs    map[string]Handle
	known   map[string]bool
	removed map[string]bool
}

// NewFSNotifySource creates a source; fs is used to tell directories from
// files on creation (the OS filesystem when nil)
func NewFSNotifySource(fs afero.Fs) (*FSNotifySource, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FSNotifySource{
		watcher: watcher,
		fs:      fs,
		dirs:    make(map[string]Handle),
		known:   make(map[string]bool),
		removed: make(map[string]bool),
	}, nil
}

// Add watches a directory. Adding a directory twice returns the same handle.
func (s *FSNotifySource) Add(path string) (Handle, error) {
	path = filepath.Clean(path)

	s.mu.Lock()
	if h, ok := s.dirs[path]; ok {
		s.mu.Unlock()
		return h, nil
	}
	s.mu.Unlock()

	if err := s.watcher.Add(path); err != nil {
		return 0, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	// children that are never watched themselves (excluded subtrees) must
	// still be reported as directories when they go away
	children, _ := afero.ReadDir(s.fs, path)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.dirs[path] = s.next
	s.known[path] = true
	delete(s.removed, path)
	for _, c := range children {
		if c.IsDir() {
			s.known[filepath.Join(path, c.Name())] = true
		}
	}
	return s.next, nil
}

// Poll waits up to timeout for the first event, then drains whatever else
// is already queued
func (s *FSNotifySource) Poll(ctx context.Context, timeout time.Duration) ([]Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var events []Event

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case ev, ok := <-s.watcher.Events:
		if !ok {
			return nil, ErrClosed
		}
		events = s.appendEvent(events, ev)
	case err, ok := <-s.watcher.Errors:
		if !ok {
			return nil, ErrClosed
		}
		return nil, mapError(err)
	}

	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return events, nil
			}
			events = s.appendEvent(events, ev)
		default:
			return events, nil
		}
	}
}

// Close stops the watcher
func (s *FSNotifySource) Close() error {
	return s.watcher.Close()
}

func (s *FSNotifySource) appendEvent(events []Event, ev fsnotify.Event) []Event {
	name := filepath.Clean(ev.Name)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := Event{Name: filepath.Base(name), Handle: s.dirs[filepath.Dir(name)]}

	switch {
	case ev.Has(fsnotify.Create):
		out.Mask = Create
		delete(s.removed, name)
		if info, err := s.fs.Stat(name); err == nil && info.IsDir() {
			out.IsDir = true
			s.known[name] = true
		}
	case ev.Has(fsnotify.Write):
		out.Mask = Modify
		out.IsDir = s.known[name]
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		out.Mask = Delete
		if ev.Has(fsnotify.Rename) {
			out.Mask = MovedFrom
		}
		if s.removed[name] {
			delete(s.removed, name)
			return events
		}
		if s.known[name] {
			out.IsDir = true
			s.forget(name)
		}
	default:
		return events
	}

	return append(events, out)
}

// forget drops a removed directory and everything watched below it.
// Must be called with the lock held.
func (s *FSNotifySource) forget(dir string) {
	if _, watched := s.dirs[dir]; watched {
		s.removed[dir] = true
	}
	prefix := dir + string(filepath.Separator)
	for p := range s.known {
		if p == dir || strings.HasPrefix(p, prefix) {
			delete(s.known, p)
		}
	}
	for p := range s.dirs {
		if p == dir || strings.HasPrefix(p, prefix) {
			delete(s.dirs, p)
			s.watcher.Remove(p)
		}
	}
}

func mapError(err error) error {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		return fmt.Errorf("%w: %v", ErrOverflow, err)
	}
	return err
}
