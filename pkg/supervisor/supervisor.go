// Package supervisor keeps one target mirrored: it connects, reconciles,
// watches and reconnects after transport failures.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sdejongh/sftpmirror/pkg/filter"
	"github.com/sdejongh/sftpmirror/pkg/logging"
	"github.com/sdejongh/sftpmirror/pkg/models"
	"github.com/sdejongh/sftpmirror/pkg/reconcile"
	"github.com/sdejongh/sftpmirror/pkg/scan"
	"github.com/sdejongh/sftpmirror/pkg/storage"
	"github.com/sdejongh/sftpmirror/pkg/watch"
	"github.com/spf13/afero"
)

const (
	// DefaultRetryInterval is the wait between connection attempts
	DefaultRetryInterval = 30 * time.Second

	// DefaultConnectTimeout bounds a single connection attempt
	DefaultConnectTimeout = 15 * time.Second

	// DefaultPollInterval is how long one poll of the event source waits
	DefaultPollInterval = time.Second
)

// ErrLocalRootMissing stops a target whose local directory does not exist
var ErrLocalRootMissing = errors.New("local root does not exist")

// StateRecorder persists what a supervisor is doing; implemented by
// journal.Journal
type StateRecorder interface {
	RecordState(target string, state models.TargetState, session string) error
	RecordError(target string, err error) error
	RecordReconcile(target string, report *models.ReconcileReport) error
}

// Config describes one target as the supervisor sees it
type Config struct {
	Name            string
	Roots           reconcile.Roots
	Rules           *filter.RuleSet
	InitialSync     bool
	DeletionAllowed bool
	Permissive      bool

	RetryInterval  time.Duration
	ConnectTimeout time.Duration
	PollInterval   time.Duration
}

// Supervisor drives the connection state machine of one target.
// Reconciliation and event handling never overlap; both run on the
// supervisor's goroutine.
type Supervisor struct {
	config   Config
	dialer   storage.Dialer
	source   watch.Source
	registry *watch.Registry
	fs       afero.Fs
	clock    clockwork.Clock
	logger   logging.Logger
	journal  StateRecorder
	reporter reconcile.Reporter

	// pending holds events left unapplied when a session was lost
	pending []watch.Event

	mu      sync.RWMutex
	state   models.TargetState
	session string
}

// Option customizes a Supervisor
type Option func(*Supervisor)

// WithClock sets the clock used for retry waits
func WithClock(clock clockwork.Clock) Option {
	return func(s *Supervisor) { s.clock = clock }
}

// WithFs sets the local filesystem
func WithFs(fs afero.Fs) Option {
	return func(s *Supervisor) { s.fs = fs }
}

// WithLogger sets the logger; the target name is added to every line
func WithLogger(logger logging.Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// WithJournal records state transitions
func WithJournal(j StateRecorder) Option {
	return func(s *Supervisor) { s.journal = j }
}

// WithReporter receives reconciliation progress
func WithReporter(r reconcile.Reporter) Option {
	return func(s *Supervisor) { s.reporter = r }
}

// New creates a supervisor. It owns source and closes it when Run returns.
func New(config Config, dialer storage.Dialer, source watch.Source, opts ...Option) *Supervisor {
	if config.RetryInterval <= 0 {
		config.RetryInterval = DefaultRetryInterval
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}

	s := &Supervisor{
		config:   config,
		dialer:   dialer,
		source:   source,
		registry: watch.NewRegistry(),
		fs:       afero.NewOsFs(),
		clock:    clockwork.NewRealClock(),
		logger:   logging.NewNullLogger(),
		state:    models.StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithFields(logging.Fields{logging.TargetField: config.Name})
	return s
}

// Name returns the target name
func (s *Supervisor) Name() string {
	return s.config.Name
}

// State returns the current state
func (s *Supervisor) State() models.TargetState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Registry returns the watch registry, which survives reconnects
func (s *Supervisor) Registry() *watch.Registry {
	return s.registry
}

// Run mirrors the target until ctx is cancelled.
// Cancellation is a clean stop and returns nil; errors are fatal for this
// target only.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.source.Close()
	defer s.setState(models.StateStopped, "")

	if err := s.checkLocalRoot(); err != nil {
		s.logger.Error(ctx, "Local path does not exist", err, logging.Fields{"path": s.config.Roots.Local})
		s.recordError(err)
		return err
	}

	if err := s.translator(s.logger).WatchTree(ctx, s.config.Roots.Local); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		err = fmt.Errorf("failed to watch local root: %w", err)
		s.recordError(err)
		return err
	}
	s.logger.Info(ctx, "Watching local tree", logging.Fields{"path": s.config.Roots.Local, "directories": s.registry.Len()})

	for {
		if ctx.Err() != nil {
			return nil
		}

		session, id, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.setState(models.StateDisconnected, "")
			s.recordError(err)
			s.logger.Error(ctx, fmt.Sprintf("Connection failed, retrying in %s", s.config.RetryInterval), err, nil)
			if !s.wait(ctx, s.config.RetryInterval) {
				return nil
			}
			continue
		}

		logger := s.logger.WithFields(logging.Fields{"session": id})
		err = s.serve(ctx, session, id, logger)
		if cerr := session.Close(); cerr != nil {
			logger.Debug(ctx, "Failed to close session", logging.Fields{"error": cerr.Error()})
		}
		s.setState(models.StateDisconnected, "")

		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrLocalRootMissing) || errors.Is(err, watch.ErrClosed) {
			logger.Error(ctx, "Stopping target", err, nil)
			s.recordError(err)
			return err
		}

		s.recordError(err)
		logger.Error(ctx, fmt.Sprintf("Connection lost, reconnecting in %s", s.config.RetryInterval), err, nil)
		if !s.wait(ctx, s.config.RetryInterval) {
			return nil
		}
	}
}

func (s *Supervisor) connect(ctx context.Context) (storage.Session, string, error) {
	s.setState(models.StateConnecting, "")
	s.logger.Info(ctx, "Connecting", nil)

	dialCtx, cancel := context.WithTimeout(ctx, s.config.ConnectTimeout)
	defer cancel()

	session, err := s.dialer.Dial(dialCtx)
	if err != nil {
		return nil, "", err
	}
	if s.config.Permissive {
		session = storage.Permissive(session)
	}

	id := uuid.NewString()
	s.logger.Info(ctx, "Connected", logging.Fields{"session": id})
	return session, id, nil
}

// serve runs one session until it fails or ctx is done
func (s *Supervisor) serve(ctx context.Context, session storage.Session, id string, logger logging.Logger) error {
	if s.config.InitialSync {
		if err := s.reconcile(ctx, session, id, logger); err != nil {
			return err
		}
	}

	s.setState(models.StateWatching, id)
	logger.Info(ctx, "Watching for changes", nil)

	tr := s.translator(logger)
	if len(s.pending) > 0 {
		logger.Info(ctx, "Replaying events from the previous session", logging.Fields{"events": len(s.pending)})
		if err := s.handle(ctx, tr, session); err != nil {
			return err
		}
	}
	for {
		events, err := s.source.Poll(ctx, s.config.PollInterval)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, watch.ErrClosed):
				return err
			case errors.Is(err, watch.ErrOverflow):
				logger.Warn(ctx, "Events were dropped", logging.Fields{"error": err.Error()})
				if s.config.InitialSync {
					if err := s.reconcile(ctx, session, id, logger); err != nil {
						return err
					}
					s.setState(models.StateWatching, id)
				}
			default:
				logger.Error(ctx, "Failed to read events", err, nil)
				if !s.wait(ctx, s.config.PollInterval) {
					return ctx.Err()
				}
			}
			continue
		}

		s.pending = append(s.pending, events...)
		if err := s.handle(ctx, tr, session); err != nil {
			return err
		}
	}
}

// handle applies the pending events; whatever a transport failure leaves
// unapplied stays pending for the next session
func (s *Supervisor) handle(ctx context.Context, tr *watch.Translator, session storage.Session) error {
	rest, err := tr.HandleBatch(ctx, session, s.pending)
	s.pending = rest
	return err
}

// reconcile runs a full pass. Per-action failures are already logged by
// the executor; only a lost session, cancellation or a vanished local root
// is returned.
func (s *Supervisor) reconcile(ctx context.Context, session storage.Session, id string, logger logging.Logger) error {
	s.setState(models.StateReconciling, id)

	r := &reconcile.Reconciler{
		Name:            s.config.Name,
		Roots:           s.config.Roots,
		Rules:           s.config.Rules,
		DeletionAllowed: s.config.DeletionAllowed,
		Local:           scan.NewLocalScanner(s.fs, logger),
		Remote:          scan.NewRemoteScanner(logger),
		Logger:          logger,
		Reporter:        s.reporter,
	}

	report, err := r.Run(ctx, session)
	if report != nil && report.Status != models.StatusCancelled {
		if jerr := s.record(func(j StateRecorder) error { return j.RecordReconcile(s.config.Name, report) }); jerr != nil {
			logger.Warn(ctx, "Failed to record reconcile report", logging.Fields{"error": jerr.Error()})
		}
	}
	if err == nil {
		s.pending = nil
		return nil
	}
	if ctx.Err() != nil || storage.IsTransportError(err) {
		return err
	}
	if rootErr := s.checkLocalRoot(); rootErr != nil {
		return rootErr
	}

	logger.Error(ctx, "Initial sync failed, watching anyway", err, nil)
	s.recordError(err)
	return nil
}

func (s *Supervisor) translator(logger logging.Logger) *watch.Translator {
	return watch.NewTranslator(watch.Options{
		Source:   s.source,
		Registry: s.registry,
		Fs:       s.fs,
		Roots:    s.config.Roots,
		Rules:    s.config.Rules,
		Logger:   logger,
	})
}

func (s *Supervisor) checkLocalRoot() error {
	info, err := s.fs.Stat(s.config.Roots.Local)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrLocalRootMissing, s.config.Roots.Local)
	}
	return nil
}

// wait sleeps on the supervisor clock; false means ctx ended first
func (s *Supervisor) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(d):
		return true
	}
}

// Session returns the id of the current session, empty when disconnected
func (s *Supervisor) Session() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *Supervisor) setState(state models.TargetState, session string) {
	s.mu.Lock()
	s.state = state
	s.session = session
	s.mu.Unlock()

	if err := s.record(func(j StateRecorder) error { return j.RecordState(s.config.Name, state, session) }); err != nil {
		s.logger.Warn(context.Background(), "Failed to record state", logging.Fields{"state": string(state), "error": err.Error()})
	}
}

func (s *Supervisor) recordError(err error) {
	if err == nil {
		return
	}
	if jerr := s.record(func(j StateRecorder) error { return j.RecordError(s.config.Name, err) }); jerr != nil {
		s.logger.Warn(context.Background(), "Failed to record error", logging.Fields{"error": jerr.Error()})
	}
}

func (s *Supervisor) record(fn func(j StateRecorder) error) error {
	if s.journal == nil {
		return nil
	}
	return fn(s.journal)
}
