package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sdejongh/sftpmirror/pkg/models"
	"github.com/sdejongh/sftpmirror/pkg/reconcile"
	"github.com/sdejongh/sftpmirror/pkg/storage"
	"github.com/sdejongh/sftpmirror/pkg/watch"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

type chanSource struct {
	events chan []watch.Event
	errs   chan error

	mu     sync.Mutex
	next   watch.Handle
	adds   int
	closed bool
}

func newChanSource() *chanSource {
	return &chanSource{events: make(chan []watch.Event, 16), errs: make(chan error, 4)}
}

func (c *chanSource) Add(path string) (watch.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	c.adds++
	return c.next, nil
}

func (c *chanSource) Poll(ctx context.Context, timeout time.Duration) ([]watch.Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case batch := <-c.events:
		return batch, nil
	case err := <-c.errs:
		return nil, err
	case <-time.After(timeout):
		return nil, nil
	}
}

func (c *chanSource) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *chanSource) addCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adds
}

type fakeDialer struct {
	dst, src afero.Fs
	failures int

	mu       sync.Mutex
	attempts int
	current  *storage.LocalSession
}

func (d *fakeDialer) Dial(ctx context.Context) (storage.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if d.attempts <= d.failures {
		return nil, &storage.TransportError{Op: "dial", Path: "example.org:22", Err: errors.New("connection refused")}
	}
	d.current = storage.NewLocalSession(d.dst, d.src, nil)
	return d.current, nil
}

func (d *fakeDialer) attemptCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

func (d *fakeDialer) drop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current.Close()
}

type recorder struct {
	mu      sync.Mutex
	states  []models.TargetState
	errs    []error
	reports []*models.ReconcileReport
}

func (r *recorder) RecordState(target string, state models.TargetState, session string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return nil
}

func (r *recorder) RecordError(target string, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	return nil
}

func (r *recorder) RecordReconcile(target string, report *models.ReconcileReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func (r *recorder) snapshot() []models.TargetState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.TargetState(nil), r.states...)
}

type harness struct {
	src, dst afero.Fs
	source   *chanSource
	dialer   *fakeDialer
	clock    clockwork.FakeClock
	journal  *recorder
	sup      *Supervisor

	cancel context.CancelFunc
	done   chan error
}

func newHarness(t *testing.T, config Config, failures int) *harness {
	t.Helper()
	h := &harness{
		src:     afero.NewMemMapFs(),
		dst:     afero.NewMemMapFs(),
		source:  newChanSource(),
		clock:   clockwork.NewFakeClock(),
		journal: &recorder{},
	}
	require.NoError(t, h.src.MkdirAll("/local/pkg", 0755))
	require.NoError(t, h.dst.MkdirAll("/remote", 0755))
	h.dialer = &fakeDialer{dst: h.dst, src: h.src, failures: failures}

	config.Name = "web"
	config.Roots = reconcile.Roots{Local: "/local", Remote: "/remote"}
	config.PollInterval = 10 * time.Millisecond
	h.sup = New(config, h.dialer, h.source,
		WithClock(h.clock), WithFs(h.src), WithJournal(h.journal))
	return h
}

func (h *harness) start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan error, 1)
	go func() { h.done <- h.sup.Run(ctx) }()
}

func (h *harness) stop(t *testing.T) error {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.done:
		return err
	case <-time.After(waitFor):
		t.Fatal("supervisor did not stop")
		return nil
	}
}

func (h *harness) waitState(t *testing.T, state models.TargetState) {
	t.Helper()
	require.Eventually(t, func() bool { return h.sup.State() == state }, waitFor, tick)
}

func (h *harness) remoteExists(name string) func() bool {
	return func() bool {
		_, err := h.dst.Stat(name)
		return err == nil
	}
}

func TestLocalRootMissingStopsTarget(t *testing.T) {
	h := newHarness(t, Config{}, 0)
	require.NoError(t, h.src.RemoveAll("/local"))

	err := h.sup.Run(context.Background())
	require.ErrorIs(t, err, ErrLocalRootMissing)
	assert.Equal(t, 0, h.dialer.attemptCount())
	assert.Equal(t, models.StateStopped, h.sup.State())
	assert.True(t, h.source.closed)
}

func TestInitialSyncThenWatch(t *testing.T) {
	h := newHarness(t, Config{InitialSync: true}, 0)
	require.NoError(t, afero.WriteFile(h.src, "/local/pkg/a.py", []byte("a"), 0644))
	h.start()

	h.waitState(t, models.StateWatching)
	assert.True(t, h.remoteExists("/remote/pkg/a.py")())
	assert.NotEmpty(t, h.sup.Session())

	root, ok := h.sup.Registry().HandleOf("/local")
	require.True(t, ok)
	require.NoError(t, afero.WriteFile(h.src, "/local/b.py", []byte("b"), 0644))
	h.source.events <- []watch.Event{{Handle: root, Name: "b.py", Mask: watch.Create}}
	require.Eventually(t, h.remoteExists("/remote/b.py"), waitFor, tick)

	require.NoError(t, h.stop(t))
	assert.Equal(t, models.StateStopped, h.sup.State())
	assert.Equal(t, []models.TargetState{
		models.StateConnecting,
		models.StateReconciling,
		models.StateWatching,
		models.StateDisconnected,
		models.StateStopped,
	}, h.journal.snapshot())
	assert.Len(t, h.journal.reports, 1)
}

func TestWatchOnlyWithoutInitialSync(t *testing.T) {
	h := newHarness(t, Config{}, 0)
	require.NoError(t, afero.WriteFile(h.src, "/local/old.py", []byte("old"), 0644))
	h.start()

	h.waitState(t, models.StateWatching)
	assert.False(t, h.remoteExists("/remote/old.py")())
	assert.NotContains(t, h.journal.snapshot(), models.StateReconciling)
	require.NoError(t, h.stop(t))
}

func TestRetriesAfterConnectFailure(t *testing.T) {
	h := newHarness(t, Config{InitialSync: true}, 1)
	h.start()

	h.clock.BlockUntil(1)
	assert.Equal(t, 1, h.dialer.attemptCount())
	assert.Equal(t, models.StateDisconnected, h.sup.State())

	h.clock.Advance(DefaultRetryInterval)
	h.waitState(t, models.StateWatching)
	assert.Equal(t, 2, h.dialer.attemptCount())
	assert.Len(t, h.journal.errs, 1)

	require.NoError(t, h.stop(t))
}

func TestReconnectKeepsWatchRegistry(t *testing.T) {
	h := newHarness(t, Config{}, 0)
	h.start()
	h.waitState(t, models.StateWatching)
	adds := h.source.addCount()
	assert.Equal(t, 2, adds)

	root, ok := h.sup.Registry().HandleOf("/local")
	require.True(t, ok)
	require.NoError(t, afero.WriteFile(h.src, "/local/x.py", []byte("x"), 0644))

	h.dialer.drop()
	h.source.events <- []watch.Event{{Handle: root, Name: "x.py", Mask: watch.Create}}

	h.clock.BlockUntil(1)
	assert.Equal(t, models.StateDisconnected, h.sup.State())
	h.clock.Advance(DefaultRetryInterval)

	require.Eventually(t, func() bool {
		return h.dialer.attemptCount() == 2 && h.sup.State() == models.StateWatching
	}, waitFor, tick)
	assert.Equal(t, adds, h.source.addCount())
	assert.Equal(t, 2, h.sup.Registry().Len())

	require.NoError(t, h.stop(t))
}

func TestReplaysEventsLostWithSession(t *testing.T) {
	h := newHarness(t, Config{}, 0)
	h.start()
	h.waitState(t, models.StateWatching)

	root, ok := h.sup.Registry().HandleOf("/local")
	require.True(t, ok)
	require.NoError(t, afero.WriteFile(h.src, "/local/x.py", []byte("x"), 0644))
	require.NoError(t, afero.WriteFile(h.src, "/local/y.py", []byte("y"), 0644))

	h.dialer.drop()
	h.source.events <- []watch.Event{
		{Handle: root, Name: "x.py", Mask: watch.Create},
		{Handle: root, Name: "y.py", Mask: watch.Create},
	}

	h.clock.BlockUntil(1)
	assert.False(t, h.remoteExists("/remote/x.py")())
	h.clock.Advance(DefaultRetryInterval)

	// no initial sync: only the replay can bring these over
	require.Eventually(t, h.remoteExists("/remote/x.py"), waitFor, tick)
	require.Eventually(t, h.remoteExists("/remote/y.py"), waitFor, tick)
	h.waitState(t, models.StateWatching)

	require.NoError(t, h.stop(t))
}

func TestOverflowTriggersReconcile(t *testing.T) {
	h := newHarness(t, Config{InitialSync: true}, 0)
	h.start()
	h.waitState(t, models.StateWatching)

	require.NoError(t, afero.WriteFile(h.src, "/local/missed.py", []byte("m"), 0644))
	h.source.errs <- watch.ErrOverflow
	require.Eventually(t, h.remoteExists("/remote/missed.py"), waitFor, tick)

	require.NoError(t, h.stop(t))
}

func TestCancelDuringBackoff(t *testing.T) {
	h := newHarness(t, Config{}, 100)
	h.start()

	h.clock.BlockUntil(1)
	assert.NoError(t, h.stop(t))
	assert.Equal(t, models.StateStopped, h.sup.State())
}

func TestPermissiveSession(t *testing.T) {
	h := newHarness(t, Config{InitialSync: true, Permissive: true}, 0)
	require.NoError(t, afero.WriteFile(h.src, "/local/pkg/run.sh", []byte("#!/bin/sh"), 0600))
	h.start()
	h.waitState(t, models.StateWatching)

	info, err := h.dst.Stat("/remote/pkg/run.sh")
	require.NoError(t, err)
	assert.Equal(t, storage.PermissiveMode, info.Mode().Perm())

	require.NoError(t, h.stop(t))
}

func TestDefaults(t *testing.T) {
	s := New(Config{Name: "x"}, nil, newChanSource())
	assert.Equal(t, DefaultRetryInterval, s.config.RetryInterval)
	assert.Equal(t, DefaultConnectTimeout, s.config.ConnectTimeout)
	assert.Equal(t, DefaultPollInterval, s.config.PollInterval)
	assert.Equal(t, models.StateDisconnected, s.State())
	assert.Equal(t, "x", s.Name())
}
