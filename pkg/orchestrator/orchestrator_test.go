package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerFunc struct {
	name string
	run  func(ctx context.Context) error
}

func (r runnerFunc) Name() string                  { return r.name }
func (r runnerFunc) Run(ctx context.Context) error { return r.run(ctx) }

func TestTargetsAreIsolated(t *testing.T) {
	var failedDone, panickedDone atomic.Bool
	stillRunning := make(chan struct{})

	o := New(nil,
		runnerFunc{"blocking", func(ctx context.Context) error {
			close(stillRunning)
			<-ctx.Done()
			return nil
		}},
		runnerFunc{"failing", func(ctx context.Context) error {
			defer failedDone.Store(true)
			return errors.New("local root does not exist")
		}},
		runnerFunc{"panicking", func(ctx context.Context) error {
			defer panickedDone.Store(true)
			panic("boom")
		}},
	)
	assert.Equal(t, []string{"blocking", "failing", "panicking"}, o.Targets())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan []Result, 1)
	go func() { done <- o.Run(ctx) }()

	<-stillRunning
	require.Eventually(t, func() bool { return failedDone.Load() && panickedDone.Load() }, time.Second, 5*time.Millisecond)

	select {
	case <-done:
		t.Fatal("orchestrator returned while a target was still running")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	var results []Result
	select {
	case results = <-done:
	case <-time.After(time.Second):
		t.Fatal("orchestrator did not stop")
	}

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.EqualError(t, results[1].Err, "local root does not exist")
	assert.ErrorContains(t, results[2].Err, "target panicking panicked: boom")

	err := Failed(results)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing: local root does not exist")
	assert.NotContains(t, err.Error(), "blocking")
}

func TestNoFailures(t *testing.T) {
	o := New(nil, runnerFunc{"a", func(ctx context.Context) error { return nil }})
	assert.NoError(t, Failed(o.Run(context.Background())))
}

func TestNoTargets(t *testing.T) {
	assert.Empty(t, New(nil).Run(context.Background()))
}
