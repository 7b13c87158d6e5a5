package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffbryner/meraki-activity/internal/poller"
)

type mockRunner struct {
	mu       sync.Mutex
	calls    int
	inflight int
	maxSeen  int
	delay    time.Duration
	err      error
}

func (m *mockRunner) Run(ctx context.Context) (*poller.RunSummary, error) {
	m.mu.Lock()
	m.calls++
	m.inflight++
	if m.inflight > m.maxSeen {
		m.maxSeen = m.inflight
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inflight--
		m.mu.Unlock()
	}()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &poller.RunSummary{RunID: "run"}, nil
}

func (m *mockRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestSchedulerStartStop(t *testing.T) {
	runner := &mockRunner{}
	s := New(runner, Config{Interval: time.Hour}, nil)

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "second start should fail")

	require.Eventually(t, s.Ready, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, runner.CallCount())

	require.NoError(t, s.Stop())
	assert.Error(t, s.Stop(), "second stop should fail")
}

func TestSchedulerRunsOnInterval(t *testing.T) {
	runner := &mockRunner{}
	s := New(runner, Config{Interval: 20 * time.Millisecond}, nil)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return runner.CallCount() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, s.Stats().Runs, int64(3))
}

func TestSchedulerNeverOverlaps(t *testing.T) {
	runner := &mockRunner{delay: 30 * time.Millisecond}
	s := New(runner, Config{Interval: 5 * time.Millisecond, RunTimeout: time.Second}, nil)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return runner.CallCount() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, 1, runner.maxSeen)
}

func TestSchedulerFailuresNotFatal(t *testing.T) {
	runner := &mockRunner{err: errors.New("meraki unavailable")}
	s := New(runner, Config{Interval: 10 * time.Millisecond}, nil)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return runner.CallCount() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	stats := s.Stats()
	assert.False(t, s.Ready())
	assert.Equal(t, stats.Runs, stats.Failures)
	assert.Equal(t, "meraki unavailable", stats.LastError)
}

func TestSchedulerStopCancelsRun(t *testing.T) {
	runner := &mockRunner{delay: time.Hour}
	s := New(runner, Config{Interval: time.Hour}, nil)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return runner.CallCount() == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not cancel the in-flight run")
	}
	assert.Equal(t, int64(1), s.Stats().Failures)
}

func TestNewDefaults(t *testing.T) {
	s := New(&mockRunner{}, Config{}, nil)
	assert.Equal(t, 5*time.Minute, s.interval)
	assert.Equal(t, 5*time.Minute, s.timeout)
}
