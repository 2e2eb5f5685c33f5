package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_RunsImmediatelyAndPeriodically(t *testing.T) {
	var runs atomic.Int32
	s := New("test", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, discardLogger())

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after Stop")
}

func TestScheduler_StopWaitsForRunningTask(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	s := New("test", time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	}, discardLogger())

	s.Start(context.Background())
	<-started
	s.Stop()
	assert.True(t, finished.Load())
}

func TestScheduler_RunOnceSkipsOverlap(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var runs atomic.Int32
	s := New("test", time.Hour, func(ctx context.Context) error {
		runs.Add(1)
		close(entered)
		<-release
		return nil
	}, discardLogger())

	done := make(chan bool)
	go func() { done <- s.RunOnce(context.Background()) }()
	<-entered

	assert.False(t, s.RunOnce(context.Background()))
	close(release)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_TaskErrorDoesNotStopLoop(t *testing.T) {
	var runs atomic.Int32
	s := New("test", 5*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("boom")
	}, discardLogger())

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()
}
