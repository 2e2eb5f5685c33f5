package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is one unit of periodic work.
type Task func(ctx context.Context) error

// Scheduler runs a task once on Start and then every interval until Stop.
// A tick that fires while the previous run is still going is skipped.
type Scheduler struct {
	name     string
	interval time.Duration
	task     Task
	logger   *slog.Logger

	running sync.Mutex
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(name string, interval time.Duration, task Task, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logger,
	}
}

// Start is a no-op when the scheduler is already started.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("scheduler started", slog.String("scheduler", s.name), slog.Duration("interval", s.interval))
}

// Stop cancels the loop and waits for a running task to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped", slog.String("scheduler", s.name))
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs the task unless a run is already in progress and reports
// whether it ran.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	if !s.running.TryLock() {
		s.logger.Warn("previous run still in progress, tick skipped", slog.String("scheduler", s.name))
		return false
	}
	defer s.running.Unlock()

	started := time.Now()
	if err := s.task(ctx); err != nil {
		s.logger.Error("scheduled run failed", slog.String("scheduler", s.name), slog.Any("error", err))
		return true
	}
	s.logger.Debug("scheduled run done", slog.String("scheduler", s.name), slog.Duration("took", time.Since(started)))
	return true
}
