// Package scheduler runs a task periodically on an injectable clock
// without ever letting two runs of the same task overlap.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"github.com/dreschagin/crm-monitoring/pkg/logger"
)

// ErrAlreadyStarted is returned by Start on a running scheduler.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Task is one unit of periodic work. It must honour ctx cancellation.
type Task func(ctx context.Context)

// Scheduler fires Task every interval. A tick that arrives while the previous
// run is still in progress is skipped.
type Scheduler struct {
	name     string
	interval time.Duration
	clock    clock.WithTicker
	task     Task
	log      *logger.Logger

	running atomic.Bool
	skipped atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	loop   sync.WaitGroup
	runs   sync.WaitGroup
}

// New creates a stopped scheduler. clk may be nil for the real clock.
func New(name string, interval time.Duration, clk clock.WithTicker, task Task, log *logger.Logger) *Scheduler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		name:     name,
		interval: interval,
		clock:    clk,
		task:     task,
		log:      log.With("scheduler", name),
	}
}

// Start launches the ticker loop. The loop ends when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("scheduler %s: interval must be positive", s.name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	ticker := s.clock.NewTicker(s.interval)
	s.loop.Add(1)
	go func() {
		defer s.loop.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				s.RunNow(ctx)
			}
		}
	}()

	s.log.Info("scheduler started", "interval", s.interval.String())
	return nil
}

// RunNow starts one run in the background unless a run is already in progress.
// It reports whether a run was started.
func (s *Scheduler) RunNow(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.log.Warn("previous run still in progress, tick skipped")
		return false
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer s.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("task panicked", fmt.Errorf("panic: %v", r))
			}
		}()

		s.task(ctx)
	}()
	return true
}

// Running reports whether a run is in progress.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Skipped returns the number of ticks dropped because of an in-progress run.
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

// Stop cancels the loop and waits for the in-flight run to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	s.loop.Wait()
	s.runs.Wait()
	s.log.Info("scheduler stopped")
}
