// Package scheduler triggers recurring recommendation runs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/pipeline"
)

// RunFunc executes one recommendation run.
type RunFunc func(ctx context.Context, prefs domain.Preferences) (*pipeline.RunResult, error)

// Scheduler manages the recurring recommendation task.
// Cron expressions carry a leading seconds field.
type Scheduler struct {
	cron   *cron.Cron
	run    RunFunc
	prefs  domain.Preferences
	ctx    context.Context
	logger *log.Logger

	mu    sync.Mutex
	runs  int
	fails int
}

// New creates a Scheduler. A tick that fires while the previous run is
// still executing is skipped. A nil logger writes to stdout.
func New(ctx context.Context, run RunFunc, prefs domain.Preferences, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(os.Stdout, "[scheduler] ", log.LstdFlags)
	}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
	)
	return &Scheduler{
		cron:   c,
		run:    run,
		prefs:  prefs,
		ctx:    ctx,
		logger: logger,
	}
}

// Register schedules the recommendation task on a cron expression.
func (s *Scheduler) Register(spec string) error {
	if spec == "" {
		return errors.New("empty cron spec")
	}
	if _, err := s.cron.AddFunc(spec, s.RunNow); err != nil {
		return fmt.Errorf("register recommendation task %q: %w", spec, err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Println("scheduler started")
}

// Stop stops the scheduler and waits for a running task to finish
// or ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Println("scheduler stop timed out")
	}
	s.logger.Println("scheduler stopped")
}

// RunNow executes the task immediately.
func (s *Scheduler) RunNow() {
	if err := s.ctx.Err(); err != nil {
		return
	}
	s.logger.Println("running scheduled recommendation run")

	result, err := s.run(s.ctx, s.prefs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.fails++
		s.logger.Printf("recommendation run failed: %v", err)
		return
	}
	s.runs++
	if result != nil && result.Output != nil && result.Output.Run != nil {
		run := result.Output.Run
		s.logger.Printf("run %s: %d recommendations, %d skipped",
			run.RunID, len(run.Recommendations), len(run.Skipped))
	}
}

// Counts returns completed and failed scheduled runs.
func (s *Scheduler) Counts() (runs, fails int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.fails
}

// Entries returns the number of registered tasks.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
