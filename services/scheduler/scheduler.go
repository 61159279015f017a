// Package scheduler runs periodic background jobs until their context is done.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	logger core.Logger
	jobs   []Job
	wg     sync.WaitGroup
}

func New(logger core.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{logger: logger, jobs: jobs}
}

// Start launches one goroutine per job. Jobs with a non-positive interval are skipped.
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			s.logger.Warn(fmt.Sprintf("scheduler: job %q disabled", job.Name))
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
}

// Wait blocks until every job loop has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()
	s.logger.Info(fmt.Sprintf("scheduler: job %q every %s", job.Name, job.Interval))

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx, job)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(fmt.Sprintf("scheduler: job %q panicked", job.Name), errors.Errorf("%v", r))
		}
	}()
	if err := job.Run(ctx); err != nil {
		s.logger.Error(fmt.Sprintf("scheduler: job %q failed", job.Name), err)
	}
}
