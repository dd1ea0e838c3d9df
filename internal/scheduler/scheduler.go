// Package scheduler runs the periodic jobs: ingest, flight summaries and
// controller summaries. Jobs never overlap themselves.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Job is one periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	// RunAtStart fires the job once immediately instead of waiting a full
	// interval.
	RunAtStart bool
	Fn         func(ctx context.Context) error
	// Fatal reports whether an error will not go away by rerunning, such as
	// a schema error. A fatal error terminates the job for good and marks
	// the scheduler unhealthy.
	Fatal func(error) bool

	running atomic.Bool
	failed  atomic.Bool
}

// Scheduler drives a set of jobs until stopped.
type Scheduler struct {
	jobs []*Job
	log  *zap.SugaredLogger

	quit   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(log *zap.SugaredLogger, jobs ...*Job) *Scheduler {
	return &Scheduler{jobs: jobs, log: log, quit: make(chan struct{})}
}

// Start launches one goroutine per job. Jobs run under the scheduler's own
// context rather than the caller's, so a shutdown signal never aborts an
// in-flight transaction; the context is cancelled only when Stop's grace
// period runs out.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.run(ctx, job)
	}
}

func (s *Scheduler) run(ctx context.Context, job *Job) {
	defer s.wg.Done()

	if job.RunAtStart {
		if s.fire(ctx, job) {
			return
		}
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.fire(ctx, job) {
				return
			}
		}
	}
}

// fire runs the job unless its previous run is still going, in which case
// the slot is skipped. It reports whether the job hit a fatal error and
// must not run again.
func (s *Scheduler) fire(ctx context.Context, job *Job) bool {
	if !job.running.CompareAndSwap(false, true) {
		s.log.Warnw("job still running, skipping slot", "job", job.Name)
		return false
	}
	defer job.running.Store(false)

	start := time.Now()
	if err := job.Fn(ctx); err != nil {
		if job.Fatal != nil && job.Fatal(err) {
			job.failed.Store(true)
			s.log.Errorw("job terminated on fatal error", "job", job.Name, "err", err)
			return true
		}
		s.log.Errorw("job failed", "job", job.Name, "err", err, "elapsed", time.Since(start))
		return false
	}
	s.log.Debugw("job finished", "job", job.Name, "elapsed", time.Since(start))
	return false
}

// Healthy reports false once any job has terminated on a fatal error.
func (s *Scheduler) Healthy() bool {
	for _, job := range s.jobs {
		if job.failed.Load() {
			return false
		}
	}
	return true
}

// Stop prevents new job runs and waits up to grace for in-flight jobs to
// finish their current transaction. When the grace period expires the job
// context is cancelled hard and Stop returns false.
func (s *Scheduler) Stop(grace time.Duration) bool {
	close(s.quit)
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		if s.cancel != nil {
			s.cancel()
		}
		return true
	case <-time.After(grace):
		if s.cancel != nil {
			s.cancel()
		}
		<-done
		return false
	}
}
