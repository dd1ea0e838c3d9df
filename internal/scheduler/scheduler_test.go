package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRunAtStart(t *testing.T) {
	var runs atomic.Int64
	job := &Job{
		Name:       "test",
		Interval:   time.Hour,
		RunAtStart: true,
		Fn: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}
	s := New(zap.NewNop().Sugar(), job)
	s.Start()

	deadline := time.After(2 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if !s.Stop(time.Second) {
		t.Error("Stop should return true with no job in flight")
	}
	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
}

func TestTickerFires(t *testing.T) {
	var runs atomic.Int64
	job := &Job{
		Name:     "test",
		Interval: 20 * time.Millisecond,
		Fn: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}
	s := New(zap.NewNop().Sugar(), job)
	s.Start()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d runs before deadline", runs.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
	s.Stop(time.Second)
}

func TestFireSkipsOverlap(t *testing.T) {
	release := make(chan struct{})
	var runs atomic.Int64
	job := &Job{
		Name:     "slow",
		Interval: time.Hour,
		Fn: func(ctx context.Context) error {
			runs.Add(1)
			<-release
			return nil
		},
	}
	s := New(zap.NewNop().Sugar(), job)

	started := make(chan struct{})
	go func() {
		close(started)
		s.fire(context.Background(), job)
	}()
	<-started
	for runs.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	// Second fire while the first holds the running flag.
	s.fire(context.Background(), job)
	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1 while first invocation in flight", got)
	}
	close(release)
}

func TestStopLetsJobFinishWithinGrace(t *testing.T) {
	entered := make(chan struct{})
	var sawCancel atomic.Bool
	job := &Job{
		Name:       "tx",
		Interval:   time.Hour,
		RunAtStart: true,
		Fn: func(ctx context.Context) error {
			close(entered)
			select {
			case <-ctx.Done():
				sawCancel.Store(true)
			case <-time.After(100 * time.Millisecond):
			}
			return nil
		},
	}
	s := New(zap.NewNop().Sugar(), job)
	s.Start()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("job never started")
	}

	// The in-flight run must be allowed to finish on its own clock; only
	// the grace expiry may cancel it.
	if !s.Stop(2 * time.Second) {
		t.Error("Stop should return true when the job finishes within grace")
	}
	if sawCancel.Load() {
		t.Error("job context was cancelled before the grace period expired")
	}
}

func TestFatalErrorTerminatesJob(t *testing.T) {
	fatalErr := errors.New("relation does not exist")
	var runs atomic.Int64
	job := &Job{
		Name:       "doomed",
		Interval:   10 * time.Millisecond,
		RunAtStart: true,
		Fn: func(ctx context.Context) error {
			runs.Add(1)
			return fatalErr
		},
		Fatal: func(err error) bool { return errors.Is(err, fatalErr) },
	}
	s := New(zap.NewNop().Sugar(), job)
	s.Start()

	deadline := time.After(2 * time.Second)
	for s.Healthy() {
		select {
		case <-deadline:
			t.Fatal("scheduler never turned unhealthy")
		case <-time.After(5 * time.Millisecond):
		}
	}
	got := runs.Load()
	time.Sleep(50 * time.Millisecond)
	if runs.Load() != got {
		t.Errorf("job kept running after a fatal error: %d then %d runs", got, runs.Load())
	}
	if got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
	s.Stop(time.Second)
}

func TestStopCancelsAfterGrace(t *testing.T) {
	entered := make(chan struct{})
	var sawCancel atomic.Bool
	job := &Job{
		Name:       "hung",
		Interval:   time.Hour,
		RunAtStart: true,
		Fn: func(ctx context.Context) error {
			close(entered)
			<-ctx.Done()
			sawCancel.Store(true)
			return ctx.Err()
		},
	}
	s := New(zap.NewNop().Sugar(), job)
	s.Start()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("job never started")
	}

	if s.Stop(50 * time.Millisecond) {
		t.Error("Stop should report false when the grace period expires")
	}
	if !sawCancel.Load() {
		t.Error("job context should be cancelled after the grace period")
	}
}

func TestStopBlocksNewRuns(t *testing.T) {
	var runs atomic.Int64
	job := &Job{
		Name:     "test",
		Interval: 10 * time.Millisecond,
		Fn: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}
	s := New(zap.NewNop().Sugar(), job)
	s.Start()

	for runs.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	s.Stop(time.Second)
	after := runs.Load()
	time.Sleep(50 * time.Millisecond)
	if got := runs.Load(); got != after {
		t.Errorf("runs grew from %d to %d after Stop", after, got)
	}
}
