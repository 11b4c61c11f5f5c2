package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
)

type scriptedCycle struct {
	calls    atomic.Int32
	failures int32
}

func (s *scriptedCycle) Run(context.Context) (CycleReport, error) {
	n := s.calls.Add(1)
	if n <= s.failures {
		return CycleReport{}, errors.New("feed unavailable")
	}
	return CycleReport{Committed: true}, nil
}

type fakeLocks struct {
	held     bool
	unlocked int
}

func (f *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	if f.held {
		return nil, domain.ErrLockHeld
	}
	return func() { f.unlocked++ }, nil
}

func testSchedulerConfig(retries uint64) SchedulerConfig {
	return SchedulerConfig{
		Interval:       time.Hour,
		CycleTimeout:   time.Second,
		MaxRetries:     retries,
		RetryBaseDelay: time.Millisecond,
		LockTTL:        time.Minute,
	}
}

func TestRunOnceRetries(t *testing.T) {
	tests := []struct {
		name      string
		failures  int32
		retries   uint64
		wantOK    bool
		wantCalls int32
	}{
		{"first attempt", 0, 3, true, 1},
		{"recovers after two failures", 2, 3, true, 3},
		{"gives up after max retries", 10, 2, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cycle := &scriptedCycle{failures: tt.failures}
			locks := &fakeLocks{}
			s := NewSyncScheduler(cycle, locks, testSchedulerConfig(tt.retries), discardLogger())

			if got := s.RunOnce(context.Background()); got != tt.wantOK {
				t.Errorf("RunOnce = %v, want %v", got, tt.wantOK)
			}
			if got := cycle.calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
			if locks.unlocked != 1 {
				t.Errorf("unlocked = %d, want 1", locks.unlocked)
			}
		})
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	cycle := &scriptedCycle{}
	s := NewSyncScheduler(cycle, &fakeLocks{held: true}, testSchedulerConfig(1), discardLogger())

	if s.RunOnce(context.Background()) {
		t.Error("RunOnce succeeded while lock held")
	}
	if cycle.calls.Load() != 0 {
		t.Error("cycle ran while lock held")
	}
}

func TestRunLoopObservesCancellationBetweenCycles(t *testing.T) {
	cycle := &scriptedCycle{}
	cfg := testSchedulerConfig(0)
	cfg.Interval = 5 * time.Millisecond
	s := NewSyncScheduler(cycle, nil, cfg, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunLoop(ctx) }()

	deadline := time.After(2 * time.Second)
	for cycle.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("loop did not tick")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunLoop = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunLoop did not stop")
	}
}

func TestRunLoopNotStartedAfterCancel(t *testing.T) {
	cycle := &scriptedCycle{}
	s := NewSyncScheduler(cycle, nil, testSchedulerConfig(0), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.RunLoop(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("RunLoop = %v", err)
	}
	if cycle.calls.Load() != 0 {
		t.Errorf("cycle ran %d times after cancel", cycle.calls.Load())
	}
}

func TestStatusRecordsLatestOutcome(t *testing.T) {
	cycle := &scriptedCycle{failures: 1}
	s := NewSyncScheduler(cycle, nil, testSchedulerConfig(0), discardLogger())

	if s.RunOnce(context.Background()) {
		t.Fatal("first RunOnce succeeded")
	}
	failed := s.Status()
	if failed.LastError == "" || !failed.LastSuccessAt.IsZero() || failed.Attempts != 1 {
		t.Errorf("after failure: %+v", failed)
	}

	if !s.RunOnce(context.Background()) {
		t.Fatal("second RunOnce failed")
	}
	ok := s.Status()
	if ok.LastError != "" || ok.LastSuccessAt.IsZero() || !ok.LastReport.Committed {
		t.Errorf("after success: %+v", ok)
	}
}
