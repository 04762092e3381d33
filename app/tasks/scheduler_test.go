package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingTask struct {
	Task
	runs  *int32
	fails int32
}

func (t *countingTask) Execute(ctx context.Context) error {
	n := atomic.AddInt32(t.runs, 1)
	if n <= t.fails {
		return errors.New("temporary failure")
	}
	return nil
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Condition not met before timeout")
}

func TestScheduler_RunsOnStart(t *testing.T) {
	var runs int32
	newRun := func() TaskInterface {
		return &countingTask{Task: NewTask(TaskTypeGenerateFeed, "test"), runs: &runs}
	}

	scheduler := NewScheduler(newRun, nil, SchedulerOptions{Schedule: "@every 1h"}, testLogger())
	if err := scheduler.Start(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer scheduler.Stop()

	waitFor(t, 2*time.Second, func() bool { return atomic.LoadInt32(&runs) == 1 })
}

func TestScheduler_RequestRun(t *testing.T) {
	var runs int32
	newRun := func() TaskInterface {
		return &countingTask{Task: NewTask(TaskTypeGenerateFeed, "test"), runs: &runs}
	}

	scheduler := NewScheduler(newRun, nil, SchedulerOptions{Schedule: "@every 1h"}, testLogger())
	if err := scheduler.Start(); err != nil {
		t.Fatal(err)
	}
	defer scheduler.Stop()

	if err := scheduler.RequestRun(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return atomic.LoadInt32(&runs) == 2 })
}

func TestScheduler_RetriesFailedTask(t *testing.T) {
	var runs int32
	newRun := func() TaskInterface {
		return &countingTask{Task: NewTask(TaskTypeGenerateFeed, "test"), runs: &runs, fails: 1}
	}

	scheduler := NewScheduler(newRun, nil, SchedulerOptions{Schedule: "@every 1h"}, testLogger())
	if err := scheduler.Start(); err != nil {
		t.Fatal(err)
	}
	defer scheduler.Stop()

	// First retry waits one second.
	waitFor(t, 3*time.Second, func() bool { return atomic.LoadInt32(&runs) == 2 })
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	newRun := func() TaskInterface { return nil }

	scheduler := NewScheduler(newRun, nil, SchedulerOptions{Schedule: "not a schedule"}, testLogger())
	if err := scheduler.Start(); err == nil {
		t.Error("Expected error for invalid schedule")
	}
}

func TestScheduler_EnqueueAfterStop(t *testing.T) {
	var runs int32
	newRun := func() TaskInterface {
		return &countingTask{Task: NewTask(TaskTypeGenerateFeed, "test"), runs: &runs}
	}

	scheduler := NewScheduler(newRun, nil, SchedulerOptions{Schedule: "@every 1h"}, testLogger())
	if err := scheduler.Start(); err != nil {
		t.Fatal(err)
	}
	scheduler.Stop()

	if err := scheduler.RequestRun(); err == nil {
		t.Error("Expected error enqueueing after stop")
	}
}

func TestTask_CanRetry(t *testing.T) {
	task := NewTask(TaskTypeSweepCache, "/tmp")

	if task.ID == "" {
		t.Error("Expected task ID to be set")
	}

	for i := 0; i < DefaultMaxRetries; i++ {
		if !task.CanRetry() {
			t.Fatalf("Expected retry %d to be allowed", i+1)
		}
		task.IncrementRetryCount()
	}

	if task.CanRetry() {
		t.Error("Expected retries to be exhausted")
	}
}

type sweeperStub struct {
	removed int
	err     error
}

func (s *sweeperStub) Sweep(ctx context.Context) (int, error) {
	return s.removed, s.err
}

func TestSweepCacheTask_Execute(t *testing.T) {
	task := NewSweepCacheTask("/tmp/cache", &sweeperStub{removed: 3}, nil, testLogger())
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
}

func TestSweepCacheTask_Error(t *testing.T) {
	task := NewSweepCacheTask("/tmp/cache", &sweeperStub{err: errors.New("denied")}, nil, testLogger())

	if err := task.Execute(context.Background()); err == nil {
		t.Error("Expected error from failing sweep")
	}
}
