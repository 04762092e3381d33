package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	DefaultSchedule      = "@every 15m"
	DefaultSweepSchedule = "@daily"
	DefaultTaskTimeout   = 30 * time.Minute

	queueSize = 16
)

type TaskFactory func() TaskInterface

// Scheduler runs tasks on a single worker so the item store and page cache
// keep one writer. Cron entries enqueue new tasks; failures are retried with
// backoff.
type Scheduler struct {
	cron          *cron.Cron
	schedule      string
	sweepSchedule string
	newRun        TaskFactory
	newSweep      TaskFactory
	taskTimeout   time.Duration
	logger        *slog.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	taskQueue     chan TaskInterface
}

type SchedulerOptions struct {
	Schedule      string
	SweepSchedule string
	TaskTimeout   time.Duration
}

func NewScheduler(newRun, newSweep TaskFactory, opts SchedulerOptions, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Schedule == "" {
		opts.Schedule = DefaultSchedule
	}
	if opts.SweepSchedule == "" {
		opts.SweepSchedule = DefaultSweepSchedule
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:          cron.New(),
		schedule:      opts.Schedule,
		sweepSchedule: opts.SweepSchedule,
		newRun:        newRun,
		newSweep:      newSweep,
		taskTimeout:   opts.TaskTimeout,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		taskQueue:     make(chan TaskInterface, queueSize),
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.enqueueRun); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.schedule, err)
	}

	if s.newSweep != nil {
		if _, err := s.cron.AddFunc(s.sweepSchedule, s.enqueueSweep); err != nil {
			return fmt.Errorf("invalid sweep schedule %q: %w", s.sweepSchedule, err)
		}
	}

	s.wg.Add(1)
	go s.worker()

	s.enqueueRun()
	s.cron.Start()

	s.logger.Info("Scheduler started", "schedule", s.schedule, "sweep_schedule", s.sweepSchedule)

	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

// RequestRun enqueues an immediate pipeline run.
func (s *Scheduler) RequestRun() error {
	return s.EnqueueTask(s.newRun())
}

func (s *Scheduler) enqueueRun() {
	if err := s.RequestRun(); err != nil {
		s.logger.Warn("Failed to enqueue GenerateFeedTask", "error", err)
	}
}

func (s *Scheduler) enqueueSweep() {
	if err := s.EnqueueTask(s.newSweep()); err != nil {
		s.logger.Warn("Failed to enqueue SweepCacheTask", "error", err)
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(task)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	if s.ctx.Err() != nil {
		s.logger.Debug("Scheduler stopped during task", "type", string(task.GetType()), "id", task.GetID())
		return
	}

	s.logger.Error("Worker task execution failed", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		s.logger.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
	if retryDelay > 30*time.Second {
		retryDelay = 30 * time.Second
	}

	s.logger.Warn("Task retry scheduled", "type", string(task.GetType()), "target", task.GetTarget(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			s.logger.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				s.logger.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}
