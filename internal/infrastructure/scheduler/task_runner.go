package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TaskRunnerConfig holds task runner configuration
type TaskRunnerConfig struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

// Validate validates the configuration
func (c TaskRunnerConfig) Validate() error {
	if c.Workers <= 0 || c.QueueSize <= 0 || c.TaskTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

type task struct {
	id   uuid.UUID
	name string
	fn   func(ctx context.Context) error
}

// TaskRunner runs supervised one-off background tasks on a bounded worker
// pool. Each task gets its own timeout; a panic fails the task and keeps the
// worker alive. Stop cancels running tasks.
type TaskRunner struct {
	config  TaskRunnerConfig
	history *RunHistory
	logger  *zap.Logger

	tasks     chan task
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
}

// NewTaskRunner creates a new task runner. history may be nil.
func NewTaskRunner(config TaskRunnerConfig, history *RunHistory, logger *zap.Logger) (*TaskRunner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskRunner{
		config:  config,
		history: history,
		logger:  logger,
		tasks:   make(chan task, config.QueueSize),
	}, nil
}

// Start starts the worker pool
func (r *TaskRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRunning {
		return nil
	}
	r.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}

	r.logger.Info("Task runner started",
		zap.Int("workers", r.config.Workers),
		zap.Duration("task_timeout", r.config.TaskTimeout),
	)
	return nil
}

// Stop cancels running tasks and waits for the workers, bounded by ctx.
// Queued tasks are dropped.
func (r *TaskRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	if r.cancel != nil {
		r.cancel()
	}
	close(r.tasks)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Task runner stopped gracefully")
		return nil
	case <-ctx.Done():
		r.logger.Warn("Task runner stop timed out")
		return ctx.Err()
	}
}

// Submit queues fn under name. It never blocks: a full queue returns
// ErrTaskQueueFull.
func (r *TaskRunner) Submit(name string, fn func(ctx context.Context) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.isRunning {
		return ErrSchedulerNotRunning
	}

	t := task{id: uuid.New(), name: name, fn: fn}
	select {
	case r.tasks <- t:
		r.logger.Debug("Task submitted", zap.String("task_id", t.id.String()), zap.String("task", name))
		return nil
	default:
		return ErrTaskQueueFull
	}
}

func (r *TaskRunner) worker(ctx context.Context, workerID int) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-r.tasks:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				r.logger.Warn("Task dropped on shutdown", zap.String("task_id", t.id.String()), zap.String("task", t.name))
				return
			}
			r.process(ctx, t, workerID)
		}
	}
}

func (r *TaskRunner) process(ctx context.Context, t task, workerID int) {
	run := NewRun(t.name, JobKindTask, "", time.Now())
	run.ID = t.id
	log := r.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("task_id", t.id.String()),
		zap.String("task", t.name),
	)

	taskCtx, cancel := context.WithTimeout(ctx, r.config.TaskTimeout)
	defer cancel()

	err := r.safeRun(taskCtx, t)
	if err != nil {
		run.Fail(time.Now(), err)
		log.Error("Task failed", zap.Duration("duration", run.Duration()), zap.Error(err))
	} else {
		run.Complete(time.Now())
		log.Info("Task completed", zap.Duration("duration", run.Duration()))
	}
	if r.history != nil {
		r.history.Add(run)
	}
}

func (r *TaskRunner) safeRun(ctx context.Context, t task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Task panicked",
				zap.String("task_id", t.id.String()),
				zap.Any("panic", p),
				zap.Stack("stacktrace"),
			)
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, p)
		}
	}()
	return t.fn(ctx)
}
