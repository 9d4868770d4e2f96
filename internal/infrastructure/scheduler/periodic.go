package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Cadence returns the wait before the next pass, given the current time.
type Cadence func(now time.Time) time.Duration

// Every is a fixed cadence.
func Every(d time.Duration) Cadence {
	return func(time.Time) time.Duration { return d }
}

// PeriodicJob runs fn immediately on Start and then after each cadence
// wait. A pass never overlaps the previous one of the same job.
type PeriodicJob struct {
	name    string
	cadence Cadence
	timeout time.Duration
	fn      func(ctx context.Context)
	logger  *zap.Logger
	now     func() time.Time

	busy      atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewPeriodicJob creates a job named name. timeout bounds a single pass;
// zero means unbounded.
func NewPeriodicJob(name string, cadence Cadence, timeout time.Duration, fn func(ctx context.Context), logger *zap.Logger) *PeriodicJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodicJob{
		name:    name,
		cadence: cadence,
		timeout: timeout,
		fn:      fn,
		logger:  logger.With(zap.String("job", name)),
		now:     time.Now,
	}
}

// Name returns the job name
func (j *PeriodicJob) Name() string {
	return j.name
}

// Start starts the job loop
func (j *PeriodicJob) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.isRunning {
		j.mu.Unlock()
		return nil
	}
	j.isRunning = true
	j.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	j.wg.Add(1)
	go j.runLoop(ctx)

	j.logger.Info("Scheduled job started", zap.Duration("next_in", j.cadence(j.now())))
	return nil
}

// Stop cancels the loop and waits for an in-flight pass, bounded by ctx
func (j *PeriodicJob) Stop(ctx context.Context) error {
	j.mu.Lock()
	if !j.isRunning {
		j.mu.Unlock()
		return nil
	}
	j.isRunning = false
	j.mu.Unlock()

	if j.cancel != nil {
		j.cancel()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		j.logger.Info("Scheduled job stopped")
		return nil
	case <-ctx.Done():
		j.logger.Warn("Scheduled job stop timed out")
		return ctx.Err()
	}
}

func (j *PeriodicJob) runLoop(ctx context.Context) {
	defer j.wg.Done()

	j.RunOnce(ctx)
	for {
		timer := time.NewTimer(j.cadence(j.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce runs a single pass now. It returns false without running when a
// pass is already in flight.
func (j *PeriodicJob) RunOnce(ctx context.Context) bool {
	if !j.busy.CompareAndSwap(false, true) {
		j.logger.Info("Previous pass still running, skipping tick")
		return false
	}
	defer j.busy.Store(false)

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("Scheduled job panicked", zap.Any("panic", r), zap.Stack("stacktrace"))
		}
	}()
	j.fn(ctx)
	return true
}

// ClosingWindowCadence returns base outside the daily window [start, end)
// and closing inside it. start and end are offsets from local midnight;
// end may be 24h. A window with end before start wraps midnight.
func ClosingWindowCadence(base, closing time.Duration, start, end time.Duration, loc *time.Location) Cadence {
	if loc == nil {
		loc = time.UTC
	}
	return func(now time.Time) time.Duration {
		if inWindow(now.In(loc), start, end) {
			return closing
		}
		return base
	}
}

func inWindow(local time.Time, start, end time.Duration) bool {
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	offset := local.Sub(midnight)
	if start <= end {
		return offset >= start && offset < end
	}
	return offset >= start || offset < end
}
