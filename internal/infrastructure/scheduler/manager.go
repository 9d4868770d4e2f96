package scheduler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/config"
)

// Manager owns the periodic jobs and the task runner and shares one run
// history between them.
type Manager struct {
	jobs    []*PeriodicJob
	tasks   *TaskRunner
	history *RunHistory
	logger  *zap.Logger
}

// NewManager creates a new manager. tasks may be nil.
func NewManager(history *RunHistory, tasks *TaskRunner, logger *zap.Logger) *Manager {
	if history == nil {
		history = NewRunHistory(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{history: history, tasks: tasks, logger: logger}
}

// Add registers a periodic job. Jobs added after Start are not started.
func (m *Manager) Add(job *PeriodicJob) {
	m.jobs = append(m.jobs, job)
}

// Jobs returns the names of the registered periodic jobs
func (m *Manager) Jobs() []string {
	names := make([]string, 0, len(m.jobs))
	for _, j := range m.jobs {
		names = append(names, j.Name())
	}
	return names
}

// ScheduleProviders adds one job per provider: status polling for
// live-tracked providers, order ingestion for the others.
func (m *Manager) ScheduleProviders(providers []shipment.Provider, ingestion *IngestionSyncer, status *StatusSyncer) {
	for _, p := range providers {
		switch {
		case p.IsLiveTracked() && status != nil:
			m.Add(status.Job(p))
		case !p.IsLiveTracked() && p.IsExternal() && ingestion != nil:
			m.Add(ingestion.Job(p))
		}
	}
}

// Start starts the task runner, then every periodic job
func (m *Manager) Start(ctx context.Context) error {
	if m.tasks != nil {
		if err := m.tasks.Start(ctx); err != nil {
			return err
		}
	}
	for _, j := range m.jobs {
		if err := j.Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", j.Name(), err)
		}
	}
	m.logger.Info("Scheduler started", zap.Strings("jobs", m.Jobs()))
	return nil
}

// Stop stops the periodic jobs, then the task runner
func (m *Manager) Stop(ctx context.Context) error {
	var errs []error
	for _, j := range m.jobs {
		if err := j.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", j.Name(), err))
		}
	}
	if m.tasks != nil {
		if err := m.tasks.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop task runner: %w", err))
		}
	}
	return errors.Join(errs...)
}

// History returns the shared run history
func (m *Manager) History() *RunHistory {
	return m.history
}

// StatusCadence builds the status sync cadence from configuration: the
// sync interval, shortened to the closing interval inside the closing
// window.
func StatusCadence(cfg config.SchedulerConfig) (Cadence, error) {
	start, err := config.ParseClock(cfg.ClosingStart)
	if err != nil {
		return nil, fmt.Errorf("%w: closing start: %v", ErrInvalidConfig, err)
	}
	end, err := config.ParseClock(cfg.ClosingEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: closing end: %v", ErrInvalidConfig, err)
	}
	if cfg.SyncInterval <= 0 || cfg.ClosingInterval <= 0 {
		return nil, fmt.Errorf("%w: sync intervals must be positive", ErrInvalidConfig)
	}
	return ClosingWindowCadence(cfg.SyncInterval, cfg.ClosingInterval, start, end, cfg.Location()), nil
}
