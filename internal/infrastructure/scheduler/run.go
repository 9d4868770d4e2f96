package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

// JobKind tells ingestion runs from status sync runs.
type JobKind string

const (
	JobKindIngestion  JobKind = "ingestion"
	JobKindStatusSync JobKind = "status_sync"
	JobKindTask       JobKind = "task"
)

// Run is one pass of a scheduled job.
type Run struct {
	ID          uuid.UUID
	Job         string
	Kind        JobKind
	Provider    shipment.Provider
	Status      integration.SyncStatus
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time

	Clients       int
	ClientsFailed int
	Items         int
	Created       int
	Existing      int
	Updated       int
	Skipped       int
	Filtered      int
	Failed        int
}

// NewRun creates a running pass of job
func NewRun(job string, kind JobKind, provider shipment.Provider, now time.Time) *Run {
	return &Run{
		ID:        uuid.New(),
		Job:       job,
		Kind:      kind,
		Provider:  provider,
		Status:    integration.SyncStatusRunning,
		StartedAt: now,
	}
}

// add folds the counters of one client pass into the run.
func (r *Run) add(c syncCounts) {
	r.Clients++
	r.Items += c.items
	r.Created += c.created
	r.Existing += c.existing
	r.Updated += c.updated
	r.Skipped += c.skipped
	r.Filtered += c.filtered
	r.Failed += c.failed
}

// failClient records a client whose pass could not run at all.
func (r *Run) failClient() {
	r.Clients++
	r.ClientsFailed++
}

// Complete classifies the run from its counters. A failed client weighs as
// one failed item.
func (r *Run) Complete(now time.Time) {
	r.CompletedAt = &now
	total := r.Items + r.ClientsFailed
	r.Status = integration.SyncResultStatus(total, r.Failed+r.ClientsFailed)
}

// Fail marks the run failed before any item was processed.
func (r *Run) Fail(now time.Time, err error) {
	r.CompletedAt = &now
	r.Status = integration.SyncStatusFailed
	if err != nil {
		r.Error = err.Error()
	}
}

// Duration is the wall time of a completed run.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// syncCounts are the per-item outcomes of one client pass.
type syncCounts struct {
	items    int
	created  int
	existing int
	updated  int
	skipped  int
	filtered int
	failed   int
}

const defaultHistorySize = 100

// RunHistory keeps the most recent runs, newest first.
type RunHistory struct {
	mu   sync.RWMutex
	runs []Run
	max  int
}

// NewRunHistory creates a history holding at most size runs
func NewRunHistory(size int) *RunHistory {
	if size <= 0 {
		size = defaultHistorySize
	}
	return &RunHistory{runs: make([]Run, 0, size), max: size}
}

// Add records a completed run. A copy is stored.
func (h *RunHistory) Add(r *Run) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.runs = append([]Run{*r}, h.runs...)
	if len(h.runs) > h.max {
		h.runs = h.runs[:h.max]
	}
}

// Recent returns up to limit runs, newest first. limit <= 0 returns all.
func (h *RunHistory) Recent(limit int) []Run {
	return h.Filter(limit, func(Run) bool { return true })
}

// ByProvider returns up to limit runs of provider, newest first.
func (h *RunHistory) ByProvider(provider shipment.Provider, limit int) []Run {
	return h.Filter(limit, func(r Run) bool { return r.Provider == provider })
}

// Filter returns up to limit runs matching keep, newest first.
func (h *RunHistory) Filter(limit int, keep func(Run) bool) []Run {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > len(h.runs) {
		limit = len(h.runs)
	}
	out := make([]Run, 0, limit)
	for _, r := range h.runs {
		if !keep(r) {
			continue
		}
		out = append(out, r)
		if len(out) >= limit {
			break
		}
	}
	return out
}
