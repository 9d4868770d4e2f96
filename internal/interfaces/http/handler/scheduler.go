package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/scheduler"
	"github.com/mgastron/mvgtms-sub000/internal/interfaces/http/dto"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// TaskSubmitter queues supervised background work.
type TaskSubmitter interface {
	Submit(name string, fn func(ctx context.Context) error) error
}

// ClientSyncer pulls one client's orders from one provider.
type ClientSyncer interface {
	SyncClient(ctx context.Context, provider shipment.Provider, clientID uuid.UUID) error
}

// SchedulerHandler exposes recent job runs and on-demand client syncs
type SchedulerHandler struct {
	BaseHandler
	history *scheduler.RunHistory
	tasks   TaskSubmitter
	syncer  ClientSyncer
}

// NewSchedulerHandler creates a new SchedulerHandler. tasks and syncer may
// be nil when the scheduler is disabled; sync requests then answer 503.
func NewSchedulerHandler(history *scheduler.RunHistory, tasks TaskSubmitter, syncer ClientSyncer) *SchedulerHandler {
	return &SchedulerHandler{history: history, tasks: tasks, syncer: syncer}
}

// RegisterRoutes mounts the scheduler endpoints under rg.
func (h *SchedulerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/scheduler")
	g.GET("/runs", h.Runs)
	g.POST("/sync", h.Sync)
}

type runsQuery struct {
	Provider string `form:"provider" binding:"omitempty,provider"`
	Kind     string `form:"kind" binding:"omitempty,oneof=ingestion status_sync task"`
	Limit    int    `form:"limit" binding:"omitempty,min=1"`
}

// RunResponse is one job pass
type RunResponse struct {
	ID            uuid.UUID  `json:"id"`
	Job           string     `json:"job"`
	Kind          string     `json:"kind"`
	Provider      string     `json:"provider,omitempty"`
	Status        string     `json:"status"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	DurationMs    int64      `json:"duration_ms"`
	Clients       int        `json:"clients"`
	ClientsFailed int        `json:"clients_failed"`
	Items         int        `json:"items"`
	Created       int        `json:"created"`
	Existing      int        `json:"existing"`
	Updated       int        `json:"updated"`
	Skipped       int        `json:"skipped"`
	Filtered      int        `json:"filtered"`
	Failed        int        `json:"failed"`
}

func toRunResponse(r scheduler.Run) RunResponse {
	return RunResponse{
		ID:            r.ID,
		Job:           r.Job,
		Kind:          string(r.Kind),
		Provider:      r.Provider.String(),
		Status:        string(r.Status),
		Error:         r.Error,
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
		DurationMs:    r.Duration().Milliseconds(),
		Clients:       r.Clients,
		ClientsFailed: r.ClientsFailed,
		Items:         r.Items,
		Created:       r.Created,
		Existing:      r.Existing,
		Updated:       r.Updated,
		Skipped:       r.Skipped,
		Filtered:      r.Filtered,
		Failed:        r.Failed,
	}
}

// Runs lists recent job runs, newest first
// GET /api/v1/scheduler/runs?provider=&kind=&limit=
func (h *SchedulerHandler) Runs(c *gin.Context) {
	var query runsQuery
	if !h.bindQuery(c, &query) {
		return
	}
	limit := query.Limit
	if limit == 0 {
		limit = defaultRunLimit
	}
	limit = min(limit, maxRunLimit)
	provider := shipment.Provider(strings.ToLower(query.Provider))

	runs := h.history.Filter(limit, func(r scheduler.Run) bool {
		return (provider == "" || r.Provider == provider) &&
			(query.Kind == "" || string(r.Kind) == query.Kind)
	})
	out := make([]RunResponse, len(runs))
	for i, r := range runs {
		out[i] = toRunResponse(r)
	}
	h.Success(c, out)
}

// SyncRequest asks for an immediate ingestion pass of one client
type SyncRequest struct {
	Provider string    `json:"provider" binding:"required,provider"`
	ClientID uuid.UUID `json:"client_id" binding:"required"`
}

// Sync queues an ingestion pass for one client and provider
// POST /api/v1/scheduler/sync
func (h *SchedulerHandler) Sync(c *gin.Context) {
	if h.tasks == nil || h.syncer == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeInternal, "Scheduler is disabled")
		return
	}
	var req SyncRequest
	if !h.bindJSON(c, &req) {
		return
	}
	provider := shipment.Provider(strings.ToLower(req.Provider))
	if !provider.IsExternal() || provider.IsLiveTracked() {
		h.BadRequest(c, "Provider does not support order ingestion")
		return
	}

	name := "sync:" + provider.String() + ":" + req.ClientID.String()
	err := h.tasks.Submit(name, func(ctx context.Context) error {
		return h.syncer.SyncClient(ctx, provider, req.ClientID)
	})
	switch {
	case errors.Is(err, scheduler.ErrTaskQueueFull):
		c.Header("Retry-After", "30")
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeBusy, "Task queue is full, retry later")
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeInternal, "Scheduler is not running")
	case err != nil:
		h.HandleError(c, err)
	default:
		c.JSON(http.StatusAccepted, dto.NewSuccessResponse(gin.H{"task": name}))
	}
}
