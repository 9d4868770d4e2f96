package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	shipmentapp "github.com/mgastron/mvgtms-sub000/internal/application/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/interfaces/http/dto"
)

// ShipmentService is the part of the shipment service the desk API uses.
type ShipmentService interface {
	CreateManual(ctx context.Context, req shipmentapp.CreateManualShipmentRequest) (*shipment.Shipment, error)
	IngestScanned(ctx context.Context, req shipmentapp.ScanShipmentRequest) (*shipmentapp.IngestResult, error)
	Transition(ctx context.Context, id uuid.UUID, req shipmentapp.TransitionShipmentRequest) (*shipment.Shipment, error)
	AssignDriver(ctx context.Context, id uuid.UUID, req shipmentapp.AssignDriverRequest) (*shipment.Shipment, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*shipment.Shipment, error)
	GetHistory(ctx context.Context, id uuid.UUID) ([]shipment.HistoryEntry, error)
	List(ctx context.Context, f shipmentapp.ListShipmentsFilter) ([]*shipment.Shipment, int64, error)
}

// ShipmentHandler handles the dispatch desk shipment endpoints
type ShipmentHandler struct {
	BaseHandler
	service ShipmentService
}

// NewShipmentHandler creates a new ShipmentHandler
func NewShipmentHandler(service ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{service: service}
}

// RegisterRoutes mounts the shipment endpoints under rg.
func (h *ShipmentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/shipments")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.POST("/scan", h.Scan)
	g.GET("/:id", h.GetByID)
	g.GET("/:id/history", h.History)
	g.POST("/:id/transitions", h.Transition)
	g.POST("/:id/driver", h.AssignDriver)
	g.DELETE("/:id", h.Delete)
}

type listShipmentsQuery struct {
	ClientID string `form:"client_id" binding:"omitempty,uuid"`
	Source   string `form:"source" binding:"omitempty,provider"`
	Status   string `form:"status" binding:"omitempty,shipment_status"`
	Search   string `form:"search" binding:"max=100"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1"`
}

// List returns a page of shipments
// GET /api/v1/shipments?client_id=&source=&status=&search=&page=&page_size=
func (h *ShipmentHandler) List(c *gin.Context) {
	var query listShipmentsQuery
	if !h.bindQuery(c, &query) {
		return
	}
	filter := shipmentapp.ListShipmentsFilter{
		Source:   query.Source,
		Status:   query.Status,
		Search:   query.Search,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if query.ClientID != "" {
		clientID := uuid.MustParse(query.ClientID)
		filter.ClientID = &clientID
	}
	items, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	out := make([]shipmentapp.ShipmentResponse, len(items))
	for i, s := range items {
		out[i] = shipmentapp.ToShipmentResponse(s)
	}
	page := shared.Pagination{Page: filter.Page, PageSize: filter.PageSize}.Normalize()
	h.SuccessWithMeta(c, out, total, page.Page, page.PageSize)
}

// Create opens a manual shipment
// POST /api/v1/shipments
func (h *ShipmentHandler) Create(c *gin.Context) {
	var req shipmentapp.CreateManualShipmentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.Actor = getActor(c)

	s, err := h.service.CreateManual(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, shipmentapp.ToShipmentResponse(s))
}

// Scan ingests a live-tracked label read by the QR scanner and marks it
// collected.
// POST /api/v1/shipments/scan
func (h *ShipmentHandler) Scan(c *gin.Context) {
	var req shipmentapp.ScanShipmentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.Actor = getActor(c)

	result, err := h.service.IngestScanned(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Skipped || result.Shipment == nil {
		h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState, "Shipment is cancelled upstream and was not ingested")
		return
	}

	resp := shipmentapp.IngestResponse{
		Shipment: shipmentapp.ToShipmentResponse(result.Shipment),
		Created:  result.Created,
	}
	if result.Created {
		h.Created(c, resp)
		return
	}
	h.Success(c, resp)
}

// GetByID returns one shipment
// GET /api/v1/shipments/:id
func (h *ShipmentHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	s, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, shipmentapp.ToShipmentResponse(s))
}

// History returns the status ledger, oldest first
// GET /api/v1/shipments/:id/history
func (h *ShipmentHandler) History(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	entries, err := h.service.GetHistory(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, shipmentapp.ToHistoryResponse(entries))
}

// Transition applies a manual status change
// POST /api/v1/shipments/:id/transitions
func (h *ShipmentHandler) Transition(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req shipmentapp.TransitionShipmentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.Actor = getActor(c)

	s, err := h.service.Transition(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, shipmentapp.ToShipmentResponse(s))
}

// AssignDriver (re)assigns the driver of a shipment
// POST /api/v1/shipments/:id/driver
func (h *ShipmentHandler) AssignDriver(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req shipmentapp.AssignDriverRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.Actor = getActor(c)

	s, err := h.service.AssignDriver(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, shipmentapp.ToShipmentResponse(s))
}

// Delete soft-deletes a shipment
// DELETE /api/v1/shipments/:id
func (h *ShipmentHandler) Delete(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	if err := h.service.SoftDelete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
