package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	shipmentapp "github.com/mgastron/mvgtms-sub000/internal/application/shipment"
)

// Tracker resolves public tracking tokens.
type Tracker interface {
	Track(ctx context.Context, token string) (*shipmentapp.TrackingView, error)
}

// TrackingHandler serves the public, unauthenticated tracking lookup
type TrackingHandler struct {
	BaseHandler
	tracker Tracker
	limit   gin.HandlerFunc
}

// NewTrackingHandler creates a new TrackingHandler. limit, when not nil,
// runs before every lookup.
func NewTrackingHandler(tracker Tracker, limit gin.HandlerFunc) *TrackingHandler {
	return &TrackingHandler{tracker: tracker, limit: limit}
}

// RegisterRoutes mounts the tracking endpoint under rg.
func (h *TrackingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	handlers := []gin.HandlerFunc{}
	if h.limit != nil {
		handlers = append(handlers, h.limit)
	}
	handlers = append(handlers, h.Track)
	rg.GET("/tracking/:token", handlers...)
}

// Track returns status and history behind a tracking token
// GET /api/v1/tracking/:token
func (h *TrackingHandler) Track(c *gin.Context) {
	view, err := h.tracker.Track(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	h.Success(c, view)
}
