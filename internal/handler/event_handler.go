package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/atelier-ops/atelier-api/internal/models"
	"github.com/atelier-ops/atelier-api/internal/service"
	"github.com/atelier-ops/atelier-api/pkg/response"
)

// EventHandler exposes the lifecycle audit trail.
type EventHandler struct {
	events *service.EventService
}

// NewEventHandler constructs EventHandler.
func NewEventHandler(events *service.EventService) *EventHandler {
	return &EventHandler{events: events}
}

// List godoc
// @Summary List domain events
// @Tags Events
// @Produce json
// @Param entityType query string false "Filter by entity type"
// @Param entityId query string false "Filter by entity"
// @Param kind query string false "Filter by kind"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	var filter models.EventFilter
	filter.EntityType = strings.ToLower(c.Query("entityType"))
	filter.EntityID = c.Query("entityId")
	filter.Kind = strings.ToUpper(c.Query("kind"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	events, pagination, err := h.events.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination)
}
