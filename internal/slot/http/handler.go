package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/response"
	"github.com/nekogravitycat/parking-booking-backend/internal/slot"
)

type Handler struct {
	service slot.Service
}

func NewHandler(service slot.Service) *Handler {
	return &Handler{service: service}
}

// ListByPark returns the availability snapshot of every slot in a park.
func (h *Handler) ListByPark(c *gin.Context) {
	var req ListSlotsRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid UUID")
		return
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters")
		return
	}

	slots, err := h.service.ListSlotStatuses(c.Request.Context(), req.ParkID, req.Basement)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]SlotResponse, len(slots))
	for i, s := range slots {
		items[i] = NewSlotResponse(s)
	}
	c.JSON(http.StatusOK, response.NewListResponse(items))
}

// Congestion reports the occupancy level of every park.
func (h *Handler) Congestion(c *gin.Context) {
	rows, err := h.service.Congestion(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]CongestionResponse, len(rows))
	for i, row := range rows {
		items[i] = NewCongestionResponse(row)
	}
	c.JSON(http.StatusOK, response.NewListResponse(items))
}
