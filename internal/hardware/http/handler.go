package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/parking-booking-backend/internal/hardware"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/response"
)

type Handler struct {
	ingestor hardware.Ingestor
}

func NewHandler(ingestor hardware.Ingestor) *Handler {
	return &Handler{ingestor: ingestor}
}

type SignalResponse struct {
	BookingID             string `json:"booking_id"`
	Status                string `json:"status"`
	HardwareEntryDetected bool   `json:"hardware_entry_detected"`
	HardwareExitDetected  bool   `json:"hardware_exit_detected"`
}

// Ingest applies an entry or exit detection. Signals for finished bookings
// are accepted and leave them unchanged.
func (h *Handler) Ingest(c *gin.Context) {
	var req hardware.Signal
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	b, err := hardware.Apply(c.Request.Context(), h.ingestor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, SignalResponse{
		BookingID:             b.ID,
		Status:                string(b.Status),
		HardwareEntryDetected: b.HardwareEntryDetected,
		HardwareExitDetected:  b.HardwareExitDetected,
	})
}
