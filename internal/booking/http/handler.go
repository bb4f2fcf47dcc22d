package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nekogravitycat/parking-booking-backend/internal/auth"
	"github.com/nekogravitycat/parking-booking-backend/internal/booking"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/response"
)

type Handler struct {
	service booking.Service
	logger  *zap.Logger
}

func NewHandler(service booking.Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// loadOwned fetches the booking named in the path and checks that it belongs
// to the caller. It writes the error response itself and reports success.
func (h *Handler) loadOwned(c *gin.Context) (*booking.Booking, bool) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid UUID")
		return nil, false
	}

	b, err := h.service.GetByID(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}

	if b.UserID != auth.GetUserID(c) {
		response.Error(c, booking.ErrPermissionDenied)
		return nil, false
	}
	return b, true
}

// Create reserves a slot for the caller. Billing starts immediately.
func (h *Handler) Create(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	b, err := h.service.CreateBooking(c.Request.Context(), booking.CreateRequest{
		UserID:        auth.GetUserID(c),
		SlotID:        req.SlotID,
		VehicleNumber: req.VehicleNumber,
		ArrivalTime:   req.ArrivalTime,
		Date:          req.Date,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewBookingResponse(b, h.service))
}

// List returns the caller's bookings, each with its billing snapshot.
func (h *Handler) List(c *gin.Context) {
	var req ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters")
		return
	}
	req.Normalize()

	bookings, total, err := h.service.List(c.Request.Context(), booking.Filter{
		UserID:   auth.GetUserID(c),
		Statuses: req.Statuses(),
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]BookingWithBillingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = BookingWithBillingResponse{BookingResponse: NewBookingResponse(b, h.service)}

		snap, final, err := h.service.Billing(b)
		if err != nil {
			// Keep listing; one broken row should not hide the rest.
			h.logger.Error("billing snapshot failed", zap.String("booking_id", b.ID), zap.Error(err))
			continue
		}
		cost := NewCostResponse(b, snap, final)
		items[i].Billing = &cost
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *Handler) Get(c *gin.Context) {
	b, ok := h.loadOwned(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, NewBookingResponse(b, h.service))
}

// Cost returns the live cost of an open booking or the frozen cost of a finished one.
func (h *Handler) Cost(c *gin.Context) {
	b, ok := h.loadOwned(c)
	if !ok {
		return
	}

	cost, err := h.service.GetLiveCost(c.Request.Context(), b.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewCostResponse(cost.Booking, cost.Snapshot, cost.Final))
}

// Cancel finalizes the booking. Cancelling a finished booking succeeds and
// returns it unchanged.
func (h *Handler) Cancel(c *gin.Context) {
	b, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var req CancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request body")
			return
		}
	}

	updated, err := h.service.CancelBooking(c.Request.Context(), b.ID, booking.CancellationReason(req.Reason))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(updated, h.service))
}

// Stats counts open bookings by how close they are to expiry.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, StatsResponse{
		Active:  stats.Active,
		Warning: stats.Warning,
		Expired: stats.Expired,
		Total:   stats.Total,
	})
}

// Expiring lists the caller's open bookings inside the expiry warning window.
func (h *Handler) Expiring(c *gin.Context) {
	bookings, err := h.service.ExpiringSoon(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = NewBookingResponse(b, h.service)
	}
	c.JSON(http.StatusOK, response.NewListResponse(items))
}
