package http

import (
	"time"

	"github.com/nekogravitycat/parking-booking-backend/internal/billing"
	"github.com/nekogravitycat/parking-booking-backend/internal/booking"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/request"
)

// ListBookingsRequest defines query parameters for listing the caller's bookings.
// Status "open" selects reserved and active bookings.
type ListBookingsRequest struct {
	request.ListParams
	Status string `form:"status" binding:"omitempty,oneof=open reserved active completed cancelled"`
}

func (r *ListBookingsRequest) Statuses() []booking.Status {
	switch r.Status {
	case "":
		return nil
	case "open":
		return booking.OpenStatuses
	default:
		return []booking.Status{booking.Status(r.Status)}
	}
}

type CreateBookingRequest struct {
	SlotID        string `json:"slot_id" binding:"required,uuid"`
	VehicleNumber string `json:"vehicle_number" binding:"required,max=20"`
	ArrivalTime   string `json:"arrival_time" binding:"required"`
	Date          string `json:"date"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" binding:"omitempty,oneof=driver_cancel"`
}

type SlotTag struct {
	ID    string `json:"id"`
	Label string `json:"slot_number"`
}

type ParkTag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type BookingResponse struct {
	ID                    string     `json:"id"`
	Slot                  SlotTag    `json:"slot"`
	Park                  ParkTag    `json:"park"`
	UserID                string     `json:"user_id"`
	VehicleNumber         string     `json:"vehicle_number"`
	Status                string     `json:"status"`
	CreatedAt             time.Time  `json:"created_at"`
	CreatedAtIST          string     `json:"created_at_ist"`
	UpdatedAt             time.Time  `json:"updated_at"`
	BillingStartedAt      *time.Time `json:"billing_started_at"`
	StartTime             time.Time  `json:"start_time"`
	StartTimeIST          string     `json:"start_time_ist"`
	EndTime               time.Time  `json:"end_time"`
	EndTimeIST            string     `json:"end_time_ist"`
	HardwareEntryDetected bool       `json:"hardware_entry_detected"`
	HardwareExitDetected  bool       `json:"hardware_exit_detected"`
	CancellationReason    *string    `json:"cancellation_reason"`
	RatePerHour           float64    `json:"rate_per_hour"`
	FinalBillableMinutes  *int       `json:"final_billable_minutes,omitempty"`
	FinalCost             *int64     `json:"final_cost,omitempty"`
	FinalizedAt           *time.Time `json:"finalized_at,omitempty"`

	// Open bookings only.
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ExpiryState string     `json:"expiry_state,omitempty"`
}

func NewBookingResponse(b *booking.Booking, svc booking.Service) BookingResponse {
	resp := BookingResponse{
		ID:                    b.ID,
		Slot:                  SlotTag{ID: b.SlotID, Label: b.SlotLabel},
		Park:                  ParkTag{ID: b.ParkID, Name: b.ParkName},
		UserID:                b.UserID,
		VehicleNumber:         b.VehicleNumber,
		Status:                string(b.Status),
		CreatedAt:             b.CreatedAt,
		CreatedAtIST:          clock.FormatIST(b.CreatedAt),
		UpdatedAt:             b.UpdatedAt,
		BillingStartedAt:      b.BillingStartedAt,
		StartTime:             b.StartTime,
		StartTimeIST:          clock.FormatIST(b.StartTime),
		EndTime:               b.EndTime,
		EndTimeIST:            clock.FormatIST(b.EndTime),
		HardwareEntryDetected: b.HardwareEntryDetected,
		HardwareExitDetected:  b.HardwareExitDetected,
		RatePerHour:           b.RatePerHour,
		FinalBillableMinutes:  b.FinalBillableMinutes,
		FinalCost:             b.FinalCost,
		FinalizedAt:           b.FinalizedAt,
	}
	if b.CancellationReason != nil {
		reason := string(*b.CancellationReason)
		resp.CancellationReason = &reason
	}
	if !b.Status.IsTerminal() && !b.HardwareEntryDetected {
		expiresAt := svc.ExpiresAt(b)
		resp.ExpiresAt = &expiresAt
	}
	if !b.Status.IsTerminal() {
		resp.ExpiryState = string(svc.ExpiryState(b))
	}
	return resp
}

type CostResponse struct {
	BookingID       string    `json:"booking_id"`
	Status          string    `json:"status"`
	BillableMinutes int       `json:"billable_minutes"`
	ElapsedMinutes  int       `json:"elapsed_minutes"`
	ElapsedDisplay  string    `json:"elapsed_display"`
	RatePerHour     float64   `json:"rate_per_hour"`
	RatePerMinute   float64   `json:"rate_per_minute"`
	Cost            int64     `json:"cost"`
	Final           bool      `json:"final"`
	EvaluatedAt     time.Time `json:"evaluated_at"`
	EvaluatedAtIST  string    `json:"evaluated_at_ist"`
}

func NewCostResponse(b *booking.Booking, snap billing.Snapshot, final bool) CostResponse {
	return CostResponse{
		BookingID:       b.ID,
		Status:          string(b.Status),
		BillableMinutes: snap.BillableMinutes,
		ElapsedMinutes:  snap.ElapsedMinutes,
		ElapsedDisplay:  clock.FormatDuration(snap.ElapsedMinutes),
		RatePerHour:     snap.RatePerHour,
		RatePerMinute:   snap.RatePerMinute,
		Cost:            snap.Cost,
		Final:           final,
		EvaluatedAt:     snap.EvaluatedAt,
		EvaluatedAtIST:  clock.FormatIST(snap.EvaluatedAt),
	}
}

// BookingWithBillingResponse pairs a booking with its current billing snapshot.
type BookingWithBillingResponse struct {
	BookingResponse
	Billing *CostResponse `json:"billing"`
}

type StatsResponse struct {
	Active  int `json:"active"`
	Warning int `json:"warning"`
	Expired int `json:"expired"`
	Total   int `json:"total"`
}
