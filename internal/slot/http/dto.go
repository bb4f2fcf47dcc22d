package http

import (
	"time"

	"github.com/nekogravitycat/parking-booking-backend/internal/slot"
)

type ListSlotsRequest struct {
	ParkID   string `uri:"id" binding:"required,uuid"`
	Basement *int   `form:"basement" binding:"omitempty,min=0"`
}

type SlotResponse struct {
	ID           string    `json:"id"`
	ParkID       string    `json:"park_id"`
	Label        string    `json:"slot_number"`
	Basement     int       `json:"basement_number"`
	Status       string    `json:"status"`
	PricePerHour float64   `json:"price_per_hour"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewSlotResponse(s *slot.Slot) SlotResponse {
	return SlotResponse{
		ID:           s.ID,
		ParkID:       s.ParkID,
		Label:        s.Label,
		Basement:     s.Basement,
		Status:       string(s.Status),
		PricePerHour: s.PricePerHour,
		UpdatedAt:    s.UpdatedAt,
	}
}

type CongestionResponse struct {
	ParkID        string `json:"park_id"`
	ParkName      string `json:"park_name"`
	City          string `json:"city"`
	TotalSlots    int    `json:"total_slots"`
	OccupiedSlots int    `json:"occupied_slots"`
	Level         int    `json:"congestion_level"`
}

func NewCongestionResponse(c *slot.Congestion) CongestionResponse {
	return CongestionResponse{
		ParkID:        c.ParkID,
		ParkName:      c.ParkName,
		City:          c.City,
		TotalSlots:    c.TotalSlots,
		OccupiedSlots: c.OccupiedSlots,
		Level:         c.Level,
	}
}
