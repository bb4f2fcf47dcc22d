package http

import (
	"time"

	"github.com/nekogravitycat/parking-booking-backend/internal/park"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/request"
)

// ListParksRequest defines query parameters for listing parks.
type ListParksRequest struct {
	request.ListParams
	City    string `form:"city"`
	Keyword string `form:"q"`
}

type ParkResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	City           string    `json:"city"`
	Address        string    `json:"address"`
	PricePerHour   float64   `json:"price_per_hour"`
	PricePerMinute float64   `json:"price_per_minute"`
	Longitude      float64   `json:"longitude"`
	Latitude       float64   `json:"latitude"`
	TotalSlots     int       `json:"total_slots"`
	AvailableSlots int       `json:"available_slots"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewParkResponse(p *park.Park) ParkResponse {
	return ParkResponse{
		ID:             p.ID,
		Name:           p.Name,
		City:           p.City,
		Address:        p.Address,
		PricePerHour:   p.PricePerHour,
		PricePerMinute: p.PricePerHour / 60,
		Longitude:      p.Longitude,
		Latitude:       p.Latitude,
		TotalSlots:     p.TotalSlots,
		AvailableSlots: p.AvailableSlots,
		CreatedAt:      p.CreatedAt,
	}
}
