package slot

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound     = apperror.New(http.StatusNotFound, "parking slot not found")
	ErrNotAvailable = apperror.New(http.StatusConflict, "parking slot is not available")

	ErrStorageUnavailable = apperror.New(http.StatusServiceUnavailable, "parking slot storage unavailable")
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusOccupied  Status = "occupied"
)

// Slot is a single parking space inside a park.
type Slot struct {
	ID           string
	ParkID       string
	ParkName     string
	Label        string
	Basement     int
	Status       Status
	PricePerHour float64 // from the owning park
	UpdatedAt    time.Time
}

// Congestion is the share of occupied slots in one park.
type Congestion struct {
	ParkID        string
	ParkName      string
	City          string
	TotalSlots    int
	OccupiedSlots int
	Level         int // 0..100
}
