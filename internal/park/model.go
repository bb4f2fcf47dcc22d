package park

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound = apperror.New(http.StatusNotFound, "parking location not found")
)

// Park is a parking location drivers can browse and book slots in.
type Park struct {
	ID             string
	Name           string
	City           string
	Address        string
	PricePerHour   float64
	Longitude      float64
	Latitude       float64
	TotalSlots     int
	AvailableSlots int
	CreatedAt      time.Time
}

// Filter defines parameters for listing parks.
type Filter struct {
	City     string
	Keyword  string // Search in Name or Address
	Page     int
	PageSize int
}
