package booking

import (
	"errors"
	"net/http"
	"time"

	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound           = apperror.New(http.StatusNotFound, "booking not found")
	ErrSlotUnavailable    = apperror.New(http.StatusConflict, "parking slot is not available")
	ErrInvalidArrivalTime = apperror.New(http.StatusBadRequest, "arrival time must be in HH:MM format")
	ErrInvalidDate        = apperror.New(http.StatusBadRequest, "date must be in YYYY-MM-DD format")
	ErrVehicleRequired    = apperror.New(http.StatusBadRequest, "vehicle number is required")
	ErrInvalidReason      = apperror.New(http.StatusBadRequest, "invalid cancellation reason")
	ErrInvalidSignal      = apperror.New(http.StatusBadRequest, "invalid hardware signal type")
	ErrInvalidInput       = apperror.New(http.StatusBadRequest, "invalid input parameters")
	ErrPermissionDenied   = apperror.New(http.StatusForbidden, "permission denied")

	ErrConflict            = apperror.New(http.StatusConflict, "booking was modified concurrently, please retry")
	ErrStorageUnavailable  = apperror.New(http.StatusServiceUnavailable, "booking storage unavailable")
	ErrMissingBillingStart = apperror.New(http.StatusInternalServerError, "booking has no billing start")

	// ErrAlreadyTerminal is returned by the state machine for any event on a
	// completed or cancelled booking. The service never surfaces it.
	ErrAlreadyTerminal = apperror.New(http.StatusConflict, "booking already finalized")
)

// errNoChange marks an event that is valid but leaves the booking untouched.
var errNoChange = errors.New("booking: no state change")

type Status string

const (
	StatusReserved  Status = "reserved"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// OpenStatuses are the states a slot is held in.
var OpenStatuses = []Status{StatusReserved, StatusActive}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) IsValid() bool {
	switch s {
	case StatusReserved, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type CancellationReason string

const (
	ReasonDriverCancel CancellationReason = "driver_cancel"
	ReasonAutoExpired  CancellationReason = "auto_expired"
	ReasonHardwareExit CancellationReason = "hardware_exit"
)

func (r CancellationReason) IsValid() bool {
	switch r {
	case ReasonDriverCancel, ReasonAutoExpired, ReasonHardwareExit:
		return true
	}
	return false
}

// SignalType is the kind of a hardware detection event.
type SignalType string

const (
	SignalEntry SignalType = "entry"
	SignalExit  SignalType = "exit"
)

// ExpiryState tells how close an open booking is to being reclaimed.
type ExpiryState string

const (
	ExpiryActive  ExpiryState = "active"
	ExpiryWarning ExpiryState = "warning"
	ExpiryExpired ExpiryState = "expired"
)

type Booking struct {
	ID            string
	SlotID        string
	SlotLabel     string
	ParkID        string
	ParkName      string
	UserID        string
	VehicleNumber string
	Status        Status

	CreatedAt        time.Time
	UpdatedAt        time.Time
	BillingStartedAt *time.Time
	StartTime        time.Time
	EndTime          time.Time

	HardwareEntryDetected bool
	HardwareExitDetected  bool
	CancellationReason    *CancellationReason

	// RatePerHour is the park's price copied at creation.
	RatePerHour float64

	// Frozen at the terminal transition.
	FinalBillableMinutes *int
	FinalCost            *int64
	FinalizedAt          *time.Time
}

// Filter narrows booking listings.
type Filter struct {
	UserID   string
	Statuses []Status
	Page     int
	PageSize int
}

// Stats counts open bookings by expiry state.
type Stats struct {
	Active  int
	Warning int
	Expired int
	Total   int
}
