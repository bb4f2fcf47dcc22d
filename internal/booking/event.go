package booking

import (
	"context"
	"time"
)

// Routing keys of lifecycle events.
const (
	EventCreated   = "booking.created"
	EventActivated = "booking.activated"
	EventCompleted = "booking.completed"
	EventCancelled = "booking.cancelled"
)

// Publisher delivers lifecycle events to interested consumers.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// LifecycleEvent is the payload published on every state change.
type LifecycleEvent struct {
	BookingID            string     `json:"booking_id"`
	SlotID               string     `json:"slot_id"`
	ParkID               string     `json:"park_id"`
	UserID               string     `json:"user_id"`
	VehicleNumber        string     `json:"vehicle_number"`
	Status               Status     `json:"status"`
	CancellationReason   string     `json:"cancellation_reason,omitempty"`
	FinalBillableMinutes *int       `json:"final_billable_minutes,omitempty"`
	FinalCost            *int64     `json:"final_cost,omitempty"`
	FinalizedAt          *time.Time `json:"finalized_at,omitempty"`
	OccurredAt           time.Time  `json:"occurred_at"`
}

func newLifecycleEvent(b *Booking) LifecycleEvent {
	ev := LifecycleEvent{
		BookingID:            b.ID,
		SlotID:               b.SlotID,
		ParkID:               b.ParkID,
		UserID:               b.UserID,
		VehicleNumber:        b.VehicleNumber,
		Status:               b.Status,
		FinalBillableMinutes: b.FinalBillableMinutes,
		FinalCost:            b.FinalCost,
		FinalizedAt:          b.FinalizedAt,
		OccurredAt:           b.UpdatedAt,
	}
	if b.CancellationReason != nil {
		ev.CancellationReason = string(*b.CancellationReason)
	}
	return ev
}

func eventKey(s Status) string {
	switch s {
	case StatusActive:
		return EventActivated
	case StatusCompleted:
		return EventCompleted
	case StatusCancelled:
		return EventCancelled
	default:
		return EventCreated
	}
}
