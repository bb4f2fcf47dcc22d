package booking

import (
	"time"

	"github.com/nekogravitycat/parking-booking-backend/internal/billing"
)

// Trigger is an event that can move a booking between states.
type Trigger string

const (
	TriggerEntry  Trigger = "entry"
	TriggerExit   Trigger = "exit"
	TriggerCancel Trigger = "cancel"
	TriggerExpire Trigger = "expire"
)

// Event is one trigger. At is when it happened, which for hardware signals is
// the device's detection instant. RecordedAt is the server time the event is
// applied and becomes UpdatedAt; zero means At.
type Event struct {
	Trigger    Trigger
	At         time.Time
	RecordedAt time.Time
	Reason     CancellationReason // TriggerCancel only
}

// Machine owns the lifecycle rules of a single booking:
//
//	reserved --entry--> active
//	reserved|active --exit--> completed
//	reserved|active --cancel--> cancelled
//	reserved|active --expire--> cancelled (auto_expired, no entry, past window)
//
// completed and cancelled are terminal.
type Machine struct {
	calc    *billing.Calculator
	window  time.Duration
	warning time.Duration
}

func NewMachine(calc *billing.Calculator, expiryWindow, expiryWarning time.Duration) *Machine {
	return &Machine{
		calc:    calc,
		window:  expiryWindow,
		warning: expiryWarning,
	}
}

// Apply returns a copy of b with ev applied. b itself is never modified.
//
// It fails with ErrAlreadyTerminal for terminal bookings, ErrMissingBillingStart
// when the billing start is absent, and errNoChange when the event is valid
// but has nothing to do (a repeated entry signal, an expire that is not due).
func (m *Machine) Apply(b *Booking, ev Event) (*Booking, error) {
	if b.Status.IsTerminal() {
		return nil, ErrAlreadyTerminal
	}
	if b.BillingStartedAt == nil {
		return nil, ErrMissingBillingStart
	}

	next := *b
	next.UpdatedAt = ev.RecordedAt
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = ev.At
	}
	if next.UpdatedAt.Before(b.UpdatedAt) {
		next.UpdatedAt = b.UpdatedAt
	}

	switch ev.Trigger {
	case TriggerEntry:
		if b.Status == StatusActive && b.HardwareEntryDetected {
			return nil, errNoChange
		}
		next.Status = StatusActive
		next.HardwareEntryDetected = true

	case TriggerExit:
		// Hardware may report entry and exit within one polling interval,
		// so an exit on a reserved booking implies the entry.
		next.HardwareEntryDetected = true
		next.HardwareExitDetected = true
		m.finalize(&next, StatusCompleted, "", ev.At)

	case TriggerCancel:
		reason := ev.Reason
		if reason == "" {
			reason = ReasonDriverCancel
		}
		if !reason.IsValid() {
			return nil, ErrInvalidReason
		}
		m.finalize(&next, StatusCancelled, reason, ev.At)

	case TriggerExpire:
		if !m.ShouldExpire(b, ev.At) {
			return nil, errNoChange
		}
		m.finalize(&next, StatusCancelled, ReasonAutoExpired, ev.At)

	default:
		return nil, ErrInvalidInput
	}

	return &next, nil
}

func (m *Machine) finalize(b *Booking, status Status, reason CancellationReason, at time.Time) {
	if at.Before(*b.BillingStartedAt) {
		at = *b.BillingStartedAt
	}

	snap := m.calc.Compute(*b.BillingStartedAt, b.RatePerHour, at)
	minutes := snap.BillableMinutes
	cost := snap.Cost
	finalizedAt := at

	b.Status = status
	b.EndTime = at
	b.FinalBillableMinutes = &minutes
	b.FinalCost = &cost
	b.FinalizedAt = &finalizedAt
	if reason != "" {
		r := reason
		b.CancellationReason = &r
	}
}

// ShouldExpire reports whether the reclamation guard holds for b at now:
// still open, no entry detected, and older than the expiry window.
func (m *Machine) ShouldExpire(b *Booking, now time.Time) bool {
	if b.Status.IsTerminal() || b.HardwareEntryDetected {
		return false
	}
	return now.Sub(b.CreatedAt) > m.window
}

// ExpiryState classifies an open booking. Bookings with a detected entry
// never expire and are always ExpiryActive.
func (m *Machine) ExpiryState(b *Booking, now time.Time) ExpiryState {
	if b.HardwareEntryDetected {
		return ExpiryActive
	}
	age := now.Sub(b.CreatedAt)
	switch {
	case age > m.window:
		return ExpiryExpired
	case age >= m.window-m.warning:
		return ExpiryWarning
	default:
		return ExpiryActive
	}
}

// ExpiresAt is the instant after which b becomes eligible for reclamation.
func (m *Machine) ExpiresAt(b *Booking) time.Time {
	return b.CreatedAt.Add(m.window)
}

// Billing returns the live snapshot of an open booking at the given instant,
// or the frozen snapshot of a terminal one.
func (m *Machine) Billing(b *Booking, at time.Time) (billing.Snapshot, bool, error) {
	if b.BillingStartedAt == nil {
		return billing.Snapshot{}, false, ErrMissingBillingStart
	}

	if b.Status.IsTerminal() {
		if b.FinalCost != nil && b.FinalBillableMinutes != nil && b.FinalizedAt != nil {
			snap := m.calc.Compute(*b.BillingStartedAt, b.RatePerHour, *b.FinalizedAt)
			snap.BillableMinutes = *b.FinalBillableMinutes
			snap.Cost = *b.FinalCost
			return snap, true, nil
		}
		// Rows finalized without a snapshot are billed up to their end time.
		return m.calc.Compute(*b.BillingStartedAt, b.RatePerHour, b.EndTime), true, nil
	}

	return m.calc.Compute(*b.BillingStartedAt, b.RatePerHour, at), false, nil
}
