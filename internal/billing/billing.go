// Package billing computes per-minute parking charges.
//
// Billing is a pure function of the billing-start instant, the hourly rate and
// the evaluation instant. Every caller that needs a cost (live queries, terminal
// snapshots, previews) goes through Calculator.Compute.
package billing

import (
	"math"
	"time"

	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/clock"
)

// DefaultMinimumMinutes is the minimum billing interval.
const DefaultMinimumMinutes = 15

// Snapshot is a derived, never persisted, billing value.
type Snapshot struct {
	BillableMinutes int
	ElapsedMinutes  int
	RatePerHour     float64
	RatePerMinute   float64
	Cost            int64
	EvaluatedAt     time.Time
}

type Calculator struct {
	minimumMinutes int
}

// NewCalculator returns a Calculator flooring billable time at minimumMinutes.
// Non-positive values fall back to DefaultMinimumMinutes.
func NewCalculator(minimumMinutes int) *Calculator {
	if minimumMinutes <= 0 {
		minimumMinutes = DefaultMinimumMinutes
	}
	return &Calculator{minimumMinutes: minimumMinutes}
}

func (c *Calculator) MinimumMinutes() int {
	return c.minimumMinutes
}

// Compute returns the charge for parking billed from billingStartedAt until at.
// An evaluation instant before the billing start is billed at the minimum.
func (c *Calculator) Compute(billingStartedAt time.Time, ratePerHour float64, at time.Time) Snapshot {
	elapsed := clock.ElapsedMinutes(billingStartedAt, at)
	billable := max(elapsed, c.minimumMinutes)

	return Snapshot{
		BillableMinutes: billable,
		ElapsedMinutes:  elapsed,
		RatePerHour:     ratePerHour,
		RatePerMinute:   ratePerHour / 60,
		Cost:            roundHalfUp(float64(billable) * ratePerHour / 60),
		EvaluatedAt:     at,
	}
}

func roundHalfUp(v float64) int64 {
	if v <= 0 {
		return 0
	}
	return int64(math.Floor(v + 0.5))
}
