package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/parking-booking-backend/internal/billing"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestMachine() *Machine {
	return NewMachine(billing.NewCalculator(15), 60*time.Minute, 15*time.Minute)
}

func reservedBooking() *Booking {
	start := t0
	return &Booking{
		ID:               "b1",
		SlotID:           "s1",
		Status:           StatusReserved,
		CreatedAt:        t0,
		UpdatedAt:        t0,
		BillingStartedAt: &start,
		StartTime:        t0,
		EndTime:          t0.Add(24 * time.Hour),
		RatePerHour:      120,
	}
}

func TestMachine_Entry(t *testing.T) {
	m := newTestMachine()
	b := reservedBooking()

	next, err := m.Apply(b, Event{Trigger: TriggerEntry, At: t0.Add(5 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, next.Status)
	assert.True(t, next.HardwareEntryDetected)
	assert.Equal(t, StatusReserved, b.Status, "input must not be modified")

	_, err = m.Apply(next, Event{Trigger: TriggerEntry, At: t0.Add(6 * time.Minute)})
	assert.ErrorIs(t, err, errNoChange)
}

func TestMachine_ExitOnReservedCollapsesToCompleted(t *testing.T) {
	m := newTestMachine()
	at := t0.Add(10 * time.Minute)

	next, err := m.Apply(reservedBooking(), Event{Trigger: TriggerExit, At: at})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, next.Status)
	assert.True(t, next.HardwareEntryDetected)
	assert.True(t, next.HardwareExitDetected)
	assert.Equal(t, at, next.EndTime)
	assert.Nil(t, next.CancellationReason)
	require.NotNil(t, next.FinalCost)
	assert.Equal(t, 15, *next.FinalBillableMinutes)
	assert.Equal(t, int64(30), *next.FinalCost)
	assert.Equal(t, at, *next.FinalizedAt)
}

func TestMachine_Cancel(t *testing.T) {
	m := newTestMachine()
	at := t0.Add(45 * time.Minute)

	next, err := m.Apply(reservedBooking(), Event{Trigger: TriggerCancel, At: at})
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, next.Status)
	require.NotNil(t, next.CancellationReason)
	assert.Equal(t, ReasonDriverCancel, *next.CancellationReason)
	assert.Equal(t, int64(90), *next.FinalCost)
	assert.Equal(t, at, next.EndTime)
	require.NotNil(t, next.BillingStartedAt, "billing start is kept for audit")

	_, err = m.Apply(reservedBooking(), Event{Trigger: TriggerCancel, At: at, Reason: "bored"})
	assert.ErrorIs(t, err, ErrInvalidReason)
}

func TestMachine_ExpireBoundary(t *testing.T) {
	m := newTestMachine()

	_, err := m.Apply(reservedBooking(), Event{Trigger: TriggerExpire, At: t0.Add(59 * time.Minute)})
	assert.ErrorIs(t, err, errNoChange)

	_, err = m.Apply(reservedBooking(), Event{Trigger: TriggerExpire, At: t0.Add(60 * time.Minute)})
	assert.ErrorIs(t, err, errNoChange, "exactly at the window is not yet expired")

	next, err := m.Apply(reservedBooking(), Event{Trigger: TriggerExpire, At: t0.Add(61 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, next.Status)
	assert.Equal(t, ReasonAutoExpired, *next.CancellationReason)
	assert.Equal(t, 61, *next.FinalBillableMinutes)
	assert.Equal(t, int64(122), *next.FinalCost)
}

func TestMachine_EntryPreventsExpiry(t *testing.T) {
	m := newTestMachine()
	active, err := m.Apply(reservedBooking(), Event{Trigger: TriggerEntry, At: t0.Add(time.Minute)})
	require.NoError(t, err)

	assert.False(t, m.ShouldExpire(active, t0.Add(5*time.Hour)))
	_, err = m.Apply(active, Event{Trigger: TriggerExpire, At: t0.Add(5 * time.Hour)})
	assert.ErrorIs(t, err, errNoChange)
}

func TestMachine_TerminalIsFinal(t *testing.T) {
	m := newTestMachine()
	done, err := m.Apply(reservedBooking(), Event{Trigger: TriggerCancel, At: t0.Add(20 * time.Minute)})
	require.NoError(t, err)

	for _, trig := range []Trigger{TriggerEntry, TriggerExit, TriggerCancel, TriggerExpire} {
		_, err := m.Apply(done, Event{Trigger: trig, At: t0.Add(3 * time.Hour)})
		assert.ErrorIs(t, err, ErrAlreadyTerminal, "trigger %s", trig)
	}
}

func TestMachine_MissingBillingStart(t *testing.T) {
	m := newTestMachine()
	b := reservedBooking()
	b.BillingStartedAt = nil

	_, err := m.Apply(b, Event{Trigger: TriggerCancel, At: t0})
	assert.ErrorIs(t, err, ErrMissingBillingStart)

	_, _, err = m.Billing(b, t0)
	assert.ErrorIs(t, err, ErrMissingBillingStart)
}

func TestMachine_FinalizeBeforeBillingStartIsClamped(t *testing.T) {
	m := newTestMachine()

	next, err := m.Apply(reservedBooking(), Event{Trigger: TriggerExit, At: t0.Add(-time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, t0, next.EndTime)
	assert.Equal(t, 15, *next.FinalBillableMinutes)
}

func TestMachine_ExpiryState(t *testing.T) {
	m := newTestMachine()
	b := reservedBooking()

	tests := []struct {
		age  time.Duration
		want ExpiryState
	}{
		{0, ExpiryActive},
		{44 * time.Minute, ExpiryActive},
		{45 * time.Minute, ExpiryWarning},
		{60 * time.Minute, ExpiryWarning},
		{61 * time.Minute, ExpiryExpired},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.ExpiryState(b, t0.Add(tt.age)), "age %s", tt.age)
	}

	b.HardwareEntryDetected = true
	assert.Equal(t, ExpiryActive, m.ExpiryState(b, t0.Add(2*time.Hour)))
}

func TestMachine_BillingFrozenAfterTerminal(t *testing.T) {
	m := newTestMachine()
	done, err := m.Apply(reservedBooking(), Event{Trigger: TriggerCancel, At: t0.Add(45 * time.Minute)})
	require.NoError(t, err)

	snap, final, err := m.Billing(done, t0.Add(10*time.Hour))
	require.NoError(t, err)
	assert.True(t, final)
	assert.Equal(t, int64(90), snap.Cost)
	assert.Equal(t, 45, snap.BillableMinutes)

	snap, final, err = m.Billing(reservedBooking(), t0.Add(40*time.Minute))
	require.NoError(t, err)
	assert.False(t, final)
	assert.Equal(t, int64(80), snap.Cost)
}

func TestMachine_UpdatedAtUsesRecordedInstant(t *testing.T) {
	m := newTestMachine()
	b := reservedBooking()
	b.UpdatedAt = t0.Add(2 * time.Minute)
	recorded := t0.Add(20 * time.Minute)
	detected := t0.Add(-5 * time.Minute) // device clock running behind

	next, err := m.Apply(b, Event{Trigger: TriggerExit, At: detected, RecordedAt: recorded})
	require.NoError(t, err)
	assert.Equal(t, recorded, next.UpdatedAt)
	assert.Equal(t, t0, next.EndTime, "end time clamps to billing start, not the record instant")

	entered, err := m.Apply(b, Event{Trigger: TriggerEntry, At: detected})
	require.NoError(t, err)
	assert.Equal(t, b.UpdatedAt, entered.UpdatedAt, "updated_at never moves backwards")
}
