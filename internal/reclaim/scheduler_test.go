package reclaim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nekogravitycat/parking-booking-backend/internal/billing"
	"github.com/nekogravitycat/parking-booking-backend/internal/booking"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/clock"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeBookings struct {
	mu      sync.Mutex
	machine *booking.Machine
	rows    map[string]*booking.Booking
	failIDs map[string]bool
	listErr error
	clock   clock.Clock
}

func newFakeBookings(clk clock.Clock) *fakeBookings {
	return &fakeBookings{
		machine: booking.NewMachine(billing.NewCalculator(15), time.Hour, 15*time.Minute),
		rows:    make(map[string]*booking.Booking),
		failIDs: make(map[string]bool),
		clock:   clk,
	}
}

func (f *fakeBookings) add(id string, createdAt time.Time, entry bool) {
	start := createdAt
	f.rows[id] = &booking.Booking{
		ID: id, Status: booking.StatusReserved, CreatedAt: createdAt,
		BillingStartedAt: &start, HardwareEntryDetected: entry, RatePerHour: 60,
	}
}

func (f *fakeBookings) ListOpen(context.Context) ([]*booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*booking.Booking
	for _, b := range f.rows {
		if !b.Status.IsTerminal() {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeBookings) ShouldExpire(b *booking.Booking, now time.Time) bool {
	return f.machine.ShouldExpire(b, now)
}

func (f *fakeBookings) Expire(_ context.Context, id string) (*booking.Booking, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[id] {
		return nil, false, booking.ErrStorageUnavailable
	}
	b := f.rows[id]
	next, err := f.machine.Apply(b, booking.Event{Trigger: booking.TriggerExpire, At: f.clock.Now()})
	if errors.Is(err, booking.ErrAlreadyTerminal) {
		return b, false, nil
	}
	if err != nil {
		return b, false, nil
	}
	f.rows[id] = next
	return next, true, nil
}

type heldLock struct{}

func (heldLock) Acquire(context.Context, string, time.Duration) (bool, func(), error) {
	return false, func() {}, nil
}

type countingPublisher struct {
	mu       sync.Mutex
	messages []Summary
}

func (p *countingPublisher) PublishJSON(_ context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if key == EventReclaimed {
		p.messages = append(p.messages, v.(Summary))
	}
	return nil
}

func TestRunOnce_ExpiryBoundary(t *testing.T) {
	clk := clock.NewFake(t0)
	bookings := newFakeBookings(clk)
	bookings.add("b1", t0, false)
	s := NewScheduler(bookings, clk, nil, nil, zap.NewNop(), time.Minute)

	clk.Set(t0.Add(59 * time.Minute))
	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, booking.StatusReserved, bookings.rows["b1"].Status)

	clk.Set(t0.Add(61 * time.Minute))
	n, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, booking.StatusCancelled, bookings.rows["b1"].Status)
	assert.Equal(t, booking.ReasonAutoExpired, *bookings.rows["b1"].CancellationReason)
}

func TestRunOnce_NoShowFinalCostAtCancellationInstant(t *testing.T) {
	clk := clock.NewFake(t0.Add(65 * time.Minute))
	bookings := newFakeBookings(clk)
	bookings.add("b1", t0, false)
	s := NewScheduler(bookings, clk, nil, nil, zap.NewNop(), time.Minute)

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	b := bookings.rows["b1"]
	assert.Equal(t, 65, *b.FinalBillableMinutes)
	assert.Equal(t, int64(65), *b.FinalCost)
	assert.Equal(t, t0.Add(65*time.Minute), b.EndTime)
}

func TestRunOnce_SkipsArrivedAndFresh(t *testing.T) {
	clk := clock.NewFake(t0.Add(3 * time.Hour))
	bookings := newFakeBookings(clk)
	bookings.add("arrived", t0, true)
	bookings.add("fresh", t0.Add(2*time.Hour+30*time.Minute), false)
	s := NewScheduler(bookings, clk, nil, nil, zap.NewNop(), time.Minute)

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRunOnce_PartialFailure(t *testing.T) {
	clk := clock.NewFake(t0.Add(2 * time.Hour))
	bookings := newFakeBookings(clk)
	bookings.add("a", t0, false)
	bookings.add("b", t0, false)
	bookings.add("c", t0, false)
	bookings.failIDs["b"] = true
	pub := &countingPublisher{}
	s := NewScheduler(bookings, clk, nil, pub, zap.NewNop(), time.Minute)

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, booking.StatusCancelled, bookings.rows["a"].Status)
	assert.Equal(t, booking.StatusReserved, bookings.rows["b"].Status)
	assert.Equal(t, booking.StatusCancelled, bookings.rows["c"].Status)

	require.Len(t, pub.messages, 1)
	assert.Equal(t, 2, pub.messages[0].Cancelled)
	assert.Equal(t, 1, pub.messages[0].Failed)
	assert.ElementsMatch(t, []string{"a", "c"}, pub.messages[0].BookingIDs)
}

func TestRunOnce_OverlappingPassesAreIdempotent(t *testing.T) {
	clk := clock.NewFake(t0.Add(2 * time.Hour))
	bookings := newFakeBookings(clk)
	for _, id := range []string{"a", "b", "c", "d"} {
		bookings.add(id, t0, false)
	}
	s := NewScheduler(bookings, clk, nil, nil, zap.NewNop(), time.Minute)

	var wg sync.WaitGroup
	totals := make(chan int, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.RunOnce(context.Background())
			assert.NoError(t, err)
			totals <- n
		}()
	}
	wg.Wait()
	close(totals)

	sum := 0
	for n := range totals {
		sum += n
	}
	assert.Equal(t, 4, sum)
}

func TestRunOnce_LeaseHeldElsewhere(t *testing.T) {
	clk := clock.NewFake(t0.Add(2 * time.Hour))
	bookings := newFakeBookings(clk)
	bookings.add("a", t0, false)
	s := NewScheduler(bookings, clk, heldLock{}, nil, zap.NewNop(), time.Minute)

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, booking.StatusReserved, bookings.rows["a"].Status)
}

func TestRunOnce_ListFailure(t *testing.T) {
	clk := clock.NewFake(t0)
	bookings := newFakeBookings(clk)
	bookings.listErr = booking.ErrStorageUnavailable
	s := NewScheduler(bookings, clk, nil, nil, zap.NewNop(), time.Minute)

	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, booking.ErrStorageUnavailable)
}

func TestStartStopAreIdempotent(t *testing.T) {
	s := NewScheduler(newFakeBookings(clock.NewFake(t0)), clock.NewFake(t0), nil, nil, zap.NewNop(), time.Hour)

	s.Stop()
	assert.False(t, s.Running())

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.True(t, s.Running())

	s.Stop()
	s.Stop()
	assert.False(t, s.Running())

	require.NoError(t, s.Start())
	assert.True(t, s.Running())
	s.Stop()
}
