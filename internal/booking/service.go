package booking

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nekogravitycat/parking-booking-backend/internal/billing"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/parking-booking-backend/internal/slot"
)

var arrivalTimePattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

// SlotInventory is the slot collaborator. It owns availability and must flip
// slot status atomically.
type SlotInventory interface {
	GetByID(ctx context.Context, id string) (*slot.Slot, error)
	MarkOccupied(ctx context.Context, id string) error
	MarkAvailable(ctx context.Context, id string) error
}

type CreateRequest struct {
	UserID        string
	SlotID        string
	VehicleNumber string
	ArrivalTime   string // HH:MM, IST
	Date          string // YYYY-MM-DD, IST; empty means today
}

// Cost is the billing view of a booking. Final is set for terminal bookings,
// whose snapshot was frozen at the terminal transition.
type Cost struct {
	Booking  *Booking
	Snapshot billing.Snapshot
	Final    bool
}

type Service interface {
	CreateBooking(ctx context.Context, req CreateRequest) (*Booking, error)
	GetLiveCost(ctx context.Context, id string) (*Cost, error)

	// CancelBooking is idempotent: cancelling a terminal booking returns it unchanged.
	CancelBooking(ctx context.Context, id string, reason CancellationReason) (*Booking, error)

	IngestHardwareSignal(ctx context.Context, id string, signal SignalType, at time.Time) (*Booking, error)

	// Expire cancels an open booking past its expiry window. It reports
	// whether this call performed the cancellation.
	Expire(ctx context.Context, id string) (*Booking, bool, error)

	GetByID(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)
	ListOpen(ctx context.Context) ([]*Booking, error)
	ShouldExpire(b *Booking, now time.Time) bool
	Billing(b *Booking) (billing.Snapshot, bool, error)
	ExpiryState(b *Booking) ExpiryState
	ExpiresAt(b *Booking) time.Time
	Stats(ctx context.Context) (*Stats, error)

	// ExpiringSoon lists userID's open bookings inside the expiry warning window.
	ExpiringSoon(ctx context.Context, userID string) ([]*Booking, error)
}

type service struct {
	repo          Repository
	slots         SlotInventory
	machine       *Machine
	clock         clock.Clock
	publisher     Publisher
	logger        *zap.Logger
	provisionalTo time.Duration
}

// Options tunes the lifecycle rules. Zero values fall back to defaults.
type Options struct {
	MinBillingMinutes    int
	ExpiryWindow         time.Duration
	ExpiryWarning        time.Duration
	ProvisionalEndOffset time.Duration
}

func (o Options) withDefaults() Options {
	if o.ExpiryWindow <= 0 {
		o.ExpiryWindow = 60 * time.Minute
	}
	if o.ExpiryWarning <= 0 || o.ExpiryWarning > o.ExpiryWindow {
		o.ExpiryWarning = 15 * time.Minute
	}
	if o.ProvisionalEndOffset <= 0 {
		o.ProvisionalEndOffset = 24 * time.Hour
	}
	return o
}

func NewService(
	repo Repository,
	slots SlotInventory,
	clk clock.Clock,
	publisher Publisher,
	logger *zap.Logger,
	opts Options,
) Service {
	opts = opts.withDefaults()
	return &service{
		repo:          repo,
		slots:         slots,
		machine:       NewMachine(billing.NewCalculator(opts.MinBillingMinutes), opts.ExpiryWindow, opts.ExpiryWarning),
		clock:         clk,
		publisher:     publisher,
		logger:        logger.Named("booking"),
		provisionalTo: opts.ProvisionalEndOffset,
	}
}

func (s *service) CreateBooking(ctx context.Context, req CreateRequest) (*Booking, error) {
	// 1. Validate input
	vehicle := strings.ToUpper(strings.TrimSpace(req.VehicleNumber))
	if vehicle == "" {
		return nil, ErrVehicleRequired
	}
	arrival := strings.TrimSpace(req.ArrivalTime)
	if !arrivalTimePattern.MatchString(arrival) {
		return nil, ErrInvalidArrivalTime
	}

	now := s.clock.Now()
	startTime, err := parseArrival(req.Date, arrival, now)
	if err != nil {
		return nil, err
	}

	// 2. Resolve the slot and its rate
	sl, err := s.slots.GetByID(ctx, req.SlotID)
	if err != nil {
		return nil, slotError(err)
	}

	// 3. Claim the slot
	if err := s.slots.MarkOccupied(ctx, sl.ID); err != nil {
		return nil, slotError(err)
	}

	// 4. Persist with the meter already running
	billingStart := now
	b := &Booking{
		ID:               uuid.NewString(),
		SlotID:           sl.ID,
		SlotLabel:        sl.Label,
		ParkID:           sl.ParkID,
		ParkName:         sl.ParkName,
		UserID:           req.UserID,
		VehicleNumber:    vehicle,
		Status:           StatusReserved,
		CreatedAt:        now,
		UpdatedAt:        now,
		BillingStartedAt: &billingStart,
		StartTime:        startTime,
		EndTime:          startTime.Add(s.provisionalTo),
		RatePerHour:      sl.PricePerHour,
	}

	if err := s.repo.Insert(ctx, b); err != nil {
		if relErr := s.slots.MarkAvailable(ctx, sl.ID); relErr != nil {
			s.logger.Error("release slot after failed insert", zap.String("slot_id", sl.ID), zap.Error(relErr))
		}
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("slot_id", b.SlotID),
		zap.String("user_id", b.UserID),
	)
	s.publish(ctx, b)
	return b, nil
}

// slotError maps slot inventory failures onto the booking error taxonomy.
func slotError(err error) error {
	switch {
	case errors.Is(err, slot.ErrNotAvailable):
		return ErrSlotUnavailable
	case errors.Is(err, slot.ErrStorageUnavailable):
		return errors.Join(ErrStorageUnavailable, err)
	}
	return err
}

// parseArrival combines an optional IST date with an HH:MM arrival time.
func parseArrival(date, arrival string, now time.Time) (time.Time, error) {
	day := clock.BeginningOfDay(now)
	if date != "" {
		d, err := time.ParseInLocation(time.DateOnly, date, clock.IST)
		if err != nil {
			return time.Time{}, ErrInvalidDate
		}
		day = d
	}

	t, err := time.Parse("15:04", arrival)
	if err != nil {
		return time.Time{}, ErrInvalidArrivalTime
	}
	return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute).UTC(), nil
}

func (s *service) GetLiveCost(ctx context.Context, id string) (*Cost, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	snap, final, err := s.Billing(b)
	if err != nil {
		s.logger.Error("booking has no billing start", zap.String("booking_id", b.ID))
		return nil, err
	}
	return &Cost{Booking: b, Snapshot: snap, Final: final}, nil
}

func (s *service) CancelBooking(ctx context.Context, id string, reason CancellationReason) (*Booking, error) {
	if reason == "" {
		reason = ReasonDriverCancel
	}
	if !reason.IsValid() {
		return nil, ErrInvalidReason
	}

	b, _, err := s.transition(ctx, id, func() Event {
		return Event{Trigger: TriggerCancel, At: s.clock.Now(), Reason: reason}
	})
	return b, err
}

func (s *service) IngestHardwareSignal(ctx context.Context, id string, signal SignalType, at time.Time) (*Booking, error) {
	var trigger Trigger
	switch signal {
	case SignalEntry:
		trigger = TriggerEntry
	case SignalExit:
		trigger = TriggerExit
	default:
		return nil, ErrInvalidSignal
	}

	b, _, err := s.transition(ctx, id, func() Event {
		now := s.clock.Now()
		// Device clocks are not trusted to be ahead of ours.
		detected := at
		if detected.IsZero() || detected.After(now) {
			detected = now
		}
		return Event{Trigger: trigger, At: detected, RecordedAt: now}
	})
	return b, err
}

func (s *service) Expire(ctx context.Context, id string) (*Booking, bool, error) {
	return s.transition(ctx, id, func() Event {
		return Event{Trigger: TriggerExpire, At: s.clock.Now()}
	})
}

// transition applies one event with compare-and-set semantics on the current
// status. A conflicting write is retried once against a fresh read; events
// landing on a terminal booking are logged and ignored.
func (s *service) transition(ctx context.Context, id string, event func() Event) (*Booking, bool, error) {
	for attempt := 0; ; attempt++ {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, false, err
		}

		ev := event()
		next, err := s.machine.Apply(current, ev)
		switch {
		case errors.Is(err, ErrAlreadyTerminal):
			s.logger.Info("ignoring event on finalized booking",
				zap.String("booking_id", id),
				zap.String("trigger", string(ev.Trigger)),
				zap.String("status", string(current.Status)),
			)
			return current, false, nil
		case errors.Is(err, errNoChange):
			return current, false, nil
		case err != nil:
			return nil, false, err
		}

		err = s.repo.UpdateStatus(ctx, next, current.Status)
		if err == nil {
			s.afterTransition(ctx, current, next)
			return next, true, nil
		}
		if errors.Is(err, ErrConflict) && attempt == 0 {
			s.logger.Warn("booking changed concurrently, retrying",
				zap.String("booking_id", id),
				zap.String("trigger", string(ev.Trigger)),
			)
			continue
		}
		return nil, false, err
	}
}

func (s *service) afterTransition(ctx context.Context, prev, next *Booking) {
	fields := []zap.Field{
		zap.String("booking_id", next.ID),
		zap.String("from", string(prev.Status)),
		zap.String("to", string(next.Status)),
	}
	if next.FinalCost != nil {
		fields = append(fields, zap.Int64("final_cost", *next.FinalCost))
	}
	if next.CancellationReason != nil {
		fields = append(fields, zap.String("reason", string(*next.CancellationReason)))
	}
	s.logger.Info("booking transitioned", fields...)

	if next.Status.IsTerminal() {
		if err := s.slots.MarkAvailable(ctx, next.SlotID); err != nil {
			s.logger.Error("release slot failed", zap.String("slot_id", next.SlotID), zap.Error(err))
		}
	}
	s.publish(ctx, next)
}

func (s *service) publish(ctx context.Context, b *Booking) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishJSON(ctx, eventKey(b.Status), newLifecycleEvent(b)); err != nil {
		s.logger.Warn("publish booking event failed", zap.String("booking_id", b.ID), zap.Error(err))
	}
}

func (s *service) GetByID(ctx context.Context, id string) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	for _, st := range filter.Statuses {
		if !st.IsValid() {
			return nil, 0, ErrInvalidInput
		}
	}
	return s.repo.List(ctx, filter)
}

func (s *service) ListOpen(ctx context.Context) ([]*Booking, error) {
	return s.repo.ListByStatus(ctx, OpenStatuses)
}

func (s *service) ShouldExpire(b *Booking, now time.Time) bool {
	return s.machine.ShouldExpire(b, now)
}

func (s *service) Billing(b *Booking) (billing.Snapshot, bool, error) {
	return s.machine.Billing(b, s.clock.Now())
}

func (s *service) ExpiryState(b *Booking) ExpiryState {
	return s.machine.ExpiryState(b, s.clock.Now())
}

func (s *service) ExpiresAt(b *Booking) time.Time {
	return s.machine.ExpiresAt(b)
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	open, err := s.ListOpen(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	stats := &Stats{Total: len(open)}
	for _, b := range open {
		switch s.machine.ExpiryState(b, now) {
		case ExpiryWarning:
			stats.Warning++
		case ExpiryExpired:
			stats.Expired++
		default:
			stats.Active++
		}
	}
	return stats, nil
}

func (s *service) ExpiringSoon(ctx context.Context, userID string) ([]*Booking, error) {
	if userID == "" {
		return nil, ErrPermissionDenied
	}
	open, err := s.ListOpen(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var out []*Booking
	for _, b := range open {
		if b.UserID == userID && s.machine.ExpiryState(b, now) == ExpiryWarning {
			out = append(out, b)
		}
	}
	return out, nil
}
