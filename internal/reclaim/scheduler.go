// Package reclaim cancels reservations whose driver never arrived.
//
// A Scheduler scans open bookings on a fixed interval using the wall clock at
// each tick. It owns its cron instance; the hosting process starts and stops it
// exactly once.
package reclaim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/nekogravitycat/parking-booking-backend/internal/booking"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/lease"
)

// EventReclaimed is published after a pass that cancelled at least one booking.
const EventReclaimed = "booking.reclaimed"

const leaseName = "reclaim"

// Bookings is the part of the lifecycle service the scheduler drives.
type Bookings interface {
	ListOpen(ctx context.Context) ([]*booking.Booking, error)
	ShouldExpire(b *booking.Booking, now time.Time) bool
	Expire(ctx context.Context, id string) (*booking.Booking, bool, error)
}

// Summary is the payload of EventReclaimed.
type Summary struct {
	Cancelled  int       `json:"cancelled"`
	Failed     int       `json:"failed"`
	BookingIDs []string  `json:"booking_ids"`
	RanAt      time.Time `json:"ran_at"`
}

type Scheduler struct {
	bookings  Bookings
	clock     clock.Clock
	lock      lease.Lock
	publisher booking.Publisher
	logger    *zap.Logger
	interval  time.Duration

	mu   sync.Mutex
	cron *cron.Cron
}

func NewScheduler(
	bookings Bookings,
	clk clock.Clock,
	lock lease.Lock,
	publisher booking.Publisher,
	logger *zap.Logger,
	interval time.Duration,
) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if lock == nil {
		lock = lease.Local{}
	}
	return &Scheduler{
		bookings:  bookings,
		clock:     clk,
		lock:      lock,
		publisher: publisher,
		logger:    logger.Named("reclaim"),
		interval:  interval,
	}
}

// Start schedules RunOnce every interval. Starting a running scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.PrintfLogger(zap.NewStdLog(s.logger))),
	))
	_, err := c.AddFunc("@every "+s.interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.interval)
		defer cancel()
		// Failures are logged inside; the next tick tries again.
		_, _ = s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule reclamation: %w", err)
	}

	c.Start()
	s.cron = c
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the timer and waits for a running pass to finish. Stopping a
// scheduler that is not running is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// RunOnce performs a single reclamation pass and returns how many bookings it
// cancelled. A failure on one booking never aborts the pass.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	ok, release, err := s.lock.Acquire(ctx, leaseName, s.interval)
	if err != nil {
		// Expire is compare-and-set; overlapping passes cancel each booking once.
		s.logger.Warn("lease unavailable, running unguarded", zap.Error(err))
	} else if !ok {
		s.logger.Debug("another replica holds the reclamation lease")
		return 0, nil
	}
	if release != nil {
		defer release()
	}

	open, err := s.bookings.ListOpen(ctx)
	if err != nil {
		s.logger.Error("list open bookings failed", zap.Error(err))
		return 0, err
	}

	now := s.clock.Now()
	summary := Summary{RanAt: now}
	scanned := 0

	for _, b := range open {
		if !s.bookings.ShouldExpire(b, now) {
			continue
		}
		scanned++

		_, changed, err := s.bookings.Expire(ctx, b.ID)
		if err != nil {
			summary.Failed++
			s.logger.Error("expire booking failed", zap.String("booking_id", b.ID), zap.Error(err))
			continue
		}
		if changed {
			summary.Cancelled++
			summary.BookingIDs = append(summary.BookingIDs, b.ID)
		}
	}

	s.logger.Info("pass finished",
		zap.Int("open", len(open)),
		zap.Int("scanned", scanned),
		zap.Int("cancelled", summary.Cancelled),
		zap.Int("failed", summary.Failed),
	)

	if summary.Cancelled > 0 && s.publisher != nil {
		if err := s.publisher.PublishJSON(ctx, EventReclaimed, summary); err != nil {
			s.logger.Warn("publish reclamation summary failed", zap.Error(err))
		}
	}

	return summary.Cancelled, nil
}
