// Package hardware turns entry/exit detections from parking sensors into
// booking lifecycle events. Signals arrive over HTTP or from a RabbitMQ queue;
// both paths share the same payload and validation.
package hardware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nekogravitycat/parking-booking-backend/internal/booking"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/mq"
)

// Signal is one detection event.
type Signal struct {
	BookingID  string     `json:"booking_id" binding:"required,uuid"`
	Type       string     `json:"type" binding:"required,oneof=entry exit"`
	DetectedAt *time.Time `json:"detected_at"`
}

// Ingestor applies signals to bookings.
type Ingestor interface {
	IngestHardwareSignal(ctx context.Context, id string, signal booking.SignalType, at time.Time) (*booking.Booking, error)
}

// Validate checks a decoded signal. The HTTP path relies on binding tags;
// queue messages come through here.
func (s Signal) Validate() error {
	if _, err := uuid.Parse(s.BookingID); err != nil {
		return booking.ErrInvalidInput
	}
	switch booking.SignalType(s.Type) {
	case booking.SignalEntry, booking.SignalExit:
		return nil
	}
	return booking.ErrInvalidSignal
}

func (s Signal) instant() time.Time {
	if s.DetectedAt == nil {
		return time.Time{}
	}
	return s.DetectedAt.UTC()
}

// Apply forwards the signal to the ingestor.
func Apply(ctx context.Context, ing Ingestor, s Signal) (*booking.Booking, error) {
	return ing.IngestHardwareSignal(ctx, s.BookingID, booking.SignalType(s.Type), s.instant())
}

// QueueHandler decodes queue messages and applies them. Malformed messages and
// client-side errors (unknown booking, bad signal) are permanent; everything
// else is retried by the consumer.
func QueueHandler(ing Ingestor, logger *zap.Logger) mq.HandlerFunc {
	logger = logger.Named("hardware")
	return func(ctx context.Context, body []byte) error {
		var s Signal
		if err := json.Unmarshal(body, &s); err != nil {
			return fmt.Errorf("decode signal: %v: %w", err, mq.ErrPermanent)
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("invalid signal: %v: %w", err, mq.ErrPermanent)
		}

		b, err := Apply(ctx, ing, s)
		if err != nil {
			if code := apperror.StatusCode(err); code >= 400 && code < 500 {
				return fmt.Errorf("signal rejected: %v: %w", err, mq.ErrPermanent)
			}
			return err
		}

		logger.Debug("signal applied",
			zap.String("booking_id", b.ID),
			zap.String("type", s.Type),
			zap.String("status", string(b.Status)),
		)
		return nil
	}
}
