package slot

import (
	"context"
	"math"
)

// Service is the slot inventory: availability snapshots and atomic status flips.
type Service interface {
	GetByID(ctx context.Context, id string) (*Slot, error)
	ListSlotStatuses(ctx context.Context, parkID string, basement *int) ([]*Slot, error)
	MarkOccupied(ctx context.Context, id string) error
	MarkAvailable(ctx context.Context, id string) error
	Congestion(ctx context.Context) ([]*Congestion, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetByID(ctx context.Context, id string) (*Slot, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListSlotStatuses(ctx context.Context, parkID string, basement *int) ([]*Slot, error) {
	return s.repo.ListByPark(ctx, parkID, basement)
}

// MarkOccupied atomically claims an available slot.
func (s *service) MarkOccupied(ctx context.Context, id string) error {
	return s.repo.SetStatus(ctx, id, StatusAvailable, StatusOccupied)
}

// MarkAvailable releases a slot. Releasing an already available slot is a no-op.
func (s *service) MarkAvailable(ctx context.Context, id string) error {
	err := s.repo.SetStatus(ctx, id, StatusOccupied, StatusAvailable)
	if err == ErrNotAvailable {
		return nil
	}
	return err
}

func (s *service) Congestion(ctx context.Context) ([]*Congestion, error) {
	rows, err := s.repo.Congestion(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range rows {
		c.Level = congestionLevel(c.OccupiedSlots, c.TotalSlots)
	}
	return rows, nil
}

func congestionLevel(occupied, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(occupied) * 100 / float64(total)))
}
