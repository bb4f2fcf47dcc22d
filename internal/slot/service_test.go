package slot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	slots map[string]*Slot
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Slot, error) {
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *memRepo) ListByPark(_ context.Context, parkID string, _ *int) ([]*Slot, error) {
	var out []*Slot
	for _, s := range m.slots {
		if s.ParkID == parkID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memRepo) SetStatus(_ context.Context, id string, from, to Status) error {
	s, ok := m.slots[id]
	if !ok {
		return ErrNotFound
	}
	if s.Status != from {
		return ErrNotAvailable
	}
	s.Status = to
	return nil
}

func (m *memRepo) Congestion(_ context.Context) ([]*Congestion, error) {
	return []*Congestion{
		{ParkID: "p1", TotalSlots: 3, OccupiedSlots: 2},
		{ParkID: "p2", TotalSlots: 0},
	}, nil
}

func newTestService() (Service, *memRepo) {
	repo := &memRepo{slots: map[string]*Slot{
		"s1": {ID: "s1", ParkID: "p1", Status: StatusAvailable},
		"s2": {ID: "s2", ParkID: "p1", Status: StatusOccupied},
	}}
	return NewService(repo), repo
}

func TestService_MarkOccupied(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.MarkOccupied(ctx, "s1"))
	assert.Equal(t, StatusOccupied, repo.slots["s1"].Status)

	assert.ErrorIs(t, svc.MarkOccupied(ctx, "s1"), ErrNotAvailable)
	assert.ErrorIs(t, svc.MarkOccupied(ctx, "missing"), ErrNotFound)
}

func TestService_MarkAvailableIsIdempotent(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.MarkAvailable(ctx, "s2"))
	assert.Equal(t, StatusAvailable, repo.slots["s2"].Status)
	assert.NoError(t, svc.MarkAvailable(ctx, "s2"))
}

func TestService_Congestion(t *testing.T) {
	svc, _ := newTestService()

	rows, err := svc.Congestion(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 67, rows[0].Level)
	assert.Equal(t, 0, rows[1].Level)
}
