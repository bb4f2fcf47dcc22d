package booking

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestPool connects to TEST_DB_DSN and applies the schema. Tests that
// need Postgres are skipped when no database is configured.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../migrations/001_init.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err, "apply schema")

	_, err = pool.Exec(ctx, "TRUNCATE TABLE public.bookings, public.parking_slots, public.parks CASCADE")
	require.NoError(t, err)
	return pool
}

func seedSlot(t *testing.T, pool *pgxpool.Pool) (parkID, slotID string) {
	t.Helper()
	ctx := context.Background()

	err := pool.QueryRow(ctx,
		"INSERT INTO public.parks (name, city, price_per_hour) VALUES ('Central', 'Pune', 60) RETURNING id",
	).Scan(&parkID)
	require.NoError(t, err)

	err = pool.QueryRow(ctx,
		"INSERT INTO public.parking_slots (park_id, slot_number, basement_number) VALUES ($1, 'A1', 1) RETURNING id",
		parkID,
	).Scan(&slotID)
	require.NoError(t, err)
	return parkID, slotID
}

func newRow(parkID, slotID string, now time.Time) *Booking {
	return &Booking{
		ID:               uuid.NewString(),
		SlotID:           slotID,
		ParkID:           parkID,
		UserID:           "user-1",
		VehicleNumber:    "MH12AB1234",
		Status:           StatusReserved,
		CreatedAt:        now,
		UpdatedAt:        now,
		BillingStartedAt: &now,
		StartTime:        now,
		EndTime:          now.Add(24 * time.Hour),
		RatePerHour:      60,
	}
}

func TestPgxRepository_Lifecycle(t *testing.T) {
	pool := openTestPool(t)
	repo := NewPgxRepository(pool)
	ctx := context.Background()
	parkID, slotID := seedSlot(t, pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	b := newRow(parkID, slotID, now)
	require.NoError(t, repo.Insert(ctx, b))

	t.Run("second open booking on the slot is rejected", func(t *testing.T) {
		err := repo.Insert(ctx, newRow(parkID, slotID, now))
		assert.ErrorIs(t, err, ErrSlotUnavailable)
	})

	t.Run("read joins slot and park", func(t *testing.T) {
		got, err := repo.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "A1", got.SlotLabel)
		assert.Equal(t, "Central", got.ParkName)
		assert.Equal(t, StatusReserved, got.Status)
		assert.Nil(t, got.CancellationReason)
		require.NotNil(t, got.BillingStartedAt)
		assert.True(t, now.Equal(*got.BillingStartedAt))
	})

	t.Run("compare and set", func(t *testing.T) {
		cancelled := *b
		end := now.Add(45 * time.Minute)
		reason := ReasonDriverCancel
		minutes := 45
		cost := int64(45)
		cancelled.Status = StatusCancelled
		cancelled.EndTime = end
		cancelled.CancellationReason = &reason
		cancelled.FinalBillableMinutes = &minutes
		cancelled.FinalCost = &cost
		cancelled.FinalizedAt = &end

		require.NoError(t, repo.UpdateStatus(ctx, &cancelled, StatusReserved))
		assert.ErrorIs(t, repo.UpdateStatus(ctx, &cancelled, StatusReserved), ErrConflict)

		got, err := repo.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status)
		require.NotNil(t, got.FinalCost)
		assert.Equal(t, int64(45), *got.FinalCost)
	})

	t.Run("missing row", func(t *testing.T) {
		ghost := newRow(parkID, slotID, now)
		assert.ErrorIs(t, repo.UpdateStatus(ctx, ghost, StatusReserved), ErrNotFound)

		_, err := repo.GetByID(ctx, ghost.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("slot is free again once the booking is terminal", func(t *testing.T) {
		next := newRow(parkID, slotID, now.Add(time.Hour))
		require.NoError(t, repo.Insert(ctx, next))

		open, err := repo.ListByStatus(ctx, OpenStatuses)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, next.ID, open[0].ID)

		all, total, err := repo.List(ctx, Filter{UserID: "user-1", PageSize: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, all, 1)
		assert.Equal(t, next.ID, all[0].ID, "newest first")
	})
}
