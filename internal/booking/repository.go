package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the durable booking store.
type Repository interface {
	Insert(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)
	ListByStatus(ctx context.Context, statuses []Status) ([]*Booking, error)

	// UpdateStatus persists b only if the stored status still equals expected.
	// It returns ErrConflict when the row exists but its status has moved on,
	// and ErrNotFound when the row is gone.
	UpdateStatus(ctx context.Context, b *Booking, expected Status) error
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func bookingSelect(extra ...string) squirrel.SelectBuilder {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	cols := []string{
		"b.id", "b.slot_id", "s.slot_number", "b.park_id", "p.name", "b.user_id", "b.vehicle_number", "b.status",
		"b.created_at", "b.updated_at", "b.billing_started_at", "b.start_time", "b.end_time",
		"b.hardware_entry_detected", "b.hardware_exit_detected", "b.cancellation_reason",
		"b.rate_per_hour", "b.final_billable_minutes", "b.final_cost", "b.finalized_at",
	}
	return psql.Select(append(cols, extra...)...).
		From("public.bookings b").
		Join("public.parking_slots s ON b.slot_id = s.id").
		Join("public.parks p ON b.park_id = p.id")
}

func scanDest(b *Booking) []any {
	return []any{
		&b.ID, &b.SlotID, &b.SlotLabel, &b.ParkID, &b.ParkName, &b.UserID, &b.VehicleNumber, &b.Status,
		&b.CreatedAt, &b.UpdatedAt, &b.BillingStartedAt, &b.StartTime, &b.EndTime,
		&b.HardwareEntryDetected, &b.HardwareExitDetected, &b.CancellationReason,
		&b.RatePerHour, &b.FinalBillableMinutes, &b.FinalCost, &b.FinalizedAt,
	}
}

// storageError classifies a driver error. Unique violations on the
// one-open-booking-per-slot index mean the slot was taken; anything that is
// not a server-side SQL error is treated as the store being unreachable.
func storageError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgerrcode.UniqueViolation {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("%s failed: %w", op, err)
	}
	return errors.Join(ErrStorageUnavailable, fmt.Errorf("%s failed: %w", op, err))
}

func (r *pgxRepository) Insert(ctx context.Context, b *Booking) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.bookings").
		Columns(
			"id", "slot_id", "park_id", "user_id", "vehicle_number", "status",
			"created_at", "updated_at", "billing_started_at", "start_time", "end_time",
			"hardware_entry_detected", "hardware_exit_detected", "rate_per_hour",
		).
		Values(
			b.ID, b.SlotID, b.ParkID, b.UserID, b.VehicleNumber, b.Status,
			b.CreatedAt, b.UpdatedAt, b.BillingStartedAt, b.StartTime, b.EndTime,
			b.HardwareEntryDetected, b.HardwareExitDetected, b.RatePerHour,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert booking query failed: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return storageError("insert booking", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	query, args, err := bookingSelect().Where(squirrel.Eq{"b.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	var b Booking
	if err := r.pool.QueryRow(ctx, query, args...).Scan(scanDest(&b)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storageError("get booking", err)
	}
	return &b, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	query := bookingSelect("count(*) OVER() as total_count")

	if filter.UserID != "" {
		query = query.Where(squirrel.Eq{"b.user_id": filter.UserID})
	}
	if len(filter.Statuses) > 0 {
		query = query.Where(squirrel.Eq{"b.status": filter.Statuses})
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	sql, args, err := query.
		OrderBy("b.created_at DESC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, storageError("list bookings", err)
	}
	defer rows.Close()

	var bookings []*Booking
	var total int
	for rows.Next() {
		var b Booking
		if err := rows.Scan(append(scanDest(&b), &total)...); err != nil {
			return nil, 0, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storageError("list bookings", err)
	}

	return bookings, total, nil
}

func (r *pgxRepository) ListByStatus(ctx context.Context, statuses []Status) ([]*Booking, error) {
	sql, args, err := bookingSelect().
		Where(squirrel.Eq{"b.status": statuses}).
		OrderBy("b.created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list bookings by status query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storageError("list bookings by status", err)
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(scanDest(&b)...); err != nil {
			return nil, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list bookings by status", err)
	}
	return bookings, nil
}

func (r *pgxRepository) UpdateStatus(ctx context.Context, b *Booking, expected Status) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.bookings").
		Set("status", b.Status).
		Set("updated_at", b.UpdatedAt).
		Set("end_time", b.EndTime).
		Set("hardware_entry_detected", b.HardwareEntryDetected).
		Set("hardware_exit_detected", b.HardwareExitDetected).
		Set("cancellation_reason", b.CancellationReason).
		Set("final_billable_minutes", b.FinalBillableMinutes).
		Set("final_cost", b.FinalCost).
		Set("finalized_at", b.FinalizedAt).
		Where(squirrel.Eq{"id": b.ID, "status": expected}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update booking status query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return storageError("update booking status", err)
	}
	if ct.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = r.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM public.bookings WHERE id = $1)", b.ID).Scan(&exists)
	if err != nil {
		return storageError("check booking exists", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}
