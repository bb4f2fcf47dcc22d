package slot

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Slot, error)
	ListByPark(ctx context.Context, parkID string, basement *int) ([]*Slot, error)

	// SetStatus flips a slot from one status to another. It returns
	// ErrNotAvailable if the slot exists but is not in the expected status.
	SetStatus(ctx context.Context, id string, from, to Status) error

	Congestion(ctx context.Context) ([]*Congestion, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

// storageError wraps a driver error. Errors the server did not answer with
// (dial failures, closed pool, timeouts) mean the store is unreachable.
func storageError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	return errors.Join(ErrStorageUnavailable, fmt.Errorf("%s failed: %w", op, err))
}

func slotSelect() squirrel.SelectBuilder {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	return psql.Select(
		"s.id", "s.park_id", "p.name", "s.slot_number", "s.basement_number", "s.status",
		"p.price_per_hour", "s.updated_at",
	).
		From("public.parking_slots s").
		Join("public.parks p ON s.park_id = p.id")
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(&s.ID, &s.ParkID, &s.ParkName, &s.Label, &s.Basement, &s.Status, &s.PricePerHour, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Slot, error) {
	query, args, err := slotSelect().Where(squirrel.Eq{"s.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get slot query failed: %w", err)
	}

	s, err := scanSlot(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storageError("get slot", err)
	}
	return s, nil
}

func (r *pgxRepository) ListByPark(ctx context.Context, parkID string, basement *int) ([]*Slot, error) {
	query := slotSelect().Where(squirrel.Eq{"s.park_id": parkID})
	if basement != nil {
		query = query.Where(squirrel.Eq{"s.basement_number": *basement})
	}

	sql, args, err := query.OrderBy("s.basement_number ASC", "s.slot_number ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list slots query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storageError("list slots", err)
	}
	defer rows.Close()

	var slots []*Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot failed: %w", err)
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list slots", err)
	}
	return slots, nil
}

func (r *pgxRepository) SetStatus(ctx context.Context, id string, from, to Status) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.parking_slots").
		Set("status", to).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "status": from}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update slot status query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return storageError("update slot status", err)
	}
	if ct.RowsAffected() > 0 {
		return nil
	}

	// Distinguish a missing slot from one in another status.
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrNotAvailable
}

func (r *pgxRepository) Congestion(ctx context.Context) ([]*Congestion, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(
		"p.id", "p.name", "p.city",
		"count(s.id)",
		"count(s.id) FILTER (WHERE s.status = 'occupied')",
	).
		From("public.parks p").
		LeftJoin("public.parking_slots s ON s.park_id = p.id").
		GroupBy("p.id", "p.name", "p.city").
		OrderBy("p.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build congestion query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageError("congestion query", err)
	}
	defer rows.Close()

	var out []*Congestion
	for rows.Next() {
		var c Congestion
		if err := rows.Scan(&c.ParkID, &c.ParkName, &c.City, &c.TotalSlots, &c.OccupiedSlots); err != nil {
			return nil, fmt.Errorf("scan congestion failed: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("congestion query", err)
	}
	return out, nil
}
