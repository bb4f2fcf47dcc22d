package park

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines read access to parking locations.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Park, error)
	List(ctx context.Context, filter Filter) ([]*Park, int, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var parkColumns = []string{
	"p.id", "p.name", "p.city", "p.address", "p.price_per_hour", "p.longitude", "p.latitude", "p.created_at",
	"(SELECT count(*) FROM public.parking_slots s WHERE s.park_id = p.id)",
	"(SELECT count(*) FROM public.parking_slots s WHERE s.park_id = p.id AND s.status = 'available')",
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Park, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(parkColumns...).
		From("public.parks p").
		Where(squirrel.Eq{"p.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get park query failed: %w", err)
	}

	var p Park
	err = r.pool.QueryRow(ctx, query, args...).Scan(
		&p.ID, &p.Name, &p.City, &p.Address, &p.PricePerHour, &p.Longitude, &p.Latitude, &p.CreatedAt,
		&p.TotalSlots, &p.AvailableSlots,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get park failed: %w", err)
	}
	return &p, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Park, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(append(parkColumns, "count(*) OVER() as total_count")...).
		From("public.parks p")

	if filter.City != "" {
		query = query.Where(squirrel.ILike{"p.city": filter.City})
	}
	if filter.Keyword != "" {
		like := "%" + filter.Keyword + "%"
		query = query.Where(squirrel.Or{
			squirrel.ILike{"p.name": like},
			squirrel.ILike{"p.address": like},
		})
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	query = query.OrderBy("p.name ASC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(offset))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list parks query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list parks failed: %w", err)
	}
	defer rows.Close()

	var parks []*Park
	var total int
	for rows.Next() {
		var p Park
		if err := rows.Scan(
			&p.ID, &p.Name, &p.City, &p.Address, &p.PricePerHour, &p.Longitude, &p.Latitude, &p.CreatedAt,
			&p.TotalSlots, &p.AvailableSlots, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan park failed: %w", err)
		}
		parks = append(parks, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate parks failed: %w", err)
	}

	return parks, total, nil
}
