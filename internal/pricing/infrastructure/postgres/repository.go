package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/money"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/pgxtx"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
	tx   *pgxtx.Manager
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool, tx: pgxtx.NewManager(pool)}
}

type policyRow struct {
	RoomID       int64
	PlaceID      int64
	TimeSlot     int
	DefaultPrice string
}

type priceRow struct {
	RoomID      int64
	DayOfWeek   int
	StartMinute int
	EndMinute   int
	Price       string
}

func (r *Repository) FindByRoomID(ctx context.Context, roomID domain.RoomID) (*domain.PricingPolicy, error) {
	return r.findByRoomID(ctx, roomID, "")
}

// FindByRoomIDForUpdate locks the policy row until the surrounding transaction ends.
func (r *Repository) FindByRoomIDForUpdate(ctx context.Context, roomID domain.RoomID) (*domain.PricingPolicy, error) {
	return r.findByRoomID(ctx, roomID, " FOR UPDATE")
}

func (r *Repository) findByRoomID(ctx context.Context, roomID domain.RoomID, lock string) (*domain.PricingPolicy, error) {
	query := `
SELECT room_id, place_id, time_slot, default_price::text
FROM pricing_policies
WHERE room_id = $1` + lock

	var row policyRow
	err := pgxtx.Conn(ctx, r.pool).QueryRow(ctx, query, int64(roomID)).
		Scan(&row.RoomID, &row.PlaceID, &row.TimeSlot, &row.DefaultPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("pricing.FindByRoomID", "pricing policy for room %d not found", roomID).
				With("room_id", int64(roomID))
		}
		return nil, fmt.Errorf("find pricing policy: %w", err)
	}

	prices, err := r.loadPrices(ctx, []int64{row.RoomID})
	if err != nil {
		return nil, err
	}
	return toDomain(row, prices[row.RoomID])
}

func (r *Repository) FindAllByPlaceID(ctx context.Context, placeID domain.PlaceID) ([]*domain.PricingPolicy, error) {
	const query = `
SELECT room_id, place_id, time_slot, default_price::text
FROM pricing_policies
WHERE place_id = $1
ORDER BY room_id`

	rows, err := pgxtx.Conn(ctx, r.pool).Query(ctx, query, int64(placeID))
	if err != nil {
		return nil, fmt.Errorf("find pricing policies by place: %w", err)
	}
	policyRows, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (policyRow, error) {
		var p policyRow
		err := row.Scan(&p.RoomID, &p.PlaceID, &p.TimeSlot, &p.DefaultPrice)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan pricing policies: %w", err)
	}
	if len(policyRows) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(policyRows))
	for _, p := range policyRows {
		ids = append(ids, p.RoomID)
	}
	prices, err := r.loadPrices(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.PricingPolicy, 0, len(policyRows))
	for _, p := range policyRows {
		policy, err := toDomain(p, prices[p.RoomID])
		if err != nil {
			return nil, err
		}
		out = append(out, policy)
	}
	return out, nil
}

func (r *Repository) ExistsByRoomID(ctx context.Context, roomID domain.RoomID) (bool, error) {
	var exists bool
	err := pgxtx.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pricing_policies WHERE room_id = $1)`, int64(roomID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pricing policy exists: %w", err)
	}
	return exists, nil
}

// Save upserts the policy row and replaces its overrides in one transaction.
func (r *Repository) Save(ctx context.Context, p *domain.PricingPolicy) error {
	return r.tx.WithTx(ctx, func(ctx context.Context) error {
		conn := pgxtx.Conn(ctx, r.pool)
		_, err := conn.Exec(ctx, `
INSERT INTO pricing_policies (room_id, place_id, time_slot, default_price, updated_at)
VALUES ($1, $2, $3, $4::numeric, now())
ON CONFLICT (room_id) DO UPDATE
SET place_id = $2, time_slot = $3, default_price = $4::numeric, updated_at = now()`,
			int64(p.RoomID()), int64(p.PlaceID()), p.TimeSlot().Minutes(), p.DefaultPrice().String())
		if err != nil {
			return fmt.Errorf("upsert pricing policy: %w", err)
		}

		if _, err := conn.Exec(ctx, `DELETE FROM time_range_prices WHERE room_id = $1`, int64(p.RoomID())); err != nil {
			return fmt.Errorf("clear time range prices: %w", err)
		}

		items := p.TimeRangePrices().Items()
		if len(items) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, item := range items {
			batch.Queue(`
INSERT INTO time_range_prices (room_id, day_of_week, start_minute, end_minute, price)
VALUES ($1, $2, $3, $4, $5::numeric)`,
				int64(p.RoomID()), int(item.Day), int(item.Range.Start), int(item.Range.End), item.Price.String())
		}
		if err := conn.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert time range prices: %w", err)
		}
		return nil
	})
}

func (r *Repository) DeleteByRoomID(ctx context.Context, roomID domain.RoomID) error {
	tag, err := pgxtx.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM pricing_policies WHERE room_id = $1`, int64(roomID))
	if err != nil {
		return fmt.Errorf("delete pricing policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("pricing.DeleteByRoomID", "pricing policy for room %d not found", roomID)
	}
	return nil
}

func (r *Repository) loadPrices(ctx context.Context, roomIDs []int64) (map[int64][]priceRow, error) {
	const query = `
SELECT room_id, day_of_week, start_minute, end_minute, price::text
FROM time_range_prices
WHERE room_id = ANY($1)
ORDER BY room_id, day_of_week, start_minute`

	rows, err := pgxtx.Conn(ctx, r.pool).Query(ctx, query, roomIDs)
	if err != nil {
		return nil, fmt.Errorf("load time range prices: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]priceRow, len(roomIDs))
	for rows.Next() {
		var p priceRow
		if err := rows.Scan(&p.RoomID, &p.DayOfWeek, &p.StartMinute, &p.EndMinute, &p.Price); err != nil {
			return nil, fmt.Errorf("scan time range price: %w", err)
		}
		out[p.RoomID] = append(out[p.RoomID], p)
	}
	return out, rows.Err()
}

func toDomain(row policyRow, priceRows []priceRow) (*domain.PricingPolicy, error) {
	defaultPrice, err := money.Parse(row.DefaultPrice)
	if err != nil {
		return nil, fmt.Errorf("room %d default price: %w", row.RoomID, err)
	}

	items := make([]domain.TimeRangePrice, 0, len(priceRows))
	for _, pr := range priceRows {
		price, err := money.Parse(pr.Price)
		if err != nil {
			return nil, fmt.Errorf("room %d override price: %w", row.RoomID, err)
		}
		items = append(items, domain.TimeRangePrice{
			Day:   domain.DayOfWeek(pr.DayOfWeek),
			Range: domain.TimeRange{Start: domain.TimeOfDay(pr.StartMinute), End: domain.TimeOfDay(pr.EndMinute)},
			Price: price,
		})
	}
	prices, err := domain.NewTimeRangePrices(items)
	if err != nil {
		return nil, fmt.Errorf("room %d stored overrides: %w", row.RoomID, err)
	}

	return domain.RestorePricingPolicy(
		domain.RoomID(row.RoomID),
		domain.PlaceID(row.PlaceID),
		domain.TimeSlot(row.TimeSlot),
		defaultPrice,
		prices,
	), nil
}
