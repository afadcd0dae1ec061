package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pricing "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
	product "github.com/dmehra2102/Reservation-Pricing-Service/internal/product/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/domain"
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

const headerColumns = `id, room_id, status, total::text, created_at, expires_at, calculated_at, updated_at`

type headerRow struct {
	ID           int64
	RoomID       int64
	Status       string
	Total        string
	CreatedAt    time.Time
	ExpiresAt    *time.Time
	CalculatedAt time.Time
	UpdatedAt    time.Time
}

func scanHeader(row pgx.CollectableRow) (headerRow, error) {
	var h headerRow
	err := row.Scan(&h.ID, &h.RoomID, &h.Status, &h.Total, &h.CreatedAt, &h.ExpiresAt, &h.CalculatedAt, &h.UpdatedAt)
	return h, err
}

func (r *Repository) FindByID(ctx context.Context, id domain.ReservationID) (*domain.ReservationPricing, error) {
	return r.findOne(ctx, `SELECT `+headerColumns+` FROM reservation_pricings WHERE id = $1`, id)
}

func (r *Repository) FindByIDForUpdate(ctx context.Context, id domain.ReservationID) (*domain.ReservationPricing, error) {
	if pgxtx.FromContext(ctx) == nil {
		return nil, errors.New("lock reservation: no transaction in context")
	}
	return r.findOne(ctx, `SELECT `+headerColumns+` FROM reservation_pricings WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repository) findOne(ctx context.Context, query string, id domain.ReservationID) (*domain.ReservationPricing, error) {
	rows, err := pgxtx.Conn(ctx, r.pool).Query(ctx, query, int64(id))
	if err != nil {
		return nil, fmt.Errorf("find reservation: %w", err)
	}
	h, err := pgx.CollectExactlyOneRow(rows, scanHeader)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("reservation.FindByID", "reservation %d not found", id).
				With("reservation_id", int64(id))
		}
		return nil, fmt.Errorf("scan reservation: %w", err)
	}
	out, err := r.hydrate(ctx, []headerRow{h})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (r *Repository) Exists(ctx context.Context, id domain.ReservationID) (bool, error) {
	var exists bool
	err := pgxtx.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reservation_pricings WHERE id = $1)`, int64(id)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("reservation exists: %w", err)
	}
	return exists, nil
}

// Create writes the snapshot with its slot and product lines.
func (r *Repository) Create(ctx context.Context, res *domain.ReservationPricing) error {
	return r.tx.WithTx(ctx, func(ctx context.Context) error {
		conn := pgxtx.Conn(ctx, r.pool)
		first, last := res.Slots().Span()
		_, err := conn.Exec(ctx, `
INSERT INTO reservation_pricings
	(id, room_id, status, total, created_at, expires_at, calculated_at, updated_at, first_slot, last_slot)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10)`,
			int64(res.ID()), int64(res.RoomID()), string(res.Status()), res.Total().String(),
			res.CreatedAt(), res.ExpiresAt(), res.CalculatedAt(), res.UpdatedAt(), first, last)
		if err != nil {
			if pgxtx.IsUniqueViolation(err) {
				return domain.ErrAlreadyExists
			}
			return fmt.Errorf("insert reservation: %w", err)
		}

		batch := &pgx.Batch{}
		for _, s := range res.Slots().Slots() {
			batch.Queue(`
INSERT INTO reservation_slot_prices (reservation_id, slot_start, price)
VALUES ($1, $2, $3::numeric)`, int64(res.ID()), s.StartsAt, s.Price.String())
		}
		for _, p := range res.Products() {
			batch.Queue(`
INSERT INTO reservation_product_prices
	(reservation_id, product_id, name, scope, pricing_type, quantity, unit_price, total)
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric)`,
				int64(res.ID()), int64(p.ProductID), p.Name, string(p.Scope), string(p.PricingType),
				p.Quantity, p.UnitPrice.String(), p.Total.String())
		}
		if err := conn.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert reservation lines: %w", err)
		}
		return nil
	})
}

// Save persists a status transition. Price lines never change after Create.
func (r *Repository) Save(ctx context.Context, res *domain.ReservationPricing) error {
	tag, err := pgxtx.Conn(ctx, r.pool).Exec(ctx, `
UPDATE reservation_pricings
SET status = $2, expires_at = $3, updated_at = $4
WHERE id = $1`,
		int64(res.ID()), string(res.Status()), res.ExpiresAt(), res.UpdatedAt())
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("reservation.Save", "reservation %d not found", res.ID())
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id domain.ReservationID) error {
	tag, err := pgxtx.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM reservation_pricings WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("reservation.Delete", "reservation %d not found", id)
	}
	return nil
}

// FindByTimeRangeAndStatus returns reservations holding at least one slot in [from, to].
func (r *Repository) FindByTimeRangeAndStatus(ctx context.Context, from, to time.Time, statuses []domain.Status) ([]*domain.ReservationPricing, error) {
	raw := make([]string, 0, len(statuses))
	for _, s := range statuses {
		raw = append(raw, string(s))
	}
	rows, err := pgxtx.Conn(ctx, r.pool).Query(ctx, `
SELECT `+headerColumns+`
FROM reservation_pricings rp
WHERE rp.status = ANY($3)
  AND rp.first_slot <= $2 AND rp.last_slot >= $1
  AND EXISTS (
	SELECT 1 FROM reservation_slot_prices s
	WHERE s.reservation_id = rp.id AND s.slot_start BETWEEN $1 AND $2
  )
ORDER BY rp.id`, from, to, raw)
	if err != nil {
		return nil, fmt.Errorf("find reservations by time range: %w", err)
	}
	headers, err := pgx.CollectRows(rows, scanHeader)
	if err != nil {
		return nil, fmt.Errorf("scan reservations: %w", err)
	}
	if len(headers) == 0 {
		return nil, nil
	}
	return r.hydrate(ctx, headers)
}

func (r *Repository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.ReservationID, error) {
	rows, err := pgxtx.Conn(ctx, r.pool).Query(ctx, `
SELECT id FROM reservation_pricings
WHERE status = 'PENDING' AND expires_at <= $1
ORDER BY expires_at
LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("find expired reservations: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ReservationID, error) {
		var id int64
		err := row.Scan(&id)
		return domain.ReservationID(id), err
	})
}

func (r *Repository) hydrate(ctx context.Context, headers []headerRow) ([]*domain.ReservationPricing, error) {
	ids := make([]int64, 0, len(headers))
	for _, h := range headers {
		ids = append(ids, h.ID)
	}
	slots, err := r.loadSlots(ctx, ids)
	if err != nil {
		return nil, err
	}
	products, err := r.loadProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.ReservationPricing, 0, len(headers))
	for _, h := range headers {
		total, err := money.Parse(h.Total)
		if err != nil {
			return nil, fmt.Errorf("reservation %d total: %w", h.ID, err)
		}
		breakdown, err := domain.NewTimeSlotPriceBreakdown(slots[h.ID])
		if err != nil {
			return nil, fmt.Errorf("reservation %d slots: %w", h.ID, err)
		}
		out = append(out, domain.Restore(domain.RestoreInput{
			ID:           domain.ReservationID(h.ID),
			RoomID:       pricing.RoomID(h.RoomID),
			Slots:        breakdown,
			Products:     products[h.ID],
			Total:        total,
			Status:       domain.Status(h.Status),
			CreatedAt:    h.CreatedAt,
			ExpiresAt:    h.ExpiresAt,
			CalculatedAt: h.CalculatedAt,
			UpdatedAt:    h.UpdatedAt,
		}))
	}
	return out, nil
}

func (r *Repository) loadSlots(ctx context.Context, ids []int64) (map[int64][]domain.SlotPrice, error) {
	rows, err := pgxtx.Conn(ctx, r.pool).Query(ctx, `
SELECT reservation_id, slot_start, price::text
FROM reservation_slot_prices
WHERE reservation_id = ANY($1)
ORDER BY reservation_id, slot_start`, ids)
	if err != nil {
		return nil, fmt.Errorf("load reservation slots: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]domain.SlotPrice, len(ids))
	for rows.Next() {
		var (
			id    int64
			start time.Time
			price string
		)
		if err := rows.Scan(&id, &start, &price); err != nil {
			return nil, fmt.Errorf("scan reservation slot: %w", err)
		}
		m, err := money.Parse(price)
		if err != nil {
			return nil, fmt.Errorf("reservation %d slot price: %w", id, err)
		}
		out[id] = append(out[id], domain.SlotPrice{StartsAt: start, Price: m})
	}
	return out, rows.Err()
}

func (r *Repository) loadProducts(ctx context.Context, ids []int64) (map[int64][]domain.ProductPriceBreakdown, error) {
	rows, err := pgxtx.Conn(ctx, r.pool).Query(ctx, `
SELECT reservation_id, product_id, name, scope, pricing_type, quantity, unit_price::text, total::text
FROM reservation_product_prices
WHERE reservation_id = ANY($1)
ORDER BY reservation_id, product_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("load reservation products: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]domain.ProductPriceBreakdown, len(ids))
	for rows.Next() {
		var (
			id, productID            int64
			name, scope, pricingType string
			quantity                 int
			unitPrice, total         string
		)
		if err := rows.Scan(&id, &productID, &name, &scope, &pricingType, &quantity, &unitPrice, &total); err != nil {
			return nil, fmt.Errorf("scan reservation product: %w", err)
		}
		unit, err := money.Parse(unitPrice)
		if err != nil {
			return nil, fmt.Errorf("reservation %d product %d unit price: %w", id, productID, err)
		}
		sum, err := money.Parse(total)
		if err != nil {
			return nil, fmt.Errorf("reservation %d product %d total: %w", id, productID, err)
		}
		out[id] = append(out[id], domain.ProductPriceBreakdown{
			ProductID:   product.ProductID(productID),
			Name:        name,
			Scope:       product.Scope(scope),
			PricingType: product.PricingType(pricingType),
			Quantity:    quantity,
			UnitPrice:   unit,
			Total:       sum,
		})
	}
	return out, rows.Err()
}
