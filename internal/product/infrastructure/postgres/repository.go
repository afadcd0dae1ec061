package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pricing "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/internal/product/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/money"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/pgxtx"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const productColumns = `id, scope, place_id, room_id, name, pricing_type, initial_price::text,
additional_price::text, total_quantity, reserved_quantity`

type productRow struct {
	ID               int64
	Scope            string
	PlaceID          *int64
	RoomID           *int64
	Name             string
	PricingType      string
	InitialPrice     string
	AdditionalPrice  *string
	TotalQuantity    int
	ReservedQuantity int
}

func scanProduct(row pgx.CollectableRow) (productRow, error) {
	var p productRow
	err := row.Scan(&p.ID, &p.Scope, &p.PlaceID, &p.RoomID, &p.Name, &p.PricingType,
		&p.InitialPrice, &p.AdditionalPrice, &p.TotalQuantity, &p.ReservedQuantity)
	return p, err
}

func (r *Repository) FindByID(ctx context.Context, id domain.ProductID) (domain.Product, error) {
	rows, err := pgxtx.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, int64(id))
	if err != nil {
		return domain.Product{}, fmt.Errorf("find product: %w", err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, apperror.NotFound("product.FindByID", "product %d not found", id).
				With("product_id", int64(id))
		}
		return domain.Product{}, fmt.Errorf("scan product: %w", err)
	}
	return toDomain(row)
}

func (r *Repository) FindAccessible(ctx context.Context, placeID pricing.PlaceID, roomID pricing.RoomID) ([]domain.Product, error) {
	const query = `SELECT ` + productColumns + `
FROM products
WHERE (scope = 'PLACE' AND place_id = $1)
   OR (scope = 'ROOM' AND room_id = $2)
   OR scope = 'RESERVATION'
ORDER BY id`
	return r.list(ctx, query, int64(placeID), int64(roomID))
}

// LockForUpdate takes row locks in id order so concurrent bookings cannot deadlock.
func (r *Repository) LockForUpdate(ctx context.Context, ids []domain.ProductID) ([]domain.Product, error) {
	if pgxtx.FromContext(ctx) == nil {
		return nil, errors.New("lock products: no transaction in context")
	}
	raw := make([]int64, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, int64(id))
	}
	const query = `SELECT ` + productColumns + `
FROM products
WHERE id = ANY($1)
ORDER BY id
FOR UPDATE`
	return r.list(ctx, query, raw)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := pgxtx.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	productRows, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}
	out := make([]domain.Product, 0, len(productRows))
	for _, row := range productRows {
		p, err := toDomain(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *Repository) Exists(ctx context.Context, id domain.ProductID) (bool, error) {
	var exists bool
	err := pgxtx.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, int64(id)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("product exists: %w", err)
	}
	return exists, nil
}

// Save upserts the catalog fields. reserved_quantity is owned by ReserveQuantity and ReleaseQuantity.
func (r *Repository) Save(ctx context.Context, p domain.Product) error {
	var additional *string
	if p.Strategy.AdditionalPrice != nil {
		s := p.Strategy.AdditionalPrice.String()
		additional = &s
	}
	_, err := pgxtx.Conn(ctx, r.pool).Exec(ctx, `
INSERT INTO products (id, scope, place_id, room_id, name, pricing_type, initial_price, additional_price, total_quantity)
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9)
ON CONFLICT (id) DO UPDATE
SET name = $5, pricing_type = $6, initial_price = $7::numeric, additional_price = $8::numeric,
    total_quantity = $9, updated_at = now()`,
		int64(p.ID), string(p.Scope), placeIDArg(p.PlaceID), roomIDArg(p.RoomID), p.Name,
		string(p.Strategy.Type), p.Strategy.InitialPrice.String(), additional, p.TotalQuantity)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id domain.ProductID) error {
	tag, err := pgxtx.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM products WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("product.Delete", "product %d not found", id)
	}
	return nil
}

// ReserveQuantity claims stock only if enough remains. The check and the increment are one statement.
func (r *Repository) ReserveQuantity(ctx context.Context, id domain.ProductID, quantity int) (bool, error) {
	tag, err := pgxtx.Conn(ctx, r.pool).Exec(ctx, `
UPDATE products
SET reserved_quantity = reserved_quantity + $2, updated_at = now()
WHERE id = $1 AND total_quantity - reserved_quantity >= $2`, int64(id), quantity)
	if err != nil {
		return false, fmt.Errorf("reserve quantity: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) ReleaseQuantity(ctx context.Context, id domain.ProductID, quantity int) (bool, error) {
	tag, err := pgxtx.Conn(ctx, r.pool).Exec(ctx, `
UPDATE products
SET reserved_quantity = reserved_quantity - $2, updated_at = now()
WHERE id = $1 AND reserved_quantity >= $2`, int64(id), quantity)
	if err != nil {
		return false, fmt.Errorf("release quantity: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func placeIDArg(id *pricing.PlaceID) *int64 {
	if id == nil {
		return nil
	}
	v := int64(*id)
	return &v
}

func roomIDArg(id *pricing.RoomID) *int64 {
	if id == nil {
		return nil
	}
	v := int64(*id)
	return &v
}

func toDomain(row productRow) (domain.Product, error) {
	initial, err := money.Parse(row.InitialPrice)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %d initial price: %w", row.ID, err)
	}
	var additional *money.Money
	if row.AdditionalPrice != nil {
		m, err := money.Parse(*row.AdditionalPrice)
		if err != nil {
			return domain.Product{}, fmt.Errorf("product %d additional price: %w", row.ID, err)
		}
		additional = &m
	}

	p := domain.Product{
		ID:    domain.ProductID(row.ID),
		Scope: domain.Scope(row.Scope),
		Name:  row.Name,
		Strategy: domain.PricingStrategy{
			Type:            domain.PricingType(row.PricingType),
			InitialPrice:    initial,
			AdditionalPrice: additional,
		},
		TotalQuantity:    row.TotalQuantity,
		ReservedQuantity: row.ReservedQuantity,
	}
	if row.PlaceID != nil {
		id := pricing.PlaceID(*row.PlaceID)
		p.PlaceID = &id
	}
	if row.RoomID != nil {
		id := pricing.RoomID(*row.RoomID)
		p.RoomID = &id
	}
	return p, nil
}
