package application

import (
	"context"
	"time"

	pricing "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/internal/product/domain"
	reservation "github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/domain"
)

type ProductRepository interface {
	FindByID(ctx context.Context, id domain.ProductID) (domain.Product, error)
	FindAccessible(ctx context.Context, placeID pricing.PlaceID, roomID pricing.RoomID) ([]domain.Product, error)
	Exists(ctx context.Context, id domain.ProductID) (bool, error)
	Save(ctx context.Context, p domain.Product) error
	Delete(ctx context.Context, id domain.ProductID) error
	// LockForUpdate loads the products with a row lock held until the surrounding transaction ends.
	LockForUpdate(ctx context.Context, ids []domain.ProductID) ([]domain.Product, error)
	StockStore
}

// StockStore claims and returns global stock with single conditional updates.
type StockStore interface {
	ReserveQuantity(ctx context.Context, id domain.ProductID, quantity int) (bool, error)
	ReleaseQuantity(ctx context.Context, id domain.ProductID, quantity int) (bool, error)
}

type ReservationFinder interface {
	FindByTimeRangeAndStatus(ctx context.Context, from, to time.Time, statuses []reservation.Status) ([]*reservation.ReservationPricing, error)
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
