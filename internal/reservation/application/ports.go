package application

import (
	"context"
	"time"

	pricing "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
	inventory "github.com/dmehra2102/Reservation-Pricing-Service/internal/inventory/domain"
	product "github.com/dmehra2102/Reservation-Pricing-Service/internal/product/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/domain"
)

type ReservationRepository interface {
	FindByID(ctx context.Context, id domain.ReservationID) (*domain.ReservationPricing, error)
	// FindByIDForUpdate must run inside a transaction; the row stays locked until it ends.
	FindByIDForUpdate(ctx context.Context, id domain.ReservationID) (*domain.ReservationPricing, error)
	Exists(ctx context.Context, id domain.ReservationID) (bool, error)
	// Create inserts a new reservation and returns domain.ErrAlreadyExists on a duplicate id.
	Create(ctx context.Context, r *domain.ReservationPricing) error
	Save(ctx context.Context, r *domain.ReservationPricing) error
	Delete(ctx context.Context, id domain.ReservationID) error
	FindByTimeRangeAndStatus(ctx context.Context, from, to time.Time, statuses []domain.Status) ([]*domain.ReservationPricing, error)
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.ReservationID, error)
}

type PolicyFinder interface {
	FindByRoomID(ctx context.Context, roomID pricing.RoomID) (*pricing.PricingPolicy, error)
}

type ProductStore interface {
	FindByID(ctx context.Context, id product.ProductID) (product.Product, error)
	LockForUpdate(ctx context.Context, ids []product.ProductID) ([]product.Product, error)
	ReserveQuantity(ctx context.Context, id product.ProductID, quantity int) (bool, error)
	ReleaseQuantity(ctx context.Context, id product.ProductID, quantity int) (bool, error)
}

type AvailabilityChecker interface {
	IsAvailable(ctx context.Context, p product.Product, slots []time.Time, quantity int) (bool, error)
}

// EventPublisher records outbound events. It joins the transaction in ctx when there is one.
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.Event) error
}

type CompensationScheduler interface {
	Schedule(ctx context.Context, task inventory.CompensationTask)
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
