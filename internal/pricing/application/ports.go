package application

import (
	"context"

	"github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
)

type PolicyRepository interface {
	FindByRoomID(ctx context.Context, roomID domain.RoomID) (*domain.PricingPolicy, error)
	// FindByRoomIDForUpdate holds a row lock for the rest of the transaction in ctx.
	FindByRoomIDForUpdate(ctx context.Context, roomID domain.RoomID) (*domain.PricingPolicy, error)
	FindAllByPlaceID(ctx context.Context, placeID domain.PlaceID) ([]*domain.PricingPolicy, error)
	ExistsByRoomID(ctx context.Context, roomID domain.RoomID) (bool, error)
	Save(ctx context.Context, p *domain.PricingPolicy) error
	DeleteByRoomID(ctx context.Context, roomID domain.RoomID) error
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
