package domain

import (
	"strings"

	pricing "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/money"
)

type ProductID int64

// Scope is the inventory-sharing boundary of a product.
type Scope string

const (
	ScopePlace       Scope = "PLACE"
	ScopeRoom        Scope = "ROOM"
	ScopeReservation Scope = "RESERVATION"
)

func ParseScope(s string) (Scope, error) {
	switch sc := Scope(strings.ToUpper(strings.TrimSpace(s))); sc {
	case ScopePlace, ScopeRoom, ScopeReservation:
		return sc, nil
	}
	return "", apperror.Validation("product.ParseScope", "unknown product scope %q", s)
}

// TimeSensitive reports whether stock is shared per time slot rather than globally.
func (s Scope) TimeSensitive() bool {
	return s == ScopePlace || s == ScopeRoom
}

type Product struct {
	ID               ProductID
	Scope            Scope
	PlaceID          *pricing.PlaceID
	RoomID           *pricing.RoomID
	Name             string
	Strategy         PricingStrategy
	TotalQuantity    int
	ReservedQuantity int
}

type NewProductInput struct {
	ID            ProductID
	Scope         Scope
	PlaceID       *pricing.PlaceID
	RoomID        *pricing.RoomID
	Name          string
	Strategy      PricingStrategy
	TotalQuantity int
}

func NewProduct(in NewProductInput) (Product, error) {
	const op = "product.NewProduct"
	if in.ID <= 0 {
		return Product{}, apperror.Validation(op, "product id must be positive")
	}
	if strings.TrimSpace(in.Name) == "" {
		return Product{}, apperror.Validation(op, "product name is required")
	}
	if in.TotalQuantity < 0 {
		return Product{}, apperror.Validation(op, "total quantity must not be negative")
	}
	if err := validateScopeIDs(in.Scope, in.PlaceID, in.RoomID); err != nil {
		return Product{}, err
	}
	return Product{
		ID:            in.ID,
		Scope:         in.Scope,
		PlaceID:       in.PlaceID,
		RoomID:        in.RoomID,
		Name:          strings.TrimSpace(in.Name),
		Strategy:      in.Strategy,
		TotalQuantity: in.TotalQuantity,
	}, nil
}

func validateScopeIDs(scope Scope, placeID *pricing.PlaceID, roomID *pricing.RoomID) error {
	const op = "product.validateScope"
	switch scope {
	case ScopePlace:
		if placeID == nil || roomID != nil {
			return apperror.Validation(op, "PLACE products carry a place id and no room id")
		}
	case ScopeRoom:
		if roomID == nil || placeID != nil {
			return apperror.Validation(op, "ROOM products carry a room id and no place id")
		}
	case ScopeReservation:
		if roomID != nil || placeID != nil {
			return apperror.Validation(op, "RESERVATION products carry neither place nor room id")
		}
	default:
		return apperror.Validation(op, "unknown product scope %q", scope)
	}
	return nil
}

// AccessibleFrom reports whether a room of the given place may book this product.
func (p Product) AccessibleFrom(placeID pricing.PlaceID, roomID pricing.RoomID) bool {
	switch p.Scope {
	case ScopePlace:
		return p.PlaceID != nil && *p.PlaceID == placeID
	case ScopeRoom:
		return p.RoomID != nil && *p.RoomID == roomID
	default:
		return p.Scope == ScopeReservation
	}
}

// Remaining is the global stock not yet claimed through ReserveQuantity.
func (p Product) Remaining() int {
	if r := p.TotalQuantity - p.ReservedQuantity; r > 0 {
		return r
	}
	return 0
}

// UpdateTotalQuantity never lets the total drop under what is already reserved.
func (p *Product) UpdateTotalQuantity(total int) error {
	const op = "product.UpdateTotalQuantity"
	if total < 0 {
		return apperror.Validation(op, "total quantity must not be negative")
	}
	if total < p.ReservedQuantity {
		return apperror.Validation(op, "total %d is below reserved quantity %d", total, p.ReservedQuantity).
			With("product_id", int64(p.ID))
	}
	p.TotalQuantity = total
	return nil
}

// Quote prices quantity units of the product.
func (p Product) Quote(quantity int) (money.Money, error) {
	return p.Strategy.Calculate(quantity)
}
