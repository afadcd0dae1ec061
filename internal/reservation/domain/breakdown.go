package domain

import (
	"sort"
	"time"

	product "github.com/dmehra2102/Reservation-Pricing-Service/internal/product/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/money"
)

type SlotPrice struct {
	StartsAt time.Time   `json:"startsAt"`
	Price    money.Money `json:"price"`
}

// TimeSlotPriceBreakdown is the ordered slot-start to price map of one reservation.
type TimeSlotPriceBreakdown struct {
	slots []SlotPrice
}

func NewTimeSlotPriceBreakdown(slots []SlotPrice) (TimeSlotPriceBreakdown, error) {
	const op = "reservation.NewTimeSlotPriceBreakdown"
	if len(slots) == 0 {
		return TimeSlotPriceBreakdown{}, apperror.Validation(op, "at least one slot is required")
	}
	sorted := make([]SlotPrice, len(slots))
	copy(sorted, slots)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartsAt.Before(sorted[j].StartsAt) })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].StartsAt.Equal(sorted[i-1].StartsAt) {
			return TimeSlotPriceBreakdown{}, apperror.Validation(op, "duplicate slot %s", sorted[i].StartsAt.Format(time.RFC3339))
		}
	}
	return TimeSlotPriceBreakdown{slots: sorted}, nil
}

func (b TimeSlotPriceBreakdown) Slots() []SlotPrice {
	out := make([]SlotPrice, len(b.slots))
	copy(out, b.slots)
	return out
}

// Contains matches the exact slot instant, regardless of location.
func (b TimeSlotPriceBreakdown) Contains(t time.Time) bool {
	i := sort.Search(len(b.slots), func(i int) bool { return !b.slots[i].StartsAt.Before(t) })
	return i < len(b.slots) && b.slots[i].StartsAt.Equal(t)
}

func (b TimeSlotPriceBreakdown) Total() money.Money {
	total := money.Zero
	for _, s := range b.slots {
		total = total.Add(s.Price)
	}
	return total
}

// Span returns the first slot start and the last slot start.
func (b TimeSlotPriceBreakdown) Span() (first, last time.Time) {
	if len(b.slots) == 0 {
		return time.Time{}, time.Time{}
	}
	return b.slots[0].StartsAt, b.slots[len(b.slots)-1].StartsAt
}

func (b TimeSlotPriceBreakdown) Len() int {
	return len(b.slots)
}

type ProductPriceBreakdown struct {
	ProductID   product.ProductID   `json:"productId"`
	Name        string              `json:"name"`
	Scope       product.Scope       `json:"scope"`
	PricingType product.PricingType `json:"pricingType"`
	Quantity    int                 `json:"quantity"`
	UnitPrice   money.Money         `json:"unitPrice"`
	Total       money.Money         `json:"total"`
}

// PriceProduct snapshots what quantity units of p cost right now.
func PriceProduct(p product.Product, quantity int) (ProductPriceBreakdown, error) {
	total, err := p.Quote(quantity)
	if err != nil {
		return ProductPriceBreakdown{}, err
	}
	return ProductPriceBreakdown{
		ProductID:   p.ID,
		Name:        p.Name,
		Scope:       p.Scope,
		PricingType: p.Strategy.Type,
		Quantity:    quantity,
		UnitPrice:   p.Strategy.InitialPrice,
		Total:       total,
	}, nil
}
