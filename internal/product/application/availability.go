package application

import (
	"context"
	"time"

	"github.com/dmehra2102/Reservation-Pricing-Service/internal/product/domain"
	reservation "github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
)

// Checker answers availability for one product scope.
type Checker interface {
	IsAvailable(ctx context.Context, p domain.Product, slots []time.Time, quantity int) (bool, error)
	AvailableQuantity(ctx context.Context, p domain.Product, slots []time.Time) (int, error)
}

// ReservationScopedChecker treats stock as a global pool independent of time.
type ReservationScopedChecker struct{}

func (ReservationScopedChecker) IsAvailable(_ context.Context, p domain.Product, _ []time.Time, quantity int) (bool, error) {
	return quantity <= p.TotalQuantity, nil
}

func (ReservationScopedChecker) AvailableQuantity(_ context.Context, p domain.Product, _ []time.Time) (int, error) {
	return p.Remaining(), nil
}

// TimeScopedChecker counts units held by active reservations on each requested slot.
type TimeScopedChecker struct {
	finder ReservationFinder
}

func NewTimeScopedChecker(finder ReservationFinder) *TimeScopedChecker {
	return &TimeScopedChecker{finder: finder}
}

func (c *TimeScopedChecker) IsAvailable(ctx context.Context, p domain.Product, slots []time.Time, quantity int) (bool, error) {
	used, err := c.maxUsed(ctx, p, slots)
	if err != nil {
		return false, err
	}
	return used+quantity <= p.TotalQuantity, nil
}

func (c *TimeScopedChecker) AvailableQuantity(ctx context.Context, p domain.Product, slots []time.Time) (int, error) {
	used, err := c.maxUsed(ctx, p, slots)
	if err != nil {
		return 0, err
	}
	return max(0, p.TotalQuantity-used), nil
}

func (c *TimeScopedChecker) maxUsed(ctx context.Context, p domain.Product, slots []time.Time) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}
	from, to := slots[0], slots[0]
	for _, s := range slots[1:] {
		if s.Before(from) {
			from = s
		}
		if s.After(to) {
			to = s
		}
	}
	active, err := c.finder.FindByTimeRangeAndStatus(ctx, from, to, reservation.ActiveStatuses)
	if err != nil {
		return 0, err
	}

	maxUsed := 0
	for _, slot := range slots {
		used := 0
		for _, r := range active {
			if r.Slots().Contains(slot) {
				used += r.ProductQuantity(p.ID)
			}
		}
		maxUsed = max(maxUsed, used)
	}
	return maxUsed, nil
}

// AvailabilityService routes a product to the checker of its scope.
type AvailabilityService struct {
	reservationScoped Checker
	timeScoped        Checker
}

func NewAvailabilityService(finder ReservationFinder) *AvailabilityService {
	return &AvailabilityService{
		reservationScoped: ReservationScopedChecker{},
		timeScoped:        NewTimeScopedChecker(finder),
	}
}

func (s *AvailabilityService) checker(p domain.Product) Checker {
	if p.Scope.TimeSensitive() {
		return s.timeScoped
	}
	return s.reservationScoped
}

func (s *AvailabilityService) IsAvailable(ctx context.Context, p domain.Product, slots []time.Time, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, apperror.Validation("product.IsAvailable", "requested quantity must be positive, got %d", quantity).
			With("product_id", int64(p.ID))
	}
	return s.checker(p).IsAvailable(ctx, p, slots, quantity)
}

func (s *AvailabilityService) CalculateAvailableQuantity(ctx context.Context, p domain.Product, slots []time.Time) (int, error) {
	return s.checker(p).AvailableQuantity(ctx, p, slots)
}
