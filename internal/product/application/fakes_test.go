package application

import (
	"context"
	"sync"
	"time"

	pricing "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/internal/product/domain"
	reservation "github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
)

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[domain.ProductID]domain.Product
}

func newFakeProductRepo(products ...domain.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: map[domain.ProductID]domain.Product{}}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) FindByID(_ context.Context, id domain.ProductID) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return domain.Product{}, apperror.NotFound("fake", "product %d not found", id)
	}
	return p, nil
}

func (r *fakeProductRepo) FindAccessible(_ context.Context, placeID pricing.PlaceID, roomID pricing.RoomID) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Product
	for _, p := range r.products {
		if p.AccessibleFrom(placeID, roomID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) Exists(_ context.Context, id domain.ProductID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.products[id]
	return ok, nil
}

func (r *fakeProductRepo) Save(_ context.Context, p domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) Delete(_ context.Context, id domain.ProductID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return apperror.NotFound("fake", "product %d not found", id)
	}
	delete(r.products, id)
	return nil
}

func (r *fakeProductRepo) LockForUpdate(_ context.Context, ids []domain.ProductID) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Product
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) ReserveQuantity(_ context.Context, id domain.ProductID, quantity int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok || p.TotalQuantity-p.ReservedQuantity < quantity {
		return false, nil
	}
	p.ReservedQuantity += quantity
	r.products[id] = p
	return true, nil
}

func (r *fakeProductRepo) ReleaseQuantity(_ context.Context, id domain.ProductID, quantity int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok || p.ReservedQuantity < quantity {
		return false, nil
	}
	p.ReservedQuantity -= quantity
	r.products[id] = p
	return true, nil
}

type fakeFinder struct {
	reservations []*reservation.ReservationPricing
}

func (f *fakeFinder) FindByTimeRangeAndStatus(_ context.Context, from, to time.Time, statuses []reservation.Status) ([]*reservation.ReservationPricing, error) {
	var out []*reservation.ReservationPricing
	for _, r := range f.reservations {
		first, last := r.Slots().Span()
		if last.Before(from) || first.After(to) {
			continue
		}
		for _, s := range statuses {
			if r.Status() == s {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

type fixedRooms map[pricing.RoomID]pricing.PlaceID

func (f fixedRooms) PlaceOf(_ context.Context, roomID pricing.RoomID) (pricing.PlaceID, error) {
	p, ok := f[roomID]
	if !ok {
		return 0, apperror.NotFound("fake", "room %d not found", roomID)
	}
	return p, nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
