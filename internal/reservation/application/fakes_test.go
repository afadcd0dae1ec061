package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	inventory "github.com/dmehra2102/Reservation-Pricing-Service/internal/inventory/domain"
	pricing "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
	product "github.com/dmehra2102/Reservation-Pricing-Service/internal/product/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
)

type fakeReservationRepo struct {
	mu    sync.Mutex
	items map[domain.ReservationID]*domain.ReservationPricing
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{items: map[domain.ReservationID]*domain.ReservationPricing{}}
}

func clone(r *domain.ReservationPricing) *domain.ReservationPricing {
	return domain.Restore(domain.RestoreInput{
		ID:           r.ID(),
		RoomID:       r.RoomID(),
		Slots:        r.Slots(),
		Products:     r.Products(),
		Total:        r.Total(),
		Status:       r.Status(),
		CreatedAt:    r.CreatedAt(),
		ExpiresAt:    r.ExpiresAt(),
		CalculatedAt: r.CalculatedAt(),
		UpdatedAt:    r.UpdatedAt(),
	})
}

func (f *fakeReservationRepo) FindByID(_ context.Context, id domain.ReservationID) (*domain.ReservationPricing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return nil, apperror.NotFound("fake", "reservation %d not found", id)
	}
	return clone(r), nil
}

func (f *fakeReservationRepo) FindByIDForUpdate(ctx context.Context, id domain.ReservationID) (*domain.ReservationPricing, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeReservationRepo) Exists(_ context.Context, id domain.ReservationID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[id]
	return ok, nil
}

func (f *fakeReservationRepo) Create(_ context.Context, r *domain.ReservationPricing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[r.ID()]; ok {
		return domain.ErrAlreadyExists
	}
	f.items[r.ID()] = clone(r)
	return nil
}

func (f *fakeReservationRepo) Save(_ context.Context, r *domain.ReservationPricing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[r.ID()] = clone(r)
	return nil
}

func (f *fakeReservationRepo) Delete(_ context.Context, id domain.ReservationID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

func (f *fakeReservationRepo) FindByTimeRangeAndStatus(_ context.Context, from, to time.Time, statuses []domain.Status) ([]*domain.ReservationPricing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.ReservationPricing
	for _, r := range f.items {
		first, last := r.Slots().Span()
		if last.Before(from) || first.After(to) {
			continue
		}
		for _, s := range statuses {
			if r.Status() == s {
				out = append(out, clone(r))
			}
		}
	}
	return out, nil
}

func (f *fakeReservationRepo) FindExpiredPending(_ context.Context, now time.Time, limit int) ([]domain.ReservationID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []domain.ReservationID
	for id, r := range f.items {
		if r.IsExpired(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type fakePolicies map[pricing.RoomID]*pricing.PricingPolicy

func (f fakePolicies) FindByRoomID(_ context.Context, id pricing.RoomID) (*pricing.PricingPolicy, error) {
	p, ok := f[id]
	if !ok {
		return nil, apperror.NotFound("fake", "no policy for room %d", id)
	}
	return p, nil
}

type fakeProducts struct {
	mu         sync.Mutex
	products   map[product.ProductID]product.Product
	releaseErr error
}

func newFakeProducts(ps ...product.Product) *fakeProducts {
	f := &fakeProducts{products: map[product.ProductID]product.Product{}}
	for _, p := range ps {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProducts) FindByID(_ context.Context, id product.ProductID) (product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return product.Product{}, apperror.NotFound("fake", "product %d not found", id)
	}
	return p, nil
}

func (f *fakeProducts) LockForUpdate(_ context.Context, ids []product.ProductID) ([]product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProducts) ReserveQuantity(_ context.Context, id product.ProductID, quantity int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.products[id]
	if p.TotalQuantity-p.ReservedQuantity < quantity {
		return false, nil
	}
	p.ReservedQuantity += quantity
	f.products[id] = p
	return true, nil
}

func (f *fakeProducts) ReleaseQuantity(_ context.Context, id product.ProductID, quantity int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.releaseErr != nil {
		return false, f.releaseErr
	}
	p := f.products[id]
	if p.ReservedQuantity < quantity {
		return false, nil
	}
	p.ReservedQuantity -= quantity
	f.products[id] = p
	return true, nil
}

func (f *fakeProducts) reserved(id product.ProductID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].ReservedQuantity
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, events ...domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

type recordingScheduler struct {
	tasks []inventory.CompensationTask
}

func (s *recordingScheduler) Schedule(_ context.Context, task inventory.CompensationTask) {
	s.tasks = append(s.tasks, task)
}

// serialTx runs one transaction at a time, standing in for row locks.
type serialTx struct {
	mu sync.Mutex
}

func (t *serialTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

var errDown = errors.New("database unavailable")
