package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	inventory "github.com/dmehra2102/Reservation-Pricing-Service/internal/inventory/domain"
	pricing "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
	product "github.com/dmehra2102/Reservation-Pricing-Service/internal/product/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/clock"
)

const DefaultPendingTimeout = 20 * time.Minute

type Service struct {
	log            *slog.Logger
	repo           ReservationRepository
	policies       PolicyFinder
	products       ProductStore
	availability   AvailabilityChecker
	publisher      EventPublisher
	compensation   CompensationScheduler
	tx             Transactor
	clock          clock.Clock
	pendingTimeout time.Duration
}

type Deps struct {
	Repo         ReservationRepository
	Policies     PolicyFinder
	Products     ProductStore
	Availability AvailabilityChecker
	Publisher    EventPublisher
	Compensation CompensationScheduler
	Tx           Transactor
	Clock        clock.Clock
}

func NewService(log *slog.Logger, d Deps, pendingTimeout time.Duration) *Service {
	if pendingTimeout <= 0 {
		pendingTimeout = DefaultPendingTimeout
	}
	return &Service{
		log:            log,
		repo:           d.Repo,
		policies:       d.Policies,
		products:       d.Products,
		availability:   d.Availability,
		publisher:      d.Publisher,
		compensation:   d.Compensation,
		tx:             d.Tx,
		clock:          d.Clock,
		pendingTimeout: pendingTimeout,
	}
}

type ProductRequest struct {
	ProductID product.ProductID
	Quantity  int
}

// PriceRequest is a room booking to be priced: the slot start instants plus add-on products.
type PriceRequest struct {
	ReservationID domain.ReservationID
	RoomID        pricing.RoomID
	Slots         []time.Time
	Products      []ProductRequest
}

// Quote prices a request without persisting it or claiming stock.
func (s *Service) Quote(ctx context.Context, req PriceRequest) (domain.TimeSlotPriceBreakdown, []domain.ProductPriceBreakdown, error) {
	policy, err := s.policies.FindByRoomID(ctx, req.RoomID)
	if err != nil {
		return domain.TimeSlotPriceBreakdown{}, nil, err
	}
	slots, err := priceSlots(policy, req.Slots)
	if err != nil {
		return domain.TimeSlotPriceBreakdown{}, nil, err
	}

	ids, err := requestedIDs(req.Products)
	if err != nil {
		return domain.TimeSlotPriceBreakdown{}, nil, err
	}
	byID := make(map[product.ProductID]product.Product, len(ids))
	for _, id := range ids {
		p, err := s.products.FindByID(ctx, id)
		if err != nil {
			return domain.TimeSlotPriceBreakdown{}, nil, err
		}
		byID[id] = p
	}
	products, err := s.priceProducts(ctx, policy, slots, req.Products, byID)
	if err != nil {
		return domain.TimeSlotPriceBreakdown{}, nil, err
	}
	return slots, products, nil
}

// HandleSlotReserved prices a reserved slot set, claims product stock and stores a PENDING snapshot.
// Redelivery of the same reservation id returns the stored snapshot unchanged.
func (s *Service) HandleSlotReserved(ctx context.Context, req PriceRequest) (*domain.ReservationPricing, bool, error) {
	var created *domain.ReservationPricing
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		exists, err := s.repo.Exists(ctx, req.ReservationID)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrAlreadyExists
		}

		policy, err := s.policies.FindByRoomID(ctx, req.RoomID)
		if err != nil {
			return err
		}
		slots, err := priceSlots(policy, req.Slots)
		if err != nil {
			return err
		}

		ids, err := requestedIDs(req.Products)
		if err != nil {
			return err
		}
		locked, err := s.products.LockForUpdate(ctx, ids)
		if err != nil {
			return err
		}
		byID := make(map[product.ProductID]product.Product, len(locked))
		for _, p := range locked {
			byID[p.ID] = p
		}
		products, err := s.priceProducts(ctx, policy, slots, req.Products, byID)
		if err != nil {
			return err
		}
		if err := s.reserveGlobalStock(ctx, req.ReservationID, products); err != nil {
			return err
		}

		r, err := domain.Calculate(domain.CalculateInput{
			ID:             req.ReservationID,
			RoomID:         req.RoomID,
			Slots:          slots,
			Products:       products,
			Now:            s.clock.Now(),
			PendingTimeout: s.pendingTimeout,
		})
		if err != nil {
			return err
		}
		if err := s.repo.Create(ctx, r); err != nil {
			return err
		}
		if err := s.publisher.Publish(ctx, r.PullEvents()...); err != nil {
			return fmt.Errorf("publish pricing calculated: %w", err)
		}
		created = r
		return nil
	})

	if errors.Is(err, domain.ErrAlreadyExists) {
		existing, findErr := s.repo.FindByID(ctx, req.ReservationID)
		if findErr != nil {
			return nil, false, findErr
		}
		s.log.Info("reservation pricing already exists, skipped", "reservation_id", req.ReservationID)
		return existing, false, nil
	}
	if err != nil {
		s.logFailure("reservation pricing failed", req.ReservationID, err)
		return nil, false, err
	}
	s.log.Info("reservation priced",
		"reservation_id", created.ID(),
		"room_id", created.RoomID(),
		"slots", created.Slots().Len(),
		"products", len(created.Products()),
		"total", created.Total().String())
	return created, true, nil
}

func (s *Service) Get(ctx context.Context, id domain.ReservationID) (*domain.ReservationPricing, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) Confirm(ctx context.Context, id domain.ReservationID) (*domain.ReservationPricing, error) {
	r, err := s.transition(ctx, id, func(r *domain.ReservationPricing, now time.Time) error {
		return r.Confirm(now)
	})
	if err != nil {
		s.logFailure("reservation confirm failed", id, err)
		return nil, err
	}
	s.log.Info("reservation confirmed", "reservation_id", id)
	return r, nil
}

// Cancel moves the reservation to CANCELLED and gives global stock back after commit.
func (s *Service) Cancel(ctx context.Context, id domain.ReservationID, reason domain.CancelReason) (*domain.ReservationPricing, error) {
	r, err := s.transition(ctx, id, func(r *domain.ReservationPricing, now time.Time) error {
		return r.Cancel(now, reason)
	})
	if err != nil {
		s.logFailure("reservation cancel failed", id, err)
		return nil, err
	}
	s.log.Info("reservation cancelled", "reservation_id", id, "reason", reason)
	s.releaseGlobalStock(ctx, r)
	return r, nil
}

func (s *Service) Refund(ctx context.Context, id domain.ReservationID) (*domain.ReservationPricing, error) {
	r, err := s.transition(ctx, id, func(r *domain.ReservationPricing, now time.Time) error {
		return r.Refund(now)
	})
	if err != nil {
		s.logFailure("reservation refund failed", id, err)
		return nil, err
	}
	s.log.Info("reservation refunded", "reservation_id", id, "amount", r.Total().String())
	s.releaseGlobalStock(ctx, r)
	return r, nil
}

// CancelExpiredPending cancels up to limit expired PENDING reservations, each in its own transaction.
func (s *Service) CancelExpiredPending(ctx context.Context, limit int) (int, error) {
	now := s.clock.Now()
	ids, err := s.repo.FindExpiredPending(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return cancelled, ctx.Err()
		}
		var stillExpired bool
		r, err := s.transition(ctx, id, func(r *domain.ReservationPricing, now time.Time) error {
			if !r.IsExpired(now) {
				return nil
			}
			stillExpired = true
			return r.Cancel(now, domain.ReasonExpired)
		})
		if err != nil {
			s.logFailure("expire reservation failed", id, err)
			continue
		}
		if !stillExpired {
			continue
		}
		cancelled++
		s.log.Info("reservation expired", "reservation_id", id)
		s.releaseGlobalStock(ctx, r)
	}
	return cancelled, nil
}

func (s *Service) transition(ctx context.Context, id domain.ReservationID, fn func(r *domain.ReservationPricing, now time.Time) error) (*domain.ReservationPricing, error) {
	var out *domain.ReservationPricing
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		r, err := s.repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		before := r.Status()
		if err := fn(r, s.clock.Now()); err != nil {
			return err
		}
		out = r
		if r.Status() == before {
			return nil
		}
		if err := s.repo.Save(ctx, r); err != nil {
			return err
		}
		return s.publisher.Publish(ctx, r.PullEvents()...)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) priceProducts(ctx context.Context, policy *pricing.PricingPolicy, slots domain.TimeSlotPriceBreakdown,
	reqs []ProductRequest, byID map[product.ProductID]product.Product) ([]domain.ProductPriceBreakdown, error) {
	const op = "reservation.priceProducts"

	instants := make([]time.Time, 0, slots.Len())
	for _, sp := range slots.Slots() {
		instants = append(instants, sp.StartsAt)
	}

	out := make([]domain.ProductPriceBreakdown, 0, len(reqs))
	for _, req := range reqs {
		p, ok := byID[req.ProductID]
		if !ok {
			return nil, apperror.NotFound(op, "product %d not found", req.ProductID).With("product_id", int64(req.ProductID))
		}
		if !p.AccessibleFrom(policy.PlaceID(), policy.RoomID()) {
			return nil, apperror.Validation(op, "product %d is not offered in room %d", p.ID, policy.RoomID())
		}
		available, err := s.availability.IsAvailable(ctx, p, instants, req.Quantity)
		if err != nil {
			return nil, err
		}
		if !available {
			return nil, apperror.ProductNotAvailable(op, "product %d cannot supply %d units", p.ID, req.Quantity).
				With("product_id", int64(p.ID)).
				With("quantity", req.Quantity)
		}
		b, err := domain.PriceProduct(p, req.Quantity)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// reserveGlobalStock claims RESERVATION-scoped stock inside the creating transaction,
// so a later failure rolls the claims back with it.
func (s *Service) reserveGlobalStock(ctx context.Context, id domain.ReservationID, products []domain.ProductPriceBreakdown) error {
	for _, p := range products {
		if p.Scope != product.ScopeReservation {
			continue
		}
		ok, err := s.products.ReserveQuantity(ctx, p.ProductID, p.Quantity)
		if err != nil {
			return fmt.Errorf("reserve product %d for reservation %d: %w", p.ProductID, id, err)
		}
		if !ok {
			return apperror.ProductNotAvailable("reservation.reserveStock", "product %d ran out of stock", p.ProductID).
				With("product_id", int64(p.ProductID)).
				With("quantity", p.Quantity).
				With("reservation_id", int64(id))
		}
	}
	return nil
}

// releaseGlobalStock runs after commit. A failed release is handed to the compensation queue.
func (s *Service) releaseGlobalStock(ctx context.Context, r *domain.ReservationPricing) {
	slots := make([]time.Time, 0, r.Slots().Len())
	for _, sp := range r.Slots().Slots() {
		slots = append(slots, sp.StartsAt)
	}
	for _, p := range r.Products() {
		if p.Scope != product.ScopeReservation {
			continue
		}
		ok, err := s.products.ReleaseQuantity(ctx, p.ProductID, p.Quantity)
		if err != nil {
			s.log.Error("release stock failed, scheduling compensation",
				"reservation_id", r.ID(), "product_id", p.ProductID, "quantity", p.Quantity, "err", err)
			s.compensation.Schedule(ctx, inventory.NewCompensationTask(r.ID(), p.ProductID, r.RoomID(), p.Quantity, slots, err, s.clock.Now()))
			continue
		}
		if !ok {
			s.log.Warn("release stock matched nothing", "reservation_id", r.ID(), "product_id", p.ProductID, "quantity", p.Quantity)
		}
	}
}

func (s *Service) logFailure(msg string, id domain.ReservationID, err error) {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		s.log.Warn(msg, append([]any{"reservation_id", id, "err", err}, appErr.LogAttrs()...)...)
		return
	}
	s.log.Error(msg, "reservation_id", id, "err", err)
}

func priceSlots(policy *pricing.PricingPolicy, instants []time.Time) (domain.TimeSlotPriceBreakdown, error) {
	b, err := policy.PriceSlots(instants)
	if err != nil {
		return domain.TimeSlotPriceBreakdown{}, err
	}
	slots := make([]domain.SlotPrice, 0, len(b.Slots))
	for _, sp := range b.Slots {
		slots = append(slots, domain.SlotPrice{StartsAt: sp.At, Price: sp.Price})
	}
	return domain.NewTimeSlotPriceBreakdown(slots)
}

func requestedIDs(reqs []ProductRequest) ([]product.ProductID, error) {
	ids := make([]product.ProductID, 0, len(reqs))
	seen := make(map[product.ProductID]struct{}, len(reqs))
	for _, r := range reqs {
		if r.Quantity <= 0 {
			return nil, apperror.Validation("reservation.requestedIDs", "quantity of product %d must be positive", r.ProductID)
		}
		if _, dup := seen[r.ProductID]; dup {
			return nil, apperror.Validation("reservation.requestedIDs", "product %d requested twice", r.ProductID)
		}
		seen[r.ProductID] = struct{}{}
		ids = append(ids, r.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
