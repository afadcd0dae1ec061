package application

import (
	"context"
	"log/slog"
	"sort"
	"time"

	pricing "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/internal/product/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
)

// RoomLocator resolves the place a room belongs to.
type RoomLocator interface {
	PlaceOf(ctx context.Context, roomID pricing.RoomID) (pricing.PlaceID, error)
}

type Service struct {
	log          *slog.Logger
	repo         ProductRepository
	tx           Transactor
	rooms        RoomLocator
	availability *AvailabilityService
}

func NewService(log *slog.Logger, repo ProductRepository, tx Transactor, rooms RoomLocator, availability *AvailabilityService) *Service {
	return &Service{log: log, repo: repo, tx: tx, rooms: rooms, availability: availability}
}

func (s *Service) Register(ctx context.Context, in domain.NewProductInput) (domain.Product, error) {
	p, err := domain.NewProduct(in)
	if err != nil {
		return domain.Product{}, err
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		exists, err := s.repo.Exists(ctx, p.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperror.Validation("product.Register", "product %d already exists", p.ID)
		}
		return s.repo.Save(ctx, p)
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.log.Info("product registered", "product_id", p.ID, "scope", p.Scope, "total_quantity", p.TotalQuantity)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id domain.ProductID) (domain.Product, error) {
	return s.repo.FindByID(ctx, id)
}

// ListAccessible returns every product a booking of roomID may add.
func (s *Service) ListAccessible(ctx context.Context, roomID pricing.RoomID) ([]domain.Product, error) {
	placeID, err := s.rooms.PlaceOf(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.ListAccessibleIn(ctx, placeID, roomID)
}

func (s *Service) ListAccessibleIn(ctx context.Context, placeID pricing.PlaceID, roomID pricing.RoomID) ([]domain.Product, error) {
	return s.repo.FindAccessible(ctx, placeID, roomID)
}

func (s *Service) UpdateTotalQuantity(ctx context.Context, id domain.ProductID, total int) (domain.Product, error) {
	var updated domain.Product
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		locked, err := s.repo.LockForUpdate(ctx, []domain.ProductID{id})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return apperror.NotFound("product.UpdateTotalQuantity", "product %d not found", id)
		}
		p := locked[0]
		if err := p.UpdateTotalQuantity(total); err != nil {
			return err
		}
		updated = p
		return s.repo.Save(ctx, p)
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.log.Info("product total quantity updated", "product_id", id, "total_quantity", total)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id domain.ProductID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("product deleted", "product_id", id)
	return nil
}

type Availability struct {
	ProductID         domain.ProductID
	Available         bool
	AvailableQuantity int
}

// CheckAvailability is the read-only availability view used for display; booking re-checks under lock.
func (s *Service) CheckAvailability(ctx context.Context, id domain.ProductID, roomID pricing.RoomID, slots []time.Time, quantity int) (Availability, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Availability{}, err
	}
	placeID, err := s.rooms.PlaceOf(ctx, roomID)
	if err != nil {
		return Availability{}, err
	}
	if !p.AccessibleFrom(placeID, roomID) {
		return Availability{}, apperror.Validation("product.CheckAvailability", "product %d is not offered in room %d", id, roomID)
	}
	slots = sortedSlots(slots)

	ok, err := s.availability.IsAvailable(ctx, p, slots, quantity)
	if err != nil {
		return Availability{}, err
	}
	n, err := s.availability.CalculateAvailableQuantity(ctx, p, slots)
	if err != nil {
		return Availability{}, err
	}
	return Availability{ProductID: id, Available: ok, AvailableQuantity: n}, nil
}

func sortedSlots(slots []time.Time) []time.Time {
	out := make([]time.Time, len(slots))
	copy(out, slots)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
