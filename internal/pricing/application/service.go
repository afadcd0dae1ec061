package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/money"
)

type Service struct {
	log  *slog.Logger
	repo PolicyRepository
	tx   Transactor
}

func NewService(log *slog.Logger, repo PolicyRepository, tx Transactor) *Service {
	return &Service{log: log, repo: repo, tx: tx}
}

type CreatePolicyInput struct {
	RoomID   domain.RoomID
	PlaceID  domain.PlaceID
	TimeSlot domain.TimeSlot
}

// CreateDefault creates a zero-priced policy for a new room. Redelivered room events are skipped.
func (s *Service) CreateDefault(ctx context.Context, in CreatePolicyInput) (created bool, err error) {
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		exists, err := s.repo.ExistsByRoomID(ctx, in.RoomID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		policy, err := domain.NewPricingPolicy(in.RoomID, in.PlaceID, in.TimeSlot, money.Zero)
		if err != nil {
			return err
		}
		if err := s.repo.Save(ctx, policy); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if created {
		s.log.Info("pricing policy created", "room_id", in.RoomID, "place_id", in.PlaceID, "time_slot", in.TimeSlot.String())
	} else {
		s.log.Info("pricing policy already exists, skipped", "room_id", in.RoomID)
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, roomID domain.RoomID) (*domain.PricingPolicy, error) {
	return s.repo.FindByRoomID(ctx, roomID)
}

// PlaceOf resolves the place of a room from its policy.
func (s *Service) PlaceOf(ctx context.Context, roomID domain.RoomID) (domain.PlaceID, error) {
	p, err := s.repo.FindByRoomID(ctx, roomID)
	if err != nil {
		return 0, err
	}
	return p.PlaceID(), nil
}

func (s *Service) ListByPlace(ctx context.Context, placeID domain.PlaceID) ([]*domain.PricingPolicy, error) {
	return s.repo.FindAllByPlaceID(ctx, placeID)
}

func (s *Service) UpdateDefaultPrice(ctx context.Context, roomID domain.RoomID, price money.Money) (*domain.PricingPolicy, error) {
	return s.mutate(ctx, roomID, func(p *domain.PricingPolicy) error {
		p.UpdateDefaultPrice(price)
		return nil
	})
}

type TimeRangePriceInput struct {
	Day   string
	Start string
	End   string
	Price money.Money
}

// ResetPrices replaces all overrides of a room. An invalid or overlapping entry aborts the whole update.
func (s *Service) ResetPrices(ctx context.Context, roomID domain.RoomID, in []TimeRangePriceInput) (*domain.PricingPolicy, error) {
	items := make([]domain.TimeRangePrice, 0, len(in))
	for _, e := range in {
		day, err := domain.ParseDayOfWeek(e.Day)
		if err != nil {
			return nil, err
		}
		r, err := domain.ParseTimeRange(e.Start, e.End)
		if err != nil {
			return nil, err
		}
		items = append(items, domain.TimeRangePrice{Day: day, Range: r, Price: e.Price})
	}
	prices, err := domain.NewTimeRangePrices(items)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, roomID, func(p *domain.PricingPolicy) error {
		p.ResetPrices(prices)
		return nil
	})
}

func (s *Service) UpdateTimeSlot(ctx context.Context, roomID domain.RoomID, slot domain.TimeSlot) (*domain.PricingPolicy, error) {
	var changed bool
	p, err := s.mutate(ctx, roomID, func(p *domain.PricingPolicy) error {
		var err error
		changed, err = p.UpdateTimeSlot(slot)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.log.Info("pricing policy time slot changed", "room_id", roomID, "time_slot", slot.String())
	}
	return p, nil
}

// CopyPolicy overwrites the target room's rates with the source room's.
func (s *Service) CopyPolicy(ctx context.Context, sourceRoomID, targetRoomID domain.RoomID) (*domain.PricingPolicy, error) {
	var target *domain.PricingPolicy
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		source, err := s.repo.FindByRoomID(ctx, sourceRoomID)
		if err != nil {
			return err
		}
		target, err = s.repo.FindByRoomIDForUpdate(ctx, targetRoomID)
		if err != nil {
			return err
		}
		if err := target.CopyFrom(source); err != nil {
			return err
		}
		return s.repo.Save(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("pricing policy copied", "source_room_id", sourceRoomID, "target_room_id", targetRoomID)
	return target, nil
}

func (s *Service) Delete(ctx context.Context, roomID domain.RoomID) error {
	if err := s.repo.DeleteByRoomID(ctx, roomID); err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			s.log.Info("pricing policy already deleted", "room_id", roomID)
			return nil
		}
		return err
	}
	s.log.Info("pricing policy deleted", "room_id", roomID)
	return nil
}

func (s *Service) PriceBreakdown(ctx context.Context, roomID domain.RoomID, start, end time.Time) (domain.PriceBreakdown, error) {
	p, err := s.repo.FindByRoomID(ctx, roomID)
	if err != nil {
		return domain.PriceBreakdown{}, err
	}
	return p.CalculatePriceBreakdown(start, end)
}

func (s *Service) mutate(ctx context.Context, roomID domain.RoomID, fn func(p *domain.PricingPolicy) error) (*domain.PricingPolicy, error) {
	var policy *domain.PricingPolicy
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.FindByRoomIDForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		policy = p
		return s.repo.Save(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return policy, nil
}
