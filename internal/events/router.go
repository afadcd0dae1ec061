package events

import (
	"context"
	"log/slog"

	pricingapp "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/application"
	pricing "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
	reservationapp "github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/application"
	reservation "github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
)

type PolicyHandler interface {
	CreateDefault(ctx context.Context, in pricingapp.CreatePolicyInput) (bool, error)
	UpdateTimeSlot(ctx context.Context, roomID pricing.RoomID, slot pricing.TimeSlot) (*pricing.PricingPolicy, error)
	Delete(ctx context.Context, roomID pricing.RoomID) error
}

type ReservationHandler interface {
	HandleSlotReserved(ctx context.Context, req reservationapp.PriceRequest) (*reservation.ReservationPricing, bool, error)
	Confirm(ctx context.Context, id reservation.ReservationID) (*reservation.ReservationPricing, error)
	Cancel(ctx context.Context, id reservation.ReservationID, reason reservation.CancelReason) (*reservation.ReservationPricing, error)
	Refund(ctx context.Context, id reservation.ReservationID) (*reservation.ReservationPricing, error)
}

type Router struct {
	log          *slog.Logger
	policies     PolicyHandler
	reservations ReservationHandler
}

func NewRouter(log *slog.Logger, policies PolicyHandler, reservations ReservationHandler) *Router {
	return &Router{log: log, policies: policies, reservations: reservations}
}

func (r *Router) Handle(ctx context.Context, ev Inbound) error {
	switch e := ev.(type) {
	case RoomCreated:
		slot, err := pricing.ParseTimeSlot(e.TimeSlot)
		if err != nil {
			return err
		}
		_, err = r.policies.CreateDefault(ctx, pricingapp.CreatePolicyInput{RoomID: e.RoomID, PlaceID: e.PlaceID, TimeSlot: slot})
		return err

	case RoomUpdated:
		slot, err := pricing.ParseTimeSlot(e.TimeSlot)
		if err != nil {
			return err
		}
		_, err = r.policies.UpdateTimeSlot(ctx, e.RoomID, slot)
		return err

	case RoomDeleted:
		return r.policies.Delete(ctx, e.RoomID)

	case SlotReserved:
		req := reservationapp.PriceRequest{
			ReservationID: e.ReservationID,
			RoomID:        e.RoomID,
			Slots:         e.SlotTimes,
			Products:      make([]reservationapp.ProductRequest, 0, len(e.Products)),
		}
		for _, p := range e.Products {
			req.Products = append(req.Products, reservationapp.ProductRequest{ProductID: p.ProductID, Quantity: p.Quantity})
		}
		_, created, err := r.reservations.HandleSlotReserved(ctx, req)
		if err == nil && !created {
			r.log.Info("slot reserved redelivered, existing pricing kept", "reservation_id", e.ReservationID)
		}
		return err

	case PaymentCompleted:
		_, err := r.reservations.Confirm(ctx, e.ReservationID)
		return r.tolerateReplay(err, e)

	case ReservationCancelRequested:
		_, err := r.reservations.Cancel(ctx, e.ReservationID, reservation.ReasonUser)
		return r.tolerateReplay(err, e)

	case RefundCompleted:
		_, err := r.reservations.Refund(ctx, e.ReservationID)
		return r.tolerateReplay(err, e)
	}
	return apperror.Validation("events.Route", "no route for %T", ev)
}

// tolerateReplay turns a transition the aggregate already went through into a no-op.
func (r *Router) tolerateReplay(err error, ev Inbound) error {
	if apperror.Is(err, apperror.KindInvalidStateTransition) {
		r.log.Warn("event ignored, reservation not in expected state", "event_type", ev.EventType(), "err", err)
		return nil
	}
	return err
}
