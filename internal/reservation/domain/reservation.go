package domain

import (
	"errors"
	"strings"
	"time"

	pricing "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
	product "github.com/dmehra2102/Reservation-Pricing-Service/internal/product/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/money"
)

type ReservationID int64

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(s)); st {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return st, nil
	}
	return "", apperror.Validation("reservation.ParseStatus", "unknown status %q", s)
}

// ActiveStatuses hold stock.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

type CancelReason string

const (
	ReasonUser    CancelReason = "user"
	ReasonExpired CancelReason = "expired"
)

// ReservationPricing is the immutable price snapshot of one reservation plus its lifecycle status.
type ReservationPricing struct {
	id         ReservationID
	roomID     pricing.RoomID
	slots      TimeSlotPriceBreakdown
	products   []ProductPriceBreakdown
	total      money.Money
	status     Status
	createdAt  time.Time
	expiresAt  *time.Time
	calculated time.Time
	updatedAt  time.Time

	events []Event
}

type CalculateInput struct {
	ID             ReservationID
	RoomID         pricing.RoomID
	Slots          TimeSlotPriceBreakdown
	Products       []ProductPriceBreakdown
	Now            time.Time
	PendingTimeout time.Duration
}

// Calculate builds a PENDING snapshot and records a PricingCalculated event.
func Calculate(in CalculateInput) (*ReservationPricing, error) {
	const op = "reservation.Calculate"
	if in.ID <= 0 {
		return nil, apperror.Validation(op, "reservation id must be positive")
	}
	if in.RoomID <= 0 {
		return nil, apperror.Validation(op, "room id must be positive")
	}
	if in.Slots.Len() == 0 {
		return nil, apperror.Validation(op, "at least one slot is required")
	}
	if in.PendingTimeout <= 0 {
		return nil, apperror.Validation(op, "pending timeout must be positive")
	}
	seen := make(map[product.ProductID]struct{}, len(in.Products))
	for _, p := range in.Products {
		if _, dup := seen[p.ProductID]; dup {
			return nil, apperror.Validation(op, "product %d requested twice", p.ProductID)
		}
		seen[p.ProductID] = struct{}{}
	}

	total := in.Slots.Total()
	for _, p := range in.Products {
		total = total.Add(p.Total)
	}
	expires := in.Now.Add(in.PendingTimeout)
	products := make([]ProductPriceBreakdown, len(in.Products))
	copy(products, in.Products)

	r := &ReservationPricing{
		id:         in.ID,
		roomID:     in.RoomID,
		slots:      in.Slots,
		products:   products,
		total:      total,
		status:     StatusPending,
		createdAt:  in.Now,
		expiresAt:  &expires,
		calculated: in.Now,
		updatedAt:  in.Now,
	}
	r.record(PricingCalculated{
		ReservationID: r.id,
		RoomID:        r.roomID,
		Slots:         in.Slots.Slots(),
		Products:      r.Products(),
		Total:         total,
		ExpiresAt:     expires,
		At:            in.Now,
	})
	return r, nil
}

type RestoreInput struct {
	ID           ReservationID
	RoomID       pricing.RoomID
	Slots        TimeSlotPriceBreakdown
	Products     []ProductPriceBreakdown
	Total        money.Money
	Status       Status
	CreatedAt    time.Time
	ExpiresAt    *time.Time
	CalculatedAt time.Time
	UpdatedAt    time.Time
}

// Restore rebuilds a reservation from storage without recording events.
func Restore(in RestoreInput) *ReservationPricing {
	return &ReservationPricing{
		id:         in.ID,
		roomID:     in.RoomID,
		slots:      in.Slots,
		products:   in.Products,
		total:      in.Total,
		status:     in.Status,
		createdAt:  in.CreatedAt,
		expiresAt:  in.ExpiresAt,
		calculated: in.CalculatedAt,
		updatedAt:  in.UpdatedAt,
	}
}

func (r *ReservationPricing) ID() ReservationID {
	return r.id
}

func (r *ReservationPricing) RoomID() pricing.RoomID {
	return r.roomID
}

func (r *ReservationPricing) Slots() TimeSlotPriceBreakdown {
	return r.slots
}

func (r *ReservationPricing) Products() []ProductPriceBreakdown {
	out := make([]ProductPriceBreakdown, len(r.products))
	copy(out, r.products)
	return out
}

func (r *ReservationPricing) Total() money.Money {
	return r.total
}

func (r *ReservationPricing) Status() Status {
	return r.status
}

func (r *ReservationPricing) CreatedAt() time.Time {
	return r.createdAt
}

// ExpiresAt is nil once the reservation left PENDING.
func (r *ReservationPricing) ExpiresAt() *time.Time {
	return r.expiresAt
}

func (r *ReservationPricing) CalculatedAt() time.Time {
	return r.calculated
}

func (r *ReservationPricing) UpdatedAt() time.Time {
	return r.updatedAt
}

func (r *ReservationPricing) IsExpired(now time.Time) bool {
	return r.status == StatusPending && r.expiresAt != nil && !now.Before(*r.expiresAt)
}

// ProductQuantity is the quantity of id held by this reservation, 0 when absent.
func (r *ReservationPricing) ProductQuantity(id product.ProductID) int {
	for _, p := range r.products {
		if p.ProductID == id {
			return p.Quantity
		}
	}
	return 0
}

func (r *ReservationPricing) Confirm(now time.Time) error {
	if r.status != StatusPending {
		return r.transitionError("confirm")
	}
	r.moveTo(StatusConfirmed, now)
	r.record(ReservationConfirmed{ReservationID: r.id, RoomID: r.roomID, Total: r.total, At: now})
	return nil
}

// Cancel is allowed from PENDING and CONFIRMED. Cancelling twice is an error.
func (r *ReservationPricing) Cancel(now time.Time, reason CancelReason) error {
	if r.status == StatusCancelled {
		return r.transitionError("cancel")
	}
	from := r.status
	r.moveTo(StatusCancelled, now)
	r.record(ReservationCancelled{ReservationID: r.id, RoomID: r.roomID, PreviousStatus: from, Reason: reason, At: now})
	return nil
}

func (r *ReservationPricing) Refund(now time.Time) error {
	if r.status != StatusConfirmed {
		return r.transitionError("refund")
	}
	r.moveTo(StatusCancelled, now)
	r.record(ReservationRefunded{ReservationID: r.id, RoomID: r.roomID, Amount: r.total, At: now})
	return nil
}

func (r *ReservationPricing) moveTo(s Status, now time.Time) {
	r.status = s
	r.expiresAt = nil
	r.updatedAt = now
}

func (r *ReservationPricing) transitionError(action string) error {
	return apperror.InvalidStateTransition("reservation."+action,
		"cannot %s reservation %d in status %s", action, r.id, r.status).
		With("reservation_id", int64(r.id)).
		With("action", action).
		With("status", string(r.status))
}

func (r *ReservationPricing) record(e Event) {
	r.events = append(r.events, e)
}

// PullEvents returns and clears the events recorded since the last call.
func (r *ReservationPricing) PullEvents() []Event {
	out := r.events
	r.events = nil
	return out
}

// ErrAlreadyExists is returned by storage when a reservation id is inserted twice.
var ErrAlreadyExists = errors.New("reservation already exists")
