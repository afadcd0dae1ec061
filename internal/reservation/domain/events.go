package domain

import (
	"strconv"
	"time"

	pricing "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/money"
)

const AggregateType = "reservation_pricing"

// Event is an outbound fact about a reservation. Payloads are serialized as JSON.
type Event interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

type PricingCalculated struct {
	ReservationID ReservationID           `json:"reservationId"`
	RoomID        pricing.RoomID          `json:"roomId"`
	Slots         []SlotPrice             `json:"slots"`
	Products      []ProductPriceBreakdown `json:"products"`
	Total         money.Money             `json:"total"`
	ExpiresAt     time.Time               `json:"expiresAt"`
	At            time.Time               `json:"occurredAt"`
}

func (e PricingCalculated) EventName() string {
	return "reservation.pricing_calculated"
}

func (e PricingCalculated) AggregateID() string {
	return strconv.FormatInt(int64(e.ReservationID), 10)
}

func (e PricingCalculated) OccurredAt() time.Time {
	return e.At
}

type ReservationConfirmed struct {
	ReservationID ReservationID  `json:"reservationId"`
	RoomID        pricing.RoomID `json:"roomId"`
	Total         money.Money    `json:"total"`
	At            time.Time      `json:"occurredAt"`
}

func (e ReservationConfirmed) EventName() string {
	return "reservation.confirmed"
}

func (e ReservationConfirmed) AggregateID() string {
	return strconv.FormatInt(int64(e.ReservationID), 10)
}

func (e ReservationConfirmed) OccurredAt() time.Time {
	return e.At
}

type ReservationCancelled struct {
	ReservationID  ReservationID  `json:"reservationId"`
	RoomID         pricing.RoomID `json:"roomId"`
	PreviousStatus Status         `json:"previousStatus"`
	Reason         CancelReason   `json:"reason"`
	At             time.Time      `json:"occurredAt"`
}

func (e ReservationCancelled) EventName() string {
	return "reservation.cancelled"
}

func (e ReservationCancelled) AggregateID() string {
	return strconv.FormatInt(int64(e.ReservationID), 10)
}

func (e ReservationCancelled) OccurredAt() time.Time {
	return e.At
}

type ReservationRefunded struct {
	ReservationID ReservationID  `json:"reservationId"`
	RoomID        pricing.RoomID `json:"roomId"`
	Amount        money.Money    `json:"amount"`
	At            time.Time      `json:"occurredAt"`
}

func (e ReservationRefunded) EventName() string {
	return "reservation.refunded"
}

func (e ReservationRefunded) AggregateID() string {
	return strconv.FormatInt(int64(e.ReservationID), 10)
}

func (e ReservationRefunded) OccurredAt() time.Time {
	return e.At
}
