// Package events holds the messages this service consumes from other services and routes
// them to the pricing and reservation use cases.
package events

import (
	"time"

	pricing "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
	product "github.com/dmehra2102/Reservation-Pricing-Service/internal/product/domain"
	reservation "github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/domain"
)

// Inbound is implemented only by the event types below.
type Inbound interface {
	EventType() string
	inbound()
}

const (
	TypeRoomCreated                = "room.created"
	TypeRoomUpdated                = "room.updated"
	TypeRoomDeleted                = "room.deleted"
	TypeSlotReserved               = "reservation.slot_reserved"
	TypePaymentCompleted           = "payment.completed"
	TypeReservationCancelRequested = "reservation.cancel_requested"
	TypeRefundCompleted            = "payment.refund_completed"
)

type RoomCreated struct {
	RoomID   pricing.RoomID  `json:"roomId"`
	PlaceID  pricing.PlaceID `json:"placeId"`
	TimeSlot string          `json:"timeSlot"`
}

func (RoomCreated) EventType() string {
	return TypeRoomCreated
}

func (RoomCreated) inbound() {}

type RoomUpdated struct {
	RoomID   pricing.RoomID `json:"roomId"`
	TimeSlot string         `json:"timeSlot"`
}

func (RoomUpdated) EventType() string {
	return TypeRoomUpdated
}

func (RoomUpdated) inbound() {}

type RoomDeleted struct {
	RoomID pricing.RoomID `json:"roomId"`
}

func (RoomDeleted) EventType() string {
	return TypeRoomDeleted
}

func (RoomDeleted) inbound() {}

type ReservedProduct struct {
	ProductID product.ProductID `json:"productId"`
	Quantity  int               `json:"quantity"`
}

type SlotReserved struct {
	ReservationID reservation.ReservationID `json:"reservationId"`
	RoomID        pricing.RoomID            `json:"roomId"`
	SlotTimes     []time.Time               `json:"slotTimes"`
	Products      []ReservedProduct         `json:"products"`
}

func (SlotReserved) EventType() string {
	return TypeSlotReserved
}

func (SlotReserved) inbound() {}

type PaymentCompleted struct {
	ReservationID reservation.ReservationID `json:"reservationId"`
}

func (PaymentCompleted) EventType() string {
	return TypePaymentCompleted
}

func (PaymentCompleted) inbound() {}

type ReservationCancelRequested struct {
	ReservationID reservation.ReservationID `json:"reservationId"`
}

func (ReservationCancelRequested) EventType() string {
	return TypeReservationCancelRequested
}

func (ReservationCancelRequested) inbound() {}

type RefundCompleted struct {
	ReservationID reservation.ReservationID `json:"reservationId"`
}

func (RefundCompleted) EventType() string {
	return TypeRefundCompleted
}

func (RefundCompleted) inbound() {}
