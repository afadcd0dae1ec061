package events

import (
	"encoding/json"

	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
)

type decoder func(payload []byte) (Inbound, error)

var decoders = map[string]decoder{
	TypeRoomCreated:                decodeAs[RoomCreated],
	TypeRoomUpdated:                decodeAs[RoomUpdated],
	TypeRoomDeleted:                decodeAs[RoomDeleted],
	TypeSlotReserved:               decodeAs[SlotReserved],
	TypePaymentCompleted:           decodeAs[PaymentCompleted],
	TypeReservationCancelRequested: decodeAs[ReservationCancelRequested],
	TypeRefundCompleted:            decodeAs[RefundCompleted],
}

func decodeAs[T Inbound](payload []byte) (Inbound, error) {
	var ev T
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, apperror.Validation("events.Decode", "malformed %s payload: %v", ev.EventType(), err)
	}
	return ev, nil
}

// Decode maps an event_type header and JSON payload to a typed event.
func Decode(eventType string, payload []byte) (Inbound, error) {
	dec, ok := decoders[eventType]
	if !ok {
		return nil, apperror.Validation("events.Decode", "unknown event type %q", eventType)
	}
	return dec(payload)
}

// Known reports whether eventType has a decoder.
func Known(eventType string) bool {
	_, ok := decoders[eventType]
	return ok
}
