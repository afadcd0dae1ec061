package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
)

func TestDecodeSlotReserved(t *testing.T) {
	payload := []byte(`{"reservationId":42,"roomId":7,"slotTimes":["2026-10-19T10:00:00Z","2026-10-19T11:00:00Z"],"products":[{"productId":3,"quantity":2}]}`)

	ev, err := Decode(TypeSlotReserved, payload)
	require.NoError(t, err)

	got, ok := ev.(SlotReserved)
	require.True(t, ok)
	assert.EqualValues(t, 42, got.ReservationID)
	assert.EqualValues(t, 7, got.RoomID)
	require.Len(t, got.SlotTimes, 2)
	assert.True(t, got.SlotTimes[1].Equal(time.Date(2026, 10, 19, 11, 0, 0, 0, time.UTC)))
	assert.Equal(t, []ReservedProduct{{ProductID: 3, Quantity: 2}}, got.Products)
}

func TestDecodeEveryKnownType(t *testing.T) {
	cases := map[string]Inbound{
		TypeRoomCreated:                RoomCreated{RoomID: 1, PlaceID: 2, TimeSlot: "HOUR"},
		TypeRoomUpdated:                RoomUpdated{RoomID: 1, TimeSlot: "HALFHOUR"},
		TypeRoomDeleted:                RoomDeleted{RoomID: 1},
		TypePaymentCompleted:           PaymentCompleted{ReservationID: 5},
		TypeReservationCancelRequested: ReservationCancelRequested{ReservationID: 5},
		TypeRefundCompleted:            RefundCompleted{ReservationID: 5},
	}
	payloads := map[string]string{
		TypeRoomCreated:                `{"roomId":1,"placeId":2,"timeSlot":"HOUR"}`,
		TypeRoomUpdated:                `{"roomId":1,"timeSlot":"HALFHOUR"}`,
		TypeRoomDeleted:                `{"roomId":1}`,
		TypePaymentCompleted:           `{"reservationId":5}`,
		TypeReservationCancelRequested: `{"reservationId":5}`,
		TypeRefundCompleted:            `{"reservationId":5}`,
	}
	for typ, want := range cases {
		t.Run(typ, func(t *testing.T) {
			got, err := Decode(typ, []byte(payloads[typ]))
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, typ, got.EventType())
		})
	}
}

func TestDecodeRejectsUnknownAndMalformed(t *testing.T) {
	_, err := Decode("order.created", []byte(`{}`))
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.False(t, Known("order.created"))

	_, err = Decode(TypeRoomDeleted, []byte(`{"roomId":"x"`))
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}
