package domain

import (
	"time"

	"github.com/google/uuid"

	pricing "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
	product "github.com/dmehra2102/Reservation-Pricing-Service/internal/product/domain"
	reservation "github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/domain"
)

// CompensationTask is a stock release that failed and must be retried.
type CompensationTask struct {
	ID            uuid.UUID                 `json:"id"`
	ReservationID reservation.ReservationID `json:"reservationId"`
	ProductID     product.ProductID         `json:"productId"`
	RoomID        pricing.RoomID            `json:"roomId"`
	Quantity      int                       `json:"quantity"`
	Slots         []time.Time               `json:"slots"`
	RetryCount    int                       `json:"retryCount"`
	LastError     string                    `json:"lastError,omitempty"`
	EnqueuedAt    time.Time                 `json:"enqueuedAt"`
}

func NewCompensationTask(reservationID reservation.ReservationID, productID product.ProductID, roomID pricing.RoomID,
	quantity int, slots []time.Time, cause error, now time.Time) CompensationTask {
	t := CompensationTask{
		ID:            uuid.New(),
		ReservationID: reservationID,
		ProductID:     productID,
		RoomID:        roomID,
		Quantity:      quantity,
		Slots:         slots,
		EnqueuedAt:    now,
	}
	if cause != nil {
		t.LastError = cause.Error()
	}
	return t
}

// Retried returns the task as it should be re-queued after one more failed attempt.
func (t CompensationTask) Retried(cause error, now time.Time) CompensationTask {
	t.RetryCount++
	t.LastError = cause.Error()
	t.EnqueuedAt = now
	return t
}
