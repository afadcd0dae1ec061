package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/Reservation-Pricing-Service/internal/inventory/domain"
)

// DeadLetterStore records compensation tasks that ran out of retries.
type DeadLetterStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewDeadLetterStore(log *slog.Logger, pool *pgxpool.Pool) *DeadLetterStore {
	return &DeadLetterStore{log: log, pool: pool}
}

func (s *DeadLetterStore) Record(ctx context.Context, task domain.CompensationTask) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO inventory_compensation_failures
	(task_id, reservation_id, product_id, room_id, quantity, slots, retry_count, last_error, enqueued_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (task_id) DO NOTHING`,
		task.ID, int64(task.ReservationID), int64(task.ProductID), int64(task.RoomID), task.Quantity,
		task.Slots, task.RetryCount, task.LastError, task.EnqueuedAt)
	if err != nil {
		return fmt.Errorf("record compensation failure: %w", err)
	}
	s.log.Info("compensation failure recorded", "task_id", task.ID.String(), "reservation_id", task.ReservationID)
	return nil
}

func (s *DeadLetterStore) RecordMalformed(ctx context.Context, payload, decodeErr string) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO inventory_compensation_malformed (payload, decode_error) VALUES ($1, $2)`, payload, decodeErr)
	if err != nil {
		return fmt.Errorf("record malformed compensation task: %w", err)
	}
	s.log.Info("malformed compensation task recorded", "payload_bytes", len(payload))
	return nil
}
