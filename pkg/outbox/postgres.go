package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewPostgresStore(log *slog.Logger, pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{log: log, pool: pool}
}

func (s *PostgresStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration, maxRetries int) ([]Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
SELECT id, aggregate_type, aggregate_id, type, payload, headers, traceparent, created_at, retry_count
FROM outbox
WHERE status = 'pending'
   OR (status = 'in_progress' AND lease_until < now())
   OR (status = 'failed' AND retry_count < $2)
ORDER BY id
FOR UPDATE SKIP LOCKED
LIMIT $1`, batchSize, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("select outbox batch: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var (
			e           Event
			headers     map[string]string
			traceparent *string
		)
		err := row.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.Type, &e.Payload, &headers, &traceparent, &e.CreatedAt, &e.RetryCount)
		e.Headers = headers
		if traceparent != nil {
			e.Traceparent = *traceparent
		}
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan outbox batch: %w", err)
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
UPDATE outbox
SET status = 'in_progress', relay_id = $1, lease_until = now() + make_interval(secs => $2)
WHERE id = ANY($3)`, relayID, lease.Seconds(), pendingIDs(events))
	if err != nil {
		return nil, fmt.Errorf("lease outbox batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *PostgresStore) MarkSent(ctx context.Context, ids []int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status = 'sent', sent_at = now() WHERE id = ANY($1)`, ids)
	return err
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE outbox SET status = 'failed', last_error = $2, retry_count = retry_count + 1
WHERE id = $1`, id, errMsg)
	return err
}

func (s *PostgresStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	_, err := s.pool.Exec(ctx, `
UPDATE outbox SET lease_until = now() + make_interval(secs => $1)
WHERE id = ANY($2) AND relay_id = $3`, lease.Seconds(), ids, relayID)
	return err
}
