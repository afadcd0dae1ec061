package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	slotPricesTable  = "reservation_slot_prices"
	defaultPartition = "reservation_slot_prices_default"
)

// Partition is one monthly range of reservation_slot_prices, [From, To) in UTC.
type Partition struct {
	Name string
	From time.Time
	To   time.Time
}

func MonthlyPartition(t time.Time) Partition {
	u := t.UTC()
	from := time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Partition{
		Name: fmt.Sprintf("%s_%04d_%02d", slotPricesTable, from.Year(), int(from.Month())),
		From: from,
		To:   from.AddDate(0, 1, 0),
	}
}

// PartitionsAhead lists the partition of now's month and the monthsAhead months after it.
func PartitionsAhead(now time.Time, monthsAhead int) []Partition {
	first := MonthlyPartition(now)
	out := make([]Partition, 0, monthsAhead+1)
	for i := 0; i <= monthsAhead; i++ {
		out = append(out, MonthlyPartition(first.From.AddDate(0, i, 0)))
	}
	return out
}

type PartitionMaintainer struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewPartitionMaintainer(log *slog.Logger, pool *pgxpool.Pool) *PartitionMaintainer {
	return &PartitionMaintainer{log: log, pool: pool}
}

// Ensure creates missing monthly partitions. A failure on one month does not stop the others.
func (m *PartitionMaintainer) Ensure(ctx context.Context, now time.Time, monthsAhead int) error {
	var firstErr error
	for _, p := range PartitionsAhead(now, monthsAhead) {
		created, moved, err := m.ensure(ctx, p)
		if err != nil {
			m.log.Error("create slot price partition failed", "partition", p.Name, "err", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("create partition %s: %w", p.Name, err)
			}
			continue
		}
		if created {
			m.log.Info("slot price partition created", "partition", p.Name, "rows_moved", moved)
		}
	}
	return firstErr
}

// ensure creates one partition. Rows for its range that already landed in the default
// partition would make CREATE fail, so the default is detached, its rows for the month
// are moved into the new partition, and it is attached again, all in one transaction.
func (m *PartitionMaintainer) ensure(ctx context.Context, p Partition) (created bool, moved int64, err error) {
	err = pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, p.Name).Scan(&exists); err != nil {
			return fmt.Errorf("look up partition: %w", err)
		}
		if exists {
			return nil
		}

		parent := pgx.Identifier{slotPricesTable}.Sanitize()
		def := pgx.Identifier{defaultPartition}.Sanitize()
		if _, err := tx.Exec(ctx, fmt.Sprintf(`ALTER TABLE %s DETACH PARTITION %s`, parent, def)); err != nil {
			return fmt.Errorf("detach default partition: %w", err)
		}
		create := fmt.Sprintf(`CREATE TABLE %s PARTITION OF %s FOR VALUES FROM ('%s') TO ('%s')`,
			pgx.Identifier{p.Name}.Sanitize(), parent,
			p.From.Format(time.RFC3339), p.To.Format(time.RFC3339))
		if _, err := tx.Exec(ctx, create); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, fmt.Sprintf(
			`INSERT INTO %s SELECT * FROM %s WHERE slot_start >= $1 AND slot_start < $2`, parent, def), p.From, p.To)
		if err != nil {
			return fmt.Errorf("move rows from default partition: %w", err)
		}
		moved = tag.RowsAffected()
		if _, err := tx.Exec(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE slot_start >= $1 AND slot_start < $2`, def), p.From, p.To); err != nil {
			return fmt.Errorf("clear moved rows: %w", err)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`ALTER TABLE %s ATTACH PARTITION %s DEFAULT`, parent, def)); err != nil {
			return fmt.Errorf("attach default partition: %w", err)
		}
		created = true
		return nil
	})
	return created, moved, err
}
