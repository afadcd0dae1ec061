package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/pgxtx"
)

// EventIDHeader carries a unique id per outbox row so consumers can deduplicate across relays.
const EventIDHeader = "event_id"

// Writer inserts messages into the outbox table. Called inside a pgxtx transaction,
// the rows commit or roll back together with the state change that produced them.
type Writer struct {
	log           *slog.Logger
	pool          *pgxpool.Pool
	aggregateType string
	headers       map[string]string
}

func NewWriter(log *slog.Logger, pool *pgxpool.Pool, aggregateType string, headers map[string]string) *Writer {
	return &Writer{log: log, pool: pool, aggregateType: aggregateType, headers: headers}
}

func (w *Writer) Write(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	traceparent := carrier.Get("traceparent")

	conn := pgxtx.Conn(ctx, w.pool)
	for _, m := range msgs {
		payload, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode %s: %w", m.EventName(), err)
		}
		headers := make(map[string]string, len(w.headers)+1)
		for k, v := range w.headers {
			headers[k] = v
		}
		headers[EventIDHeader] = uuid.NewString()
		_, err = conn.Exec(ctx, `
INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7)`,
			w.aggregateType, m.AggregateID(), m.EventName(), payload, headers, traceparent, m.OccurredAt())
		if err != nil {
			return fmt.Errorf("insert outbox %s: %w", m.EventName(), err)
		}
		w.log.Debug("outbox event written", "type", m.EventName(), "aggregate_id", m.AggregateID())
	}
	return nil
}
