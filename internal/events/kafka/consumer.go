package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Reservation-Pricing-Service/internal/events"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/outbox"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/tracing"
)

const EventTypeHeader = "event_type"

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Deduplicator interface {
	Key(topic string, partition int, offset int64) string
	EventKey(eventID string) string
	Seen(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type Handler interface {
	Handle(ctx context.Context, ev events.Inbound) error
}

type Consumer struct {
	log      *slog.Logger
	reader   Reader
	handler  Handler
	idem     Deduplicator
	tracer   trace.Tracer
	attempts int
	backoff  time.Duration
	// maxHold caps the wait between redeliveries of a message whose handling keeps failing.
	maxHold time.Duration
}

func NewConsumer(log *slog.Logger, brokers, topics []string, group string, handler Handler, idem Deduplicator) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupTopics: topics,
		GroupID:     group,
	})
	return NewConsumerWithReader(log, r, handler, idem)
}

func NewConsumerWithReader(log *slog.Logger, reader Reader, handler Handler, idem Deduplicator) *Consumer {
	return &Consumer{
		log:      log,
		reader:   reader,
		handler:  handler,
		idem:     idem,
		tracer:   otel.Tracer("events-consumer"),
		attempts: 3,
		backoff:  200 * time.Millisecond,
		maxHold:  30 * time.Second,
	}
}

// Run commits a message only once it is processed, skipped or rejected for good.
// Internal failures hold the offset and the message is retried in place, so later offsets
// of the partition are never committed past it.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				c.log.Info("consumer stopping")
				return nil
			}
			return err
		}
		if !c.processUntilSettled(ctx, msg) {
			c.log.Info("consumer stopping, offset left uncommitted", "topic", msg.Topic, "offset", msg.Offset)
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "topic", msg.Topic, "offset", msg.Offset, "err", err)
		}
	}
}

// processUntilSettled reports false when ctx ended before the message settled.
func (c *Consumer) processUntilSettled(ctx context.Context, msg kafka.Message) bool {
	for round := 0; ; round++ {
		err := c.process(ctx, msg)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		wait := c.holdFor(round)
		c.log.Error("event handling failed, offset held",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset,
			"round", round+1, "retry_in", wait.String(), "err", err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

func (c *Consumer) holdFor(round int) time.Duration {
	wait := c.backoff
	for i := 0; i < round && wait < c.maxHold; i++ {
		wait *= 2
	}
	return min(wait, c.maxHold)
}

// process returns an error only for internal failures that must be retried.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	eventType := tracing.HeaderValue(msg.Headers, EventTypeHeader)
	if !events.Known(eventType) {
		c.log.Debug("message skipped, event type not handled", "topic", msg.Topic, "event_type", eventType)
		return nil
	}

	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	if id := tracing.HeaderValue(msg.Headers, outbox.EventIDHeader); id != "" {
		key = c.idem.EventKey(id)
	}
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		c.log.Error("idempotency check failed", "key", key, "err", err)
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return nil
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "Consume "+eventType, trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination", msg.Topic),
		attribute.Int64("messaging.kafka.offset", msg.Offset),
	)

	ev, err := events.Decode(eventType, msg.Value)
	if err != nil {
		c.log.Error("decode failed, message dropped", "event_type", eventType, "offset", msg.Offset, "err", err)
		span.SetStatus(codes.Error, err.Error())
		return nil
	}

	err = c.handle(msgCtx, ev)
	switch {
	case err == nil:
		c.log.Info("event processed", "event_type", eventType, "topic", msg.Topic, "offset", msg.Offset)
		return nil
	case apperror.KindOf(err) != apperror.KindInternal:
		c.log.Warn("event rejected", append([]any{"event_type", eventType, "offset", msg.Offset, "err", err}, logAttrs(err)...)...)
		span.SetStatus(codes.Error, err.Error())
		return nil
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if relErr := c.idem.Release(context.WithoutCancel(ctx), key); relErr != nil {
			c.log.Warn("idempotency release failed", "key", key, "err", relErr)
		}
		return err
	}
}

// handle retries internal failures with linear backoff. Domain rejections are final.
func (c *Consumer) handle(ctx context.Context, ev events.Inbound) error {
	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		err = c.handler.Handle(ctx, ev)
		if err == nil || apperror.KindOf(err) != apperror.KindInternal {
			return err
		}
		if attempt == c.attempts {
			break
		}
		c.log.Warn("event handling retry", "event_type", ev.EventType(), "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}
	return err
}

func logAttrs(err error) []any {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.LogAttrs()
	}
	return nil
}
