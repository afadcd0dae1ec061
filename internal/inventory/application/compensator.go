package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmehra2102/Reservation-Pricing-Service/internal/inventory/domain"
	product "github.com/dmehra2102/Reservation-Pricing-Service/internal/product/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/clock"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/logging"
)

const DefaultMaxRetries = 5

type StockReleaser interface {
	ReleaseQuantity(ctx context.Context, id product.ProductID, quantity int) (bool, error)
}

// DeadLetterStore keeps tasks that exhausted their retries for operators.
type DeadLetterStore interface {
	Record(ctx context.Context, task domain.CompensationTask) error
	// RecordMalformed keeps a queued payload that no longer decodes.
	RecordMalformed(ctx context.Context, payload, decodeErr string) error
}

type Compensator struct {
	log        *slog.Logger
	queue      Queue
	releaser   StockReleaser
	deadLetter DeadLetterStore
	clock      clock.Clock
	maxRetries int
}

func NewCompensator(log *slog.Logger, queue Queue, releaser StockReleaser, deadLetter DeadLetterStore, clk clock.Clock, maxRetries int) *Compensator {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Compensator{
		log:        log,
		queue:      queue,
		releaser:   releaser,
		deadLetter: deadLetter,
		clock:      clk,
		maxRetries: maxRetries,
	}
}

// Schedule queues a failed release. It never fails the caller; a dropped task is logged as critical.
func (c *Compensator) Schedule(ctx context.Context, task domain.CompensationTask) {
	if err := c.queue.Enqueue(ctx, task); err != nil {
		level := slog.LevelError
		if errors.Is(err, ErrQueueFull) {
			level = logging.LevelCritical
		}
		c.log.Log(ctx, level, "compensation task dropped", c.taskAttrs(task, "err", err)...)
		return
	}
	c.log.Warn("compensation task queued", c.taskAttrs(task)...)
}

// RetryPending drains the queue once and retries every task.
func (c *Compensator) RetryPending(ctx context.Context) error {
	tasks, err := c.queue.Drain(ctx)
	var malformed *MalformedTasksError
	switch {
	case errors.As(err, &malformed):
		c.deadLetterMalformed(ctx, malformed.Entries)
	case err != nil:
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	var released, requeued, dead int
	for _, task := range tasks {
		switch c.retry(ctx, task) {
		case outcomeReleased:
			released++
		case outcomeRequeued:
			requeued++
		case outcomeDead:
			dead++
		}
	}
	c.log.Info("compensation sweep finished", "tasks", len(tasks), "released", released, "requeued", requeued, "dead_lettered", dead)
	return nil
}

func (c *Compensator) deadLetterMalformed(ctx context.Context, entries []MalformedEntry) {
	for _, e := range entries {
		c.log.Log(ctx, logging.LevelCritical, "malformed compensation task removed from queue, manual intervention required",
			"payload", e.Payload, "err", e.Err)
		if err := c.deadLetter.RecordMalformed(ctx, e.Payload, e.Err); err != nil {
			c.log.Error("record malformed compensation task failed", "payload", e.Payload, "err", err)
		}
	}
}

type outcome int

const (
	outcomeReleased outcome = iota
	outcomeRequeued
	outcomeDead
)

func (c *Compensator) retry(ctx context.Context, task domain.CompensationTask) (result outcome) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("compensation retry panicked", c.taskAttrs(task, "panic", r)...)
			result = c.fail(ctx, task, errors.New("panic during release"))
		}
	}()

	ok, err := c.releaser.ReleaseQuantity(ctx, task.ProductID, task.Quantity)
	if err != nil {
		return c.fail(ctx, task, err)
	}
	if !ok {
		c.log.Warn("compensation release matched no stock", c.taskAttrs(task)...)
	} else {
		c.log.Info("compensation release succeeded", c.taskAttrs(task)...)
	}
	return outcomeReleased
}

func (c *Compensator) fail(ctx context.Context, task domain.CompensationTask, cause error) outcome {
	next := task.Retried(cause, c.clock.Now())
	if next.RetryCount >= c.maxRetries {
		c.log.Log(ctx, logging.LevelCritical, "compensation retries exhausted, manual intervention required",
			c.taskAttrs(next, "max_retries", c.maxRetries)...)
		if err := c.deadLetter.Record(ctx, next); err != nil {
			c.log.Error("record dead compensation task failed", c.taskAttrs(next, "err", err)...)
		}
		return outcomeDead
	}
	c.Schedule(ctx, next)
	return outcomeRequeued
}

func (c *Compensator) taskAttrs(task domain.CompensationTask, extra ...any) []any {
	attrs := []any{
		"task_id", task.ID.String(),
		"reservation_id", task.ReservationID,
		"product_id", task.ProductID,
		"quantity", task.Quantity,
		"retry_count", task.RetryCount,
	}
	if task.LastError != "" {
		attrs = append(attrs, "last_error", task.LastError)
	}
	return append(attrs, extra...)
}
