package outbox

import (
	"context"

	"github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/outbox"
)

// Publisher appends reservation events to the outbox in the caller's transaction.
type Publisher struct {
	writer *outbox.Writer
}

func NewPublisher(writer *outbox.Writer) *Publisher {
	return &Publisher{writer: writer}
}

func (p *Publisher) Publish(ctx context.Context, events ...domain.Event) error {
	msgs := make([]outbox.Message, 0, len(events))
	for _, e := range events {
		msgs = append(msgs, e)
	}
	return p.writer.Write(ctx, msgs...)
}
