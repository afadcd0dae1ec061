package kafka

import (
	"github.com/segmentio/kafka-go"
)

// NewWriter returns a producer that waits for every in-sync replica before acknowledging.
// Topics are set per message by the outbox dispatcher.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}
