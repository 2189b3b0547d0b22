package producers

import (
	"context"

	"github.com/ledger-rail-bridge/internal/domain/outcome"
	"github.com/segmentio/kafka-go"
)

// OutcomePublisher publishes terminal action outcomes
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, event *outcome.Event) error
	Close() error
}

// DeadLetterPublisher records ledger notifications that could not be delivered
type DeadLetterPublisher interface {
	PublishDeadLetter(ctx context.Context, letter *outcome.DeadLetter) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
