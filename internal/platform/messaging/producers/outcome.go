package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ledger-rail-bridge/internal/config"
	"github.com/ledger-rail-bridge/internal/domain/outcome"
	"github.com/segmentio/kafka-go"
)

// OutcomeProducer writes one message per terminal action, keyed by handle
type OutcomeProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewOutcomeProducer ensures the outcome topic exists and opens an async writer
func NewOutcomeProducer(logger *slog.Logger, cfg *config.KafkaConfig) (*OutcomeProducer, error) {
	if cfg.OutcomeTopic == "" {
		return nil, fmt.Errorf("kafka outcome topic is not configured")
	}
	if err := ensureTopic(cfg, cfg.OutcomeTopic, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure outcome topic %s exists: %w", cfg.OutcomeTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.OutcomeTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		WriteTimeout: cfg.WriteTimeout,
		Completion:   completionLogger(logger, cfg.OutcomeTopic),
	}

	return &OutcomeProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.OutcomeTopic,
	}, nil
}

func (p *OutcomeProducer) PublishOutcome(ctx context.Context, event *outcome.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Handle),
		Value: value,
		Headers: []kafka.Header{
			{Key: "side", Value: []byte(event.Side)},
			{Key: "action", Value: []byte(event.Action)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish outcome event",
			"topic", p.topic,
			"handle", event.Handle,
			"error", err,
		)
		return fmt.Errorf("failed to publish outcome event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published outcome event",
		"topic", p.topic,
		"handle", event.Handle,
		"state", event.State,
	)
	return nil
}

func (p *OutcomeProducer) Close() error {
	p.logger.Info("Closing outcome producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close outcome kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
