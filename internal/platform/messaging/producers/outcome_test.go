package producers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ledger-rail-bridge/internal/domain/entry"
	"github.com/ledger-rail-bridge/internal/domain/outcome"
	"github.com/ledger-rail-bridge/internal/domain/shared"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockKafkaWriter mocks KafkaWriter interface
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestOutcomeProducer_PublishOutcome(t *testing.T) {
	ctx := context.Background()
	event := &outcome.Event{
		Side:       shared.SideCredit,
		Handle:     "H1",
		Action:     entry.ActionPrepare,
		State:      entry.StateFailed,
		Error:      &entry.ActionError{Reason: entry.ReasonEntryRejected},
		OccurredAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	t.Run("SuccessfulPublish", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &OutcomeProducer{logger: discardLogger(), writer: mockWriter, topic: "outcomes"}

		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 || string(msgs[0].Key) != "H1" {
				return false
			}
			var got outcome.Event
			if err := json.Unmarshal(msgs[0].Value, &got); err != nil {
				return false
			}
			return got.State == entry.StateFailed &&
				got.Error != nil && got.Error.Reason == entry.ReasonEntryRejected &&
				len(msgs[0].Headers) == 2 && string(msgs[0].Headers[1].Value) == "prepare"
		})).Return(nil).Once()

		require.NoError(t, producer.PublishOutcome(ctx, event))
		mockWriter.AssertExpectations(t)
	})

	t.Run("WriterError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &OutcomeProducer{logger: discardLogger(), writer: mockWriter, topic: "outcomes"}
		writerErr := errors.New("broker unavailable")
		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writerErr).Once()

		err := producer.PublishOutcome(ctx, event)
		require.Error(t, err)
		assert.ErrorIs(t, err, writerErr)
		mockWriter.AssertExpectations(t)
	})
}

func TestOutcomeProducer_Close(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	producer := &OutcomeProducer{logger: discardLogger(), writer: mockWriter, topic: "outcomes"}
	closeErr := errors.New("close failed")
	mockWriter.On("Close").Return(closeErr).Once()

	err := producer.Close()
	assert.ErrorIs(t, err, closeErr)
	mockWriter.AssertExpectations(t)
}
