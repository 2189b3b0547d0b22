package producers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/ledger-rail-bridge/internal/config"
	"github.com/ledger-rail-bridge/internal/domain/entry"
	"github.com/ledger-rail-bridge/internal/domain/outcome"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDLQProducer_PublishDeadLetter(t *testing.T) {
	ctx := context.Background()
	letter := &outcome.DeadLetter{
		Handle:     "H1",
		Action:     entry.ActionCommit,
		Report:     json.RawMessage(`{"handle":"H1","status":"committed"}`),
		Reason:     "ledger responded 503 Service Unavailable",
		Status:     http.StatusServiceUnavailable,
		StatusText: "Service Unavailable",
	}

	t.Run("SuccessfulPublishToDLQ", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &DLQProducer{logger: discardLogger(), writer: mockWriter, dlqTopic: "dlq"}

		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 {
				return false
			}
			msg := msgs[0]
			var got outcome.DeadLetter
			if err := json.Unmarshal(msg.Value, &got); err != nil {
				return false
			}
			return string(msg.Key) == "H1" &&
				got.Status == http.StatusServiceUnavailable &&
				string(msg.Headers[0].Value) == letter.Reason
		})).Return(nil).Once()

		require.NoError(t, producer.PublishDeadLetter(ctx, letter))
		mockWriter.AssertExpectations(t)
	})

	t.Run("WriterError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &DLQProducer{logger: discardLogger(), writer: mockWriter, dlqTopic: "dlq"}
		writerErr := errors.New("kafka DLQ write error")
		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writerErr).Once()

		assert.ErrorIs(t, producer.PublishDeadLetter(ctx, letter), writerErr)
		mockWriter.AssertExpectations(t)
	})

	t.Run("NilProducer", func(t *testing.T) {
		var producer *DLQProducer
		err := producer.PublishDeadLetter(ctx, letter)
		require.Error(t, err)
		assert.Equal(t, "DLQ producer not initialized", err.Error())
		assert.NoError(t, producer.Close())
	})
}

func TestNewDLQProducer_Disabled(t *testing.T) {
	producer, err := NewDLQProducer(discardLogger(), &config.KafkaConfig{})
	require.NoError(t, err)
	assert.Nil(t, producer)
}

func TestNewOutcomeProducer_MissingTopic(t *testing.T) {
	_, err := NewOutcomeProducer(discardLogger(), &config.KafkaConfig{})
	assert.EqualError(t, err, "kafka outcome topic is not configured")
}
