package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type producedMessage struct {
	topic   string
	key     []byte
	value   []byte
	headers map[string]string
}

type fakeProducer struct {
	messages []producedMessage
	err      error
}

func (f *fakeProducer) ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, producedMessage{topic, key, value, headers})
	return nil
}

func TestKafkaSenderPublishesDelivery(t *testing.T) {
	producer := &fakeProducer{}
	sender := NewKafkaSender(producer, "auth.otp.delivery")

	expires := time.Date(2026, 5, 1, 10, 10, 0, 0, time.UTC)
	err := sender.SendCode(context.Background(), Delivery{
		MessageID: "msg-1",
		Email:     "user@example.com",
		Code:      "123456",
		ExpiresAt: expires,
	})
	require.NoError(t, err)
	require.Len(t, producer.messages, 1)

	msg := producer.messages[0]
	assert.Equal(t, "auth.otp.delivery", msg.topic)
	assert.Equal(t, "user@example.com", string(msg.key))
	assert.Equal(t, "msg-1", msg.headers["message-id"])

	var got Delivery
	require.NoError(t, json.Unmarshal(msg.value, &got))
	assert.Equal(t, "123456", got.Code)
	assert.True(t, got.ExpiresAt.Equal(expires))
}

func TestKafkaSenderWrapsProducerError(t *testing.T) {
	boom := errors.New("broker down")
	sender := NewKafkaSender(&fakeProducer{err: boom}, "t")

	err := sender.SendCode(context.Background(), Delivery{Email: "a@b.co", Code: "000000"})
	assert.ErrorIs(t, err, boom)
}

func TestLogSenderNeverFails(t *testing.T) {
	assert.NoError(t, LogSender{}.SendCode(context.Background(), Delivery{Email: "a@b.co", Code: "111111"}))
}
