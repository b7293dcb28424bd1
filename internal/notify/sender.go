package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"creator-auth/internal/client"
	"creator-auth/internal/util"
)

// Delivery is one code on its way to an inbox.
type Delivery struct {
	MessageID string    `json:"message_id"`
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CodeSender hands a freshly issued code to whatever delivers mail.
type CodeSender interface {
	SendCode(ctx context.Context, d Delivery) error
}

// KafkaSender publishes deliveries for the mailer service. Messages are keyed by email so
// deliveries for one address stay ordered within a partition.
type KafkaSender struct {
	producer client.MessageProducer
	topic    string
}

func NewKafkaSender(producer client.MessageProducer, topic string) *KafkaSender {
	return &KafkaSender{producer: producer, topic: topic}
}

func (s *KafkaSender) SendCode(ctx context.Context, d Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode delivery: %w", err)
	}

	headers := map[string]string{
		"content-type": "application/json",
		"message-id":   d.MessageID,
	}
	if err := s.producer.ProduceMessage(ctx, s.topic, []byte(d.Email), payload, headers); err != nil {
		return fmt.Errorf("failed to publish OTP delivery: %w", err)
	}
	return nil
}

// LogSender stands in for a mailer during local development. It records that a code was
// issued; the code itself is only available through the dev OTP endpoint.
type LogSender struct{}

func (LogSender) SendCode(ctx context.Context, d Delivery) error {
	util.Info("OTP issued",
		util.String("message_id", d.MessageID),
		util.String("email_hash", util.EmailHash(d.Email)),
		util.Time("expires_at", d.ExpiresAt))
	return nil
}
