package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

// MessageWriter is the subset of *kafka.Writer the sink publishes through.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NotificationEvent is the payload published for every notification.
type NotificationEvent struct {
	MessageID string    `json:"message_id"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
}

// KafkaSink hands notifications to a mail relay through a Kafka topic,
// keyed by recipient so one recipient's messages stay ordered.
type KafkaSink struct {
	writer MessageWriter
	logger *zap.Logger
	now    func() time.Time
}

func NewKafkaSink(writer MessageWriter, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{
		writer: writer,
		logger: logger.Named("kafka_sink"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewKafkaWriter builds the writer used by NewKafkaSink.
func NewKafkaWriter(brokers []string, topic string, batchTimeout time.Duration) *kafka.Writer {
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func (s *KafkaSink) Send(ctx context.Context, recipient, subject, body string) (domain.Receipt, error) {
	event := NotificationEvent{
		MessageID: uuid.NewString(),
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		SentAt:    s.now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("%w: encode event: %v", domain.ErrDeliveryFailed, err)
	}

	msg := kafka.Message{
		Key:     []byte(recipient),
		Value:   payload,
		Headers: traceHeaders(ctx),
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return domain.Receipt{}, fmt.Errorf("%w: publish: %v", domain.ErrDeliveryFailed, err)
	}

	s.logger.Debug("Notification published",
		zap.String("message_id", event.MessageID),
		zap.String("recipient", recipient),
	)
	return domain.Receipt{MessageID: event.MessageID, DeliveredAt: event.SentAt}, nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// traceHeaders carries the current trace context to the consumer.
func traceHeaders(ctx context.Context) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]kafka.Header, 0, len(carrier))
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}
