package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

// LogSink writes notifications to the structured log. It is used when no
// broker is configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("log_sink")}
}

func (s *LogSink) Send(ctx context.Context, recipient, subject, body string) (domain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return domain.Receipt{}, fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}

	receipt := domain.Receipt{MessageID: uuid.NewString(), DeliveredAt: time.Now().UTC()}
	s.logger.Info("Notification",
		zap.String("message_id", receipt.MessageID),
		zap.String("recipient", recipient),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return receipt, nil
}
