package port

import (
	"context"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

type NotificationSink interface {
	// Send delivers one rendered message. Failures wrap domain.ErrDeliveryFailed.
	Send(ctx context.Context, recipient, subject, body string) (domain.Receipt, error)
}

// Notifier accepts notifications for delivery after the originating
// transaction has committed. Enqueue never blocks on delivery; ctx only
// supplies the trace the delivery is linked to.
type Notifier interface {
	Enqueue(ctx context.Context, n domain.Notification) bool
}
