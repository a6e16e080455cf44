package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

func TestApplyStockDelta_RecordsMetrics(t *testing.T) {
	metrics := newFakeMetrics()
	env := newTestEnv(t, WithMetrics(metrics))
	item := env.createItem(t, "Valve", 6, 5)
	ctx := context.Background()

	_, _ = env.engine.ApplyStockDelta(ctx, item.ID, 2, "u1")
	_, _ = env.engine.ApplyStockDelta(ctx, item.ID, -3, "u1")
	_, _ = env.engine.ApplyStockDelta(ctx, item.ID, -50, "u1")
	_, _ = env.engine.ApplyStockDelta(ctx, 999, 1, "u1")

	env.notifier.reject = true
	_, _ = env.engine.ApplyStockDelta(ctx, item.ID, -1, "u1")

	assert.Equal(t, 1, metrics.mutations["INBOUND/ok"])
	assert.Equal(t, 2, metrics.mutations["OUTBOUND/ok"])
	assert.Equal(t, 1, metrics.mutations["OUTBOUND/insufficient_stock"])
	assert.Equal(t, 1, metrics.mutations["INBOUND/not_found"])
	assert.Equal(t, 2, metrics.alerts)
	assert.Equal(t, 1, metrics.notifications[NotificationDropped])
}

func TestDispatcher_RecordsMetrics(t *testing.T) {
	metrics := newFakeMetrics()
	sink := &fakeSink{failures: 1}
	d := NewNotificationDispatcher(sink, DispatcherConfig{Workers: 1}, zap.NewNop(), WithDispatcherMetrics(metrics))
	d.Start()

	d.Enqueue(context.Background(), domain.Notification{ID: "a", Recipient: adminAddress})
	d.Enqueue(context.Background(), domain.Notification{ID: "b", Recipient: adminAddress})
	d.Close()

	assert.Equal(t, 1, metrics.notifications[NotificationFailed])
	assert.Equal(t, 1, metrics.notifications[NotificationDelivered])
}

func TestApplyStockDelta_ZeroDeltaMetricHasNoMovementKind(t *testing.T) {
	metrics := newFakeMetrics()
	env := newTestEnv(t, WithMetrics(metrics))
	item := env.createItem(t, "Valve", 6, 5)

	_, err := env.engine.ApplyStockDelta(context.Background(), item.ID, 0, "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	assert.Equal(t, 1, metrics.mutations["none/invalid_argument"])
	assert.Zero(t, metrics.mutations["OUTBOUND/invalid_argument"])
	assert.Zero(t, metrics.mutations["INBOUND/invalid_argument"])
}
