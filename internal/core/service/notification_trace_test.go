package service

import (
	"context"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/adapter/notify"
	"github.com/rl1809/inventory-ledger/internal/adapter/storage"
	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

type spanRecordingSink struct {
	mu    sync.Mutex
	spans []trace.SpanContext
}

func (s *spanRecordingSink) Send(ctx context.Context, recipient, subject, body string) (domain.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans = append(s.spans, trace.SpanContextFromContext(ctx))
	return domain.Receipt{MessageID: "m"}, nil
}

type capturingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *capturingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *capturingWriter) Close() error { return nil }

func newDispatchingEngine(t *testing.T, sink port.NotificationSink) (*InventoryEngine, *NotificationDispatcher) {
	t.Helper()
	d := NewNotificationDispatcher(sink, DispatcherConfig{Workers: 1}, zap.NewNop())
	d.Start()
	t.Cleanup(d.Close)

	engine := NewInventoryEngine(storage.NewMemoryAdapter(), d,
		Config{AdminNotificationAddress: adminAddress}, zap.NewNop())
	return engine, d
}

func TestDispatcher_DeliveryJoinsEnqueuingTrace(t *testing.T) {
	sink := &spanRecordingSink{}
	d := NewNotificationDispatcher(sink, DispatcherConfig{Workers: 1}, zap.NewNop())
	d.Start()

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "request")

	require.True(t, d.Enqueue(ctx, domain.Notification{ID: "n1", Recipient: adminAddress}))
	require.True(t, d.Enqueue(context.Background(), domain.Notification{ID: "n2", Recipient: adminAddress}))
	span.End()
	d.Close()

	require.Len(t, sink.spans, 2)
	assert.True(t, sink.spans[0].IsValid())
	assert.True(t, sink.spans[0].IsRemote())
	assert.Equal(t, span.SpanContext().TraceID(), sink.spans[0].TraceID())
	assert.Equal(t, span.SpanContext().SpanID(), sink.spans[0].SpanID())
	assert.False(t, sink.spans[1].IsValid())
}

func TestApplyStockDelta_LowStockMessageCarriesTraceparent(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	writer := &capturingWriter{}
	engine, d := newDispatchingEngine(t, notify.NewKafkaSink(writer, zap.NewNop()))

	item, err := engine.CreateItem(context.Background(), domain.NewItem{Name: "Gasket", Stock: 5, MinimumStock: 5})
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "request")

	_, err = engine.ApplyStockDelta(ctx, item.ID, -1, "u1")
	require.NoError(t, err)
	span.End()
	d.Close()

	writer.mu.Lock()
	defer writer.mu.Unlock()
	require.Len(t, writer.msgs, 1)

	var traceparent string
	for _, h := range writer.msgs[0].Headers {
		if h.Key == "traceparent" {
			traceparent = string(h.Value)
		}
	}
	require.NotEmpty(t, traceparent)
	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())
}
