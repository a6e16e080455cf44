package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSink_Send(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSink(w, zap.NewNop())

	receipt, err := sink.Send(context.Background(), "admin@example.com", "Low stock: Widget", "body")
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "admin@example.com", string(msg.Key))

	var event NotificationEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, receipt.MessageID, event.MessageID)
	assert.Equal(t, "Low stock: Widget", event.Subject)
	assert.Equal(t, "body", event.Body)
	assert.False(t, receipt.DeliveredAt.IsZero())
}

func TestKafkaSink_SendFailureWrapsDeliveryError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	sink := NewKafkaSink(w, zap.NewNop())

	_, err := sink.Send(context.Background(), "admin@example.com", "s", "b")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDeliveryFailed)
	assert.Contains(t, err.Error(), "broker unavailable")
}

func TestKafkaSink_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, NewKafkaSink(w, zap.NewNop()).Close())
	assert.True(t, w.closed)
}

func TestLogSink_Send(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	receipt, err := sink.Send(context.Background(), "admin@example.com", "Low stock: Widget", "body")
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.MessageID)

	entries := logs.FilterMessage("Notification").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "admin@example.com", entries[0].ContextMap()["recipient"])
}

func TestLogSink_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLogSink(zap.NewNop()).Send(ctx, "admin@example.com", "s", "b")
	assert.ErrorIs(t, err, domain.ErrDeliveryFailed)
}

func TestKafkaSink_SendInjectsTraceparent(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36},
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), sc)

	w := &fakeWriter{}
	_, err := NewKafkaSink(w, zap.NewNop()).Send(ctx, "admin@example.com", "s", "b")
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	headers := make(map[string]string)
	for _, h := range w.msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", headers["traceparent"])
}

func TestKafkaSink_SendWithoutTraceHasNoHeaders(t *testing.T) {
	w := &fakeWriter{}
	_, err := NewKafkaSink(w, zap.NewNop()).Send(context.Background(), "admin@example.com", "s", "b")
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Empty(t, w.msgs[0].Headers)
}
