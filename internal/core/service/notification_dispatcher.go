package service

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

// Notification outcomes reported to port.Metrics.
const (
	NotificationDelivered = "delivered"
	NotificationFailed    = "failed"
	NotificationDropped   = "dropped"
)

type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	MaxAttempts int
	Timeout     time.Duration
	RetryDelay  time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 1000
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}

// NotificationDispatcher delivers notifications on a worker pool, away from
// the transaction that produced them. Delivery failures are logged and
// dropped once the attempt budget is spent.
type NotificationDispatcher struct {
	sink    port.NotificationSink
	cfg     DispatcherConfig
	metrics port.Metrics
	logger  *zap.Logger
	queue   chan queuedNotification
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// queuedNotification keeps the enqueuing span so delivery joins its trace.
type queuedNotification struct {
	notification domain.Notification
	spanContext  trace.SpanContext
}

type DispatcherOption func(*NotificationDispatcher)

func WithDispatcherMetrics(m port.Metrics) DispatcherOption {
	return func(d *NotificationDispatcher) { d.metrics = m }
}

func NewNotificationDispatcher(sink port.NotificationSink, cfg DispatcherConfig, logger *zap.Logger, opts ...DispatcherOption) *NotificationDispatcher {
	cfg = cfg.withDefaults()
	d := &NotificationDispatcher{
		sink:    sink,
		cfg:     cfg,
		metrics: nopMetrics{},
		logger:  logger.Named("notifications"),
		queue:   make(chan queuedNotification, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *NotificationDispatcher) Start() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.workerLoop(id)
		}(i)
	}
	d.logger.Info("started notification workers", zap.Int("workers", d.cfg.Workers))
}

// Enqueue never blocks. It reports false when the queue is full or the
// dispatcher is closed.
func (d *NotificationDispatcher) Enqueue(ctx context.Context, n domain.Notification) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}

	select {
	case d.queue <- queuedNotification{notification: n, spanContext: trace.SpanContextFromContext(ctx)}:
		return true
	default:
		return false
	}
}

// Close stops accepting notifications and waits for queued ones to be
// attempted. Retries still run but no longer wait out RetryDelay.
func (d *NotificationDispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.done)
		close(d.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *NotificationDispatcher) workerLoop(id int) {
	for job := range d.queue {
		d.deliver(id, job)
	}
}

func (d *NotificationDispatcher) deliver(worker int, job queuedNotification) {
	n := job.notification
	base := context.Background()
	if job.spanContext.IsValid() {
		base = trace.ContextWithRemoteSpanContext(base, job.spanContext)
	}

	log := d.logger.With(
		zap.Int("worker", worker),
		zap.String("notification_id", n.ID),
		zap.String("recipient", n.Recipient),
	)

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(base, d.cfg.Timeout)
		receipt, err := d.sink.Send(ctx, n.Recipient, n.Subject, n.Body)
		cancel()

		if err == nil {
			d.metrics.Notification(NotificationDelivered)
			log.Info("notification delivered", zap.String("message_id", receipt.MessageID), zap.Int("attempt", attempt))
			return
		}

		log.Warn("notification delivery failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < d.cfg.MaxAttempts {
			d.waitRetry()
		}
	}

	d.metrics.Notification(NotificationFailed)
	log.Error("giving up on notification", zap.Int("attempts", d.cfg.MaxAttempts))
}

// waitRetry sleeps for RetryDelay, or not at all once Close has been called.
func (d *NotificationDispatcher) waitRetry() {
	if d.cfg.RetryDelay <= 0 {
		return
	}

	timer := time.NewTimer(d.cfg.RetryDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-d.done:
	}
}

type nopMetrics struct{}

func (nopMetrics) StockMutation(domain.MovementKind, string) {}
func (nopMetrics) AlertRaised()                              {}
func (nopMetrics) Notification(string)                       {}
