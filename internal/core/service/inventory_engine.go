package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

const tracerName = "github.com/rl1809/inventory-ledger/internal/core/service"

// Config holds the engine settings that used to be read from the process
// environment.
type Config struct {
	AdminNotificationAddress string
}

// StockChange is the result of a successful stock mutation.
type StockChange struct {
	ItemID   int64
	NewStock int
}

// InventoryEngine is the only writer of stock. Every mutation updates the
// item, appends a ledger entry and, when the item falls to or below its
// minimum, records an alert, all in one transaction. The low-stock
// notification is handed to the notifier after commit.
type InventoryEngine struct {
	repo     port.InventoryRepository
	notifier port.Notifier
	cache    port.ItemCache
	metrics  port.Metrics
	cfg      Config
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() string
}

type Option func(*InventoryEngine)

// WithCache enables read-through caching of item snapshots.
func WithCache(cache port.ItemCache) Option {
	return func(e *InventoryEngine) { e.cache = cache }
}

func WithMetrics(m port.Metrics) Option {
	return func(e *InventoryEngine) { e.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(e *InventoryEngine) { e.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(e *InventoryEngine) { e.newID = newID }
}

func NewInventoryEngine(repo port.InventoryRepository, notifier port.Notifier, cfg Config, logger *zap.Logger, opts ...Option) *InventoryEngine {
	e := &InventoryEngine{
		repo:     repo,
		notifier: notifier,
		metrics:  nopMetrics{},
		cfg:      cfg,
		logger:   logger.Named("inventory"),
		tracer:   otel.Tracer(tracerName),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ApplyStockDelta adds delta to the item's stock on behalf of actorID.
//
// It fails with domain.ErrInvalidArgument for a zero delta,
// domain.ErrItemNotFound for an unknown item and
// domain.ErrInsufficientStock when the result would be negative. Failed
// calls write nothing. The call is not idempotent.
func (e *InventoryEngine) ApplyStockDelta(ctx context.Context, itemID int64, delta int, actorID string) (_ StockChange, err error) {
	ctx, span := e.tracer.Start(ctx, "inventory.apply_stock_delta")
	defer span.End()
	defer func() { e.metrics.StockMutation(mutationKind(delta), mutationOutcome(err)) }()
	span.SetAttributes(
		attribute.Int64("inventory.item_id", itemID),
		attribute.Int("inventory.delta", delta),
	)

	if delta == 0 {
		return StockChange{}, e.fail(span, fmt.Errorf("%w: delta must be non-zero", domain.ErrInvalidArgument))
	}
	if strings.TrimSpace(actorID) == "" {
		return StockChange{}, e.fail(span, fmt.Errorf("%w: actor is required", domain.ErrInvalidArgument))
	}

	var (
		updated domain.Item
		alert   *domain.Alert
	)
	err = e.repo.RunInTx(ctx, func(ctx context.Context, tx port.StockTx) error {
		alert = nil

		item, err := tx.LockItem(ctx, itemID)
		if err != nil {
			return err
		}

		now := e.now()
		next := item.ApplyDelta(delta, now)
		if next.Stock < 0 {
			return fmt.Errorf("%w: item %d has %d units, cannot apply %d",
				domain.ErrInsufficientStock, itemID, item.Stock, delta)
		}

		if err := tx.UpdateItem(ctx, next); err != nil {
			return err
		}

		entry := domain.LedgerEntry{
			ID:        e.newID(),
			ItemID:    itemID,
			Delta:     delta,
			Kind:      domain.KindForDelta(delta),
			ActorID:   actorID,
			CreatedAt: now,
		}
		if err := tx.AppendLedgerEntry(ctx, entry); err != nil {
			return err
		}

		if next.Stock <= next.MinimumStock {
			a := domain.Alert{
				ID:        e.newID(),
				ItemID:    itemID,
				Message:   domain.LowStockAlertMessage(next.Name, next.Stock),
				CreatedAt: now,
			}
			if err := tx.CreateAlert(ctx, a); err != nil {
				return err
			}
			alert = &a
		}

		updated = next
		return nil
	})
	if err != nil {
		return StockChange{}, e.fail(span, err)
	}

	// Committed. Nothing below may turn this call into a failure.
	postCtx := context.WithoutCancel(ctx)
	e.refreshCache(postCtx, updated)
	if alert != nil {
		span.AddEvent("inventory.low_stock_alert", trace.WithAttributes(attribute.String("alert.id", alert.ID)))
		e.metrics.AlertRaised()
		e.notifyLowStock(postCtx, updated, *alert)
	}

	e.logger.Info("stock updated",
		zap.Int64("item_id", itemID),
		zap.Int("delta", delta),
		zap.Int("new_stock", updated.Stock),
		zap.String("state", string(updated.State)),
		zap.String("actor_id", actorID),
		zap.Bool("alert", alert != nil),
	)

	span.SetAttributes(attribute.Int("inventory.new_stock", updated.Stock))
	span.SetStatus(codes.Ok, "")
	return StockChange{ItemID: itemID, NewStock: updated.Stock}, nil
}

func (e *InventoryEngine) notifyLowStock(ctx context.Context, item domain.Item, alert domain.Alert) {
	if e.notifier == nil || e.cfg.AdminNotificationAddress == "" {
		e.logger.Warn("low stock notification skipped, no notifier configured",
			zap.Int64("item_id", item.ID), zap.String("alert_id", alert.ID))
		return
	}

	n := domain.Notification{
		ID:        alert.ID,
		Recipient: e.cfg.AdminNotificationAddress,
		Subject:   domain.LowStockSubject(item.Name),
		Body:      domain.LowStockBody(item.Name, item.Stock, item.MinimumStock),
	}
	if !e.notifier.Enqueue(ctx, n) {
		e.metrics.Notification(NotificationDropped)
		e.logger.Warn("low stock notification dropped",
			zap.Int64("item_id", item.ID), zap.String("alert_id", alert.ID))
	}
}

func (e *InventoryEngine) refreshCache(ctx context.Context, item domain.Item) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetItem(ctx, item); err != nil {
		e.logger.Warn("failed to refresh cached item", zap.Int64("item_id", item.ID), zap.Error(err))
		// drop the stale snapshot so reads fall through to the store
		if err := e.cache.InvalidateItem(ctx, item.ID); err != nil {
			e.logger.Warn("failed to invalidate cached item", zap.Int64("item_id", item.ID), zap.Error(err))
		}
	}
}

// MutationKindNone is the metrics label for a rejected zero delta, which
// has no movement kind.
const MutationKindNone domain.MovementKind = "none"

func mutationKind(delta int) domain.MovementKind {
	if delta == 0 {
		return MutationKindNone
	}
	return domain.KindForDelta(delta)
}

func mutationOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, domain.ErrItemNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	default:
		return "error"
	}
}

func (e *InventoryEngine) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
