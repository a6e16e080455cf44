package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

// GetItem returns the current state of an item, served from the cache when
// a snapshot is present.
func (e *InventoryEngine) GetItem(ctx context.Context, itemID int64) (*domain.Item, error) {
	if e.cache != nil {
		item, err := e.cache.GetItem(ctx, itemID)
		if err != nil {
			e.logger.Warn("item cache read failed", zap.Int64("item_id", itemID), zap.Error(err))
		} else if item != nil {
			return item, nil
		}
	}

	item, err := e.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	e.refreshCache(ctx, *item)
	return item, nil
}

// ListCritical returns live items whose stock is at or below their minimum.
// Order is unspecified.
func (e *InventoryEngine) ListCritical(ctx context.Context) ([]domain.Item, error) {
	items, err := e.repo.ListActiveItems(ctx)
	if err != nil {
		return nil, err
	}

	critical := []domain.Item{}
	for _, item := range items {
		if item.IsCritical() {
			critical = append(critical, item)
		}
	}
	return critical, nil
}

// ListLedger returns the ledger of one item, newest first.
func (e *InventoryEngine) ListLedger(ctx context.Context, itemID int64) ([]domain.LedgerEntry, error) {
	if _, err := e.repo.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return e.repo.ListLedger(ctx, itemID)
}

// ListLedgerByDateRange returns entries created in [r.Start, r.End], newest
// first. A range whose start is after its end yields an empty result.
func (e *InventoryEngine) ListLedgerByDateRange(ctx context.Context, r domain.LedgerRange) ([]domain.LedgerEntry, error) {
	if r.Start.IsZero() || r.End.IsZero() {
		return nil, fmt.Errorf("%w: start and end are required", domain.ErrInvalidArgument)
	}
	if r.Empty() {
		return []domain.LedgerEntry{}, nil
	}
	return e.repo.ListLedgerByRange(ctx, r)
}

// ListAlerts returns raised alerts, newest first. A non-nil itemID must
// reference an existing item.
func (e *InventoryEngine) ListAlerts(ctx context.Context, itemID *int64) ([]domain.Alert, error) {
	if itemID != nil {
		if _, err := e.repo.GetItem(ctx, *itemID); err != nil {
			return nil, err
		}
	}
	return e.repo.ListAlerts(ctx, itemID)
}
