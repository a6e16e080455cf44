package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

// CreateItem registers a catalog item with its opening stock and threshold.
func (e *InventoryEngine) CreateItem(ctx context.Context, in domain.NewItem) (*domain.Item, error) {
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidArgument)
	case in.Stock < 0:
		return nil, fmt.Errorf("%w: stock must not be negative", domain.ErrInvalidArgument)
	case in.MinimumStock < 0:
		return nil, fmt.Errorf("%w: minimum stock must not be negative", domain.ErrInvalidArgument)
	}

	now := e.now()
	item, err := e.repo.CreateItem(ctx, domain.Item{
		Name:         name,
		Stock:        in.Stock,
		MinimumStock: in.MinimumStock,
		State:        domain.StateForStock(in.Stock),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("item created", zap.Int64("item_id", item.ID), zap.String("name", item.Name), zap.Int("stock", item.Stock))
	return item, nil
}

// ListItems returns ACTIVE items only.
func (e *InventoryEngine) ListItems(ctx context.Context) ([]domain.Item, error) {
	return e.repo.ListItemsByState(ctx, domain.StateActive)
}

// DeactivateItem soft-deletes an item. Its ledger and alerts are kept.
func (e *InventoryEngine) DeactivateItem(ctx context.Context, itemID int64) (*domain.Item, error) {
	var updated domain.Item
	err := e.repo.RunInTx(ctx, func(ctx context.Context, tx port.StockTx) error {
		item, err := tx.LockItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item.State == domain.StateInactive {
			updated = *item
			return nil
		}

		next := *item
		next.State = domain.StateInactive
		next.Version++
		next.UpdatedAt = e.now()
		if err := tx.UpdateItem(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.refreshCache(context.WithoutCancel(ctx), updated)
	e.logger.Info("item deactivated", zap.Int64("item_id", itemID))
	return &updated, nil
}
