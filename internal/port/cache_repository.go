package port

import (
	"context"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

type ItemCache interface {
	// GetItem returns (nil, nil) on a cache miss
	GetItem(ctx context.Context, itemID int64) (*domain.Item, error)

	// SetItem stores a snapshot unless a newer version is already cached
	SetItem(ctx context.Context, item domain.Item) error

	InvalidateItem(ctx context.Context, itemID int64) error
}
