package port

import (
	"context"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

type InventoryRepository interface {
	// RunInTx runs fn inside one transaction. Writes made through tx commit
	// together when fn returns nil and are discarded otherwise.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx StockTx) error) error

	// GetItem returns domain.ErrItemNotFound for an unknown id
	GetItem(ctx context.Context, itemID int64) (*domain.Item, error)

	// ListActiveItems returns every item that is not INACTIVE
	ListActiveItems(ctx context.Context) ([]domain.Item, error)

	// ListItemsByState returns items in the given lifecycle state
	ListItemsByState(ctx context.Context, state domain.LifecycleState) ([]domain.Item, error)

	// ListLedger returns an item's ledger entries, newest first
	ListLedger(ctx context.Context, itemID int64) ([]domain.LedgerEntry, error)

	// ListLedgerByRange returns entries with created_at in [Start, End], newest first
	ListLedgerByRange(ctx context.Context, r domain.LedgerRange) ([]domain.LedgerEntry, error)

	// ListAlerts returns alerts newest first, optionally for one item
	ListAlerts(ctx context.Context, itemID *int64) ([]domain.Alert, error)

	// CreateItem inserts a catalog item and returns it with its id assigned
	CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error)
}

// StockTx is the write side of a single inventory transaction.
type StockTx interface {
	// LockItem reads the item and holds a write lock on it until the
	// transaction ends
	LockItem(ctx context.Context, itemID int64) (*domain.Item, error)

	// UpdateItem persists stock, state and version of a locked item
	UpdateItem(ctx context.Context, item domain.Item) error

	AppendLedgerEntry(ctx context.Context, entry domain.LedgerEntry) error

	CreateAlert(ctx context.Context, alert domain.Alert) error
}
