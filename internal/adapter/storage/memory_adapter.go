package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

// MemoryAdapter is an in-process InventoryRepository. A single mutex is held
// for the whole of RunInTx, so units of work are fully serialized; staged
// writes become visible only when fn succeeds.
type MemoryAdapter struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]domain.Item
	ledger []domain.LedgerEntry
	alerts []domain.Alert
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{items: make(map[int64]domain.Item)}
}

func (m *MemoryAdapter) RunInTx(ctx context.Context, fn func(ctx context.Context, tx port.StockTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	tx := &memoryStockTx{store: m, items: make(map[int64]domain.Item)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	for id, item := range tx.items {
		m.items[id] = item
	}
	m.ledger = append(m.ledger, tx.ledger...)
	m.alerts = append(m.alerts, tx.alerts...)
	return nil
}

func (m *MemoryAdapter) GetItem(ctx context.Context, itemID int64) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrItemNotFound, itemID)
	}
	return &item, nil
}

func (m *MemoryAdapter) ListActiveItems(ctx context.Context) ([]domain.Item, error) {
	return m.filterItems(func(i domain.Item) bool { return i.State != domain.StateInactive }), nil
}

func (m *MemoryAdapter) ListItemsByState(ctx context.Context, state domain.LifecycleState) ([]domain.Item, error) {
	return m.filterItems(func(i domain.Item) bool { return i.State == state }), nil
}

func (m *MemoryAdapter) filterItems(keep func(domain.Item) bool) []domain.Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := []domain.Item{}
	for id := int64(1); id <= m.nextID; id++ {
		if item, ok := m.items[id]; ok && keep(item) {
			items = append(items, item)
		}
	}
	return items
}

func (m *MemoryAdapter) ListLedger(ctx context.Context, itemID int64) ([]domain.LedgerEntry, error) {
	return m.filterLedger(func(e domain.LedgerEntry) bool { return e.ItemID == itemID }), nil
}

func (m *MemoryAdapter) ListLedgerByRange(ctx context.Context, r domain.LedgerRange) ([]domain.LedgerEntry, error) {
	return m.filterLedger(func(e domain.LedgerEntry) bool {
		if e.CreatedAt.Before(r.Start) || e.CreatedAt.After(r.End) {
			return false
		}
		return r.ItemID == nil || e.ItemID == *r.ItemID
	}), nil
}

// filterLedger walks the log backwards: append order is commit order, so
// the result is newest first.
func (m *MemoryAdapter) filterLedger(keep func(domain.LedgerEntry) bool) []domain.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := []domain.LedgerEntry{}
	for i := len(m.ledger) - 1; i >= 0; i-- {
		if keep(m.ledger[i]) {
			entries = append(entries, m.ledger[i])
		}
	}
	return entries
}

func (m *MemoryAdapter) ListAlerts(ctx context.Context, itemID *int64) ([]domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alerts := []domain.Alert{}
	for i := len(m.alerts) - 1; i >= 0; i-- {
		if itemID == nil || m.alerts[i].ItemID == *itemID {
			alerts = append(alerts, m.alerts[i])
		}
	}
	return alerts, nil
}

func (m *MemoryAdapter) CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	item.ID = m.nextID
	m.items[item.ID] = item
	return &item, nil
}

type memoryStockTx struct {
	store  *MemoryAdapter
	items  map[int64]domain.Item
	ledger []domain.LedgerEntry
	alerts []domain.Alert
}

func (t *memoryStockTx) LockItem(ctx context.Context, itemID int64) (*domain.Item, error) {
	if item, ok := t.items[itemID]; ok {
		return &item, nil
	}
	item, ok := t.store.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrItemNotFound, itemID)
	}
	return &item, nil
}

func (t *memoryStockTx) UpdateItem(ctx context.Context, item domain.Item) error {
	current, err := t.LockItem(ctx, item.ID)
	if err != nil {
		return err
	}
	if current.Version != item.Version-1 {
		return ErrOptimisticLock
	}
	t.items[item.ID] = item
	return nil
}

func (t *memoryStockTx) AppendLedgerEntry(ctx context.Context, entry domain.LedgerEntry) error {
	if _, err := t.LockItem(ctx, entry.ItemID); err != nil {
		return err
	}
	t.ledger = append(t.ledger, entry)
	return nil
}

func (t *memoryStockTx) CreateAlert(ctx context.Context, alert domain.Alert) error {
	if _, err := t.LockItem(ctx, alert.ItemID); err != nil {
		return err
	}
	t.alerts = append(t.alerts, alert)
	return nil
}
