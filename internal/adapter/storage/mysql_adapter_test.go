package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

var itemCols = []string{"id", "name", "stock", "minimum_stock", "state", "version", "created_at", "updated_at"}

func newMockAdapter(t *testing.T) (*MySQLAdapter, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLAdapter(db), mock
}

func TestMySQLRunInTx_CommitsAllWrites(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM items WHERE id = ? FOR UPDATE`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow(7, "Coffee", 5, 5, "ACTIVE", 3, now, now))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE items`)).
		WithArgs(4, domain.StateActive, int64(4), now, int64(7), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO ledger_entries`)).
		WithArgs("entry-1", int64(7), -1, domain.MovementOutbound, "actor-1", now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO stock_alerts`)).
		WithArgs("alert-1", int64(7), sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := adapter.RunInTx(context.Background(), func(ctx context.Context, tx port.StockTx) error {
		item, err := tx.LockItem(ctx, 7)
		if err != nil {
			return err
		}
		next := item.ApplyDelta(-1, now)
		if err := tx.UpdateItem(ctx, next); err != nil {
			return err
		}
		if err := tx.AppendLedgerEntry(ctx, domain.LedgerEntry{
			ID: "entry-1", ItemID: 7, Delta: -1, Kind: domain.MovementOutbound, ActorID: "actor-1", CreatedAt: now,
		}); err != nil {
			return err
		}
		return tx.CreateAlert(ctx, domain.Alert{ID: "alert-1", ItemID: 7, Message: "low", CreatedAt: now})
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLRunInTx_RollsBackOnError(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM items WHERE id = ? FOR UPDATE`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow(1, "Tea", 2, 0, "ACTIVE", 0, time.Now(), time.Now()))
	mock.ExpectRollback()

	err := adapter.RunInTx(context.Background(), func(ctx context.Context, tx port.StockTx) error {
		if _, err := tx.LockItem(ctx, 1); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLLockItem_NotFound(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM items WHERE id = ? FOR UPDATE`)).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(itemCols))
	mock.ExpectRollback()

	err := adapter.RunInTx(context.Background(), func(ctx context.Context, tx port.StockTx) error {
		_, err := tx.LockItem(ctx, 99)
		return err
	})

	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLUpdateItem_StaleVersion(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE items`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := adapter.RunInTx(context.Background(), func(ctx context.Context, tx port.StockTx) error {
		return tx.UpdateItem(ctx, domain.Item{ID: 1, Stock: 1, State: domain.StateActive, Version: 2, UpdatedAt: now})
	})

	assert.ErrorIs(t, err, ErrOptimisticLock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLGetItem(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM items WHERE id = ?`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow(3, "Mug", 0, 2, "OUT_OF_STOCK", 9, now, now))

	item, err := adapter.GetItem(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Mug", item.Name)
	assert.Equal(t, domain.StateOutOfStock, item.State)
	assert.Equal(t, int64(9), item.Version)
}

func TestMySQLGetItem_NotFound(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM items WHERE id = ?`)).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(itemCols))

	_, err := adapter.GetItem(context.Background(), 4)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestMySQLListLedgerByRange_WithItemFilter(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	itemID := int64(5)

	mock.ExpectQuery(`created_at BETWEEN \? AND \? AND item_id = \? ORDER BY created_at DESC`).
		WithArgs(start, end, itemID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "item_id", "delta", "kind", "actor_id", "created_at"}).
			AddRow("b", 5, 2, "INBOUND", "u1", end).
			AddRow("a", 5, -1, "OUTBOUND", "u1", start))

	entries, err := adapter.ListLedgerByRange(context.Background(), domain.LedgerRange{Start: start, End: end, ItemID: &itemID})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].ID)
	assert.Equal(t, domain.MovementOutbound, entries[1].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLListLedgerByRange_AllItems(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`created_at BETWEEN \? AND \? ORDER BY created_at DESC`).
		WithArgs(start, start).
		WillReturnRows(sqlmock.NewRows([]string{"id", "item_id", "delta", "kind", "actor_id", "created_at"}))

	entries, err := adapter.ListLedgerByRange(context.Background(), domain.LedgerRange{Start: start, End: start})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLCreateItem(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO items`)).
		WithArgs("Beans", 10, 2, domain.StateActive, int64(0), now, now).
		WillReturnResult(sqlmock.NewResult(42, 1))

	item, err := adapter.CreateItem(context.Background(), domain.Item{
		Name: "Beans", Stock: 10, MinimumStock: 2, State: domain.StateActive, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), item.ID)
}

func TestMySQLListAlerts(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, item_id, message, created_at FROM stock_alerts ORDER BY`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "item_id", "message", "created_at"}).
			AddRow("a1", 1, "low", now))

	alerts, err := adapter.ListAlerts(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "a1", alerts[0].ID)
}
