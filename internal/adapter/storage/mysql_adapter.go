package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

var ErrOptimisticLock = errors.New("optimistic lock conflict")

const itemColumns = `id, name, stock, minimum_stock, state, version, created_at, updated_at`

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) RunInTx(ctx context.Context, fn func(ctx context.Context, tx port.StockTx) error) error {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &mysqlStockTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetItem(ctx context.Context, itemID int64) (*domain.Item, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, itemID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", domain.ErrItemNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}
	return item, nil
}

func (m *MySQLAdapter) ListActiveItems(ctx context.Context) ([]domain.Item, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items WHERE state <> ?
		ORDER BY id`, domain.StateInactive,
	)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	return collectItems(rows)
}

func (m *MySQLAdapter) ListItemsByState(ctx context.Context, state domain.LifecycleState) ([]domain.Item, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items WHERE state = ?
		ORDER BY id`, state,
	)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	return collectItems(rows)
}

func (m *MySQLAdapter) ListLedger(ctx context.Context, itemID int64) ([]domain.LedgerEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, item_id, delta, kind, actor_id, created_at
		FROM ledger_entries WHERE item_id = ?
		ORDER BY created_at DESC, seq DESC`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	return collectLedger(rows)
}

func (m *MySQLAdapter) ListLedgerByRange(ctx context.Context, r domain.LedgerRange) ([]domain.LedgerEntry, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, item_id, delta, kind, actor_id, created_at
		FROM ledger_entries WHERE created_at BETWEEN ? AND ?`)
	args := []any{r.Start, r.End}
	if r.ItemID != nil {
		sb.WriteString(` AND item_id = ?`)
		args = append(args, *r.ItemID)
	}
	sb.WriteString(` ORDER BY created_at DESC, seq DESC`)

	rows, err := m.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger range: %w", err)
	}
	return collectLedger(rows)
}

func (m *MySQLAdapter) ListAlerts(ctx context.Context, itemID *int64) ([]domain.Alert, error) {
	query := `SELECT id, item_id, message, created_at FROM stock_alerts`
	var args []any
	if itemID != nil {
		query += ` WHERE item_id = ?`
		args = append(args, *itemID)
	}
	query += ` ORDER BY created_at DESC, seq DESC`

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []domain.Alert{}
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(&a.ID, &a.ItemID, &a.Message, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (m *MySQLAdapter) CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO items (name, stock, minimum_stock, state, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.Name, item.Stock, item.MinimumStock, item.State, item.Version,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("item id: %w", err)
	}
	item.ID = id
	return &item, nil
}

type mysqlStockTx struct {
	tx *sql.Tx
}

func (t *mysqlStockTx) LockItem(ctx context.Context, itemID int64) (*domain.Item, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ? FOR UPDATE`, itemID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", domain.ErrItemNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock item: %w", err)
	}
	return item, nil
}

func (t *mysqlStockTx) UpdateItem(ctx context.Context, item domain.Item) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE items
		SET stock = ?, state = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		item.Stock, item.State, item.Version, item.UpdatedAt,
		item.ID, item.Version-1,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrOptimisticLock
	}
	return nil
}

func (t *mysqlStockTx) AppendLedgerEntry(ctx context.Context, entry domain.LedgerEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, item_id, delta, kind, actor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ItemID, entry.Delta, entry.Kind, entry.ActorID, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (t *mysqlStockTx) CreateAlert(ctx context.Context, alert domain.Alert) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO stock_alerts (id, item_id, message, created_at)
		VALUES (?, ?, ?, ?)`,
		alert.ID, alert.ItemID, alert.Message, alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var item domain.Item
	err := row.Scan(&item.ID, &item.Name, &item.Stock, &item.MinimumStock,
		&item.State, &item.Version, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func collectItems(rows *sql.Rows) ([]domain.Item, error) {
	defer rows.Close()

	items := []domain.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func collectLedger(rows *sql.Rows) ([]domain.LedgerEntry, error) {
	defer rows.Close()

	entries := []domain.LedgerEntry{}
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.ItemID, &e.Delta, &e.Kind, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
