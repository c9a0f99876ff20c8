package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/bazar-store/bazar/internal/core/domain"
)

const mysqlDuplicateEntry = 1062

// MySQLOrderStore persists the append-only order log and the idempotency
// claims in MySQL.
type MySQLOrderStore struct {
	db *sql.DB
}

func NewMySQLOrderStore(db *sql.DB) *MySQLOrderStore {
	return &MySQLOrderStore{db: db}
}

// EnsureSchema creates the tables when they do not exist.
func (m *MySQLOrderStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			order_id   CHAR(36)  NOT NULL PRIMARY KEY,
			item_id    INT       NOT NULL,
			created_at TIMESTAMP NOT NULL,
			INDEX idx_orders_item (item_id)
		)`,
		`CREATE TABLE IF NOT EXISTS idempotency (
			idem_key   VARCHAR(128) NOT NULL PRIMARY KEY,
			order_id   CHAR(36)     NULL,
			created_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (m *MySQLOrderStore) AppendOrder(ctx context.Context, order domain.Order) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO orders (order_id, item_id, created_at)
		VALUES (?, ?, ?)`,
		order.OrderID, order.ItemID, order.Timestamp,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return fmt.Errorf("order %s already exists", order.OrderID)
		}
		return fmt.Errorf("insert order: %w", errors.Join(domain.ErrStoreUnavailable, err))
	}
	return nil
}

func (m *MySQLOrderStore) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	var order domain.Order
	err := m.db.QueryRowContext(ctx, `
		SELECT order_id, item_id, created_at
		FROM orders WHERE order_id = ?`, orderID,
	).Scan(&order.OrderID, &order.ItemID, &order.Timestamp)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("query order: %w", err)
	}
	return order, nil
}

// MySQLIdempotency claims idempotency keys with a unique-key insert, so two
// concurrent purchases with the same key race on the primary key instead of
// on application state.
type MySQLIdempotency struct {
	db *sql.DB
}

func NewMySQLIdempotency(db *sql.DB) *MySQLIdempotency {
	return &MySQLIdempotency{db: db}
}

func (m *MySQLIdempotency) Claim(ctx context.Context, key string) (string, bool, error) {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO idempotency (idem_key, order_id) VALUES (?, NULL)`, key)
	if err == nil {
		return "", true, nil
	}
	if !isDuplicateEntry(err) {
		return "", false, fmt.Errorf("claim idempotency key: %w", err)
	}

	var orderID sql.NullString
	err = m.db.QueryRowContext(ctx,
		`SELECT order_id FROM idempotency WHERE idem_key = ?`, key,
	).Scan(&orderID)
	if errors.Is(err, sql.ErrNoRows) {
		// Claim released concurrently; in flight from the caller's view.
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read idempotency key: %w", err)
	}
	if !orderID.Valid {
		return "", false, nil
	}
	return orderID.String, false, nil
}

func (m *MySQLIdempotency) Complete(ctx context.Context, key, orderID string) error {
	_, err := m.db.ExecContext(ctx,
		`UPDATE idempotency SET order_id = ? WHERE idem_key = ?`, orderID, key)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

func (m *MySQLIdempotency) Release(ctx context.Context, key string) error {
	_, err := m.db.ExecContext(ctx,
		`DELETE FROM idempotency WHERE idem_key = ?`, key)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}
