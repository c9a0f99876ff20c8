package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazar-store/bazar/internal/core/domain"
)

func getMySQL(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/bazar?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	return db
}

func setupOrderStore(t *testing.T) (*MySQLOrderStore, *sql.DB) {
	t.Helper()

	db := getMySQL(t)
	store := NewMySQLOrderStore(db)
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store, db
}

func TestMySQLOrderStore_AppendAndGet(t *testing.T) {
	store, db := setupOrderStore(t)
	defer db.Close()
	ctx := context.Background()

	order := domain.Order{
		OrderID:   uuid.NewString(),
		ItemID:    1,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.AppendOrder(ctx, order))

	got, err := store.GetOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderID, got.OrderID)
	assert.Equal(t, order.ItemID, got.ItemID)
	assert.True(t, order.Timestamp.Equal(got.Timestamp))

	// Append is write-once per order id.
	assert.Error(t, store.AppendOrder(ctx, order))

	_, err = store.GetOrder(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMySQLIdempotency_ClaimLifecycle(t *testing.T) {
	_, db := setupOrderStore(t)
	defer db.Close()
	ctx := context.Background()

	idem := NewMySQLIdempotency(db)
	key := "idem-" + uuid.NewString()
	defer idem.Release(ctx, key)

	orderID, claimed, err := idem.Claim(ctx, key)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Empty(t, orderID)

	// Second claim sees the in-flight attempt.
	orderID, claimed, err = idem.Claim(ctx, key)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Empty(t, orderID)

	target := uuid.NewString()
	require.NoError(t, idem.Complete(ctx, key, target))

	orderID, claimed, err = idem.Claim(ctx, key)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, target, orderID)

	require.NoError(t, idem.Release(ctx, key))
	_, claimed, err = idem.Claim(ctx, key)
	require.NoError(t, err)
	assert.True(t, claimed)
}
