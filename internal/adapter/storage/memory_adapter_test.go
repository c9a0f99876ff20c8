package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazar-store/bazar/internal/core/domain"
)

func TestMemoryCatalog_ReserveStock(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog()
	require.NoError(t, c.PutItem(ctx, domain.Item{ID: 1, Title: "RPCs for Noobs", Stock: 5}))

	remaining, err := c.ReserveStock(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)

	_, err = c.ReserveStock(ctx, 1, 4)
	assert.ErrorIs(t, err, domain.ErrOutOfStock)

	item, err := c.GetItem(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, item.Stock)

	_, err = c.ReserveStock(ctx, 999, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryCatalog_RestoreStock(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog()
	require.NoError(t, c.PutItem(ctx, domain.Item{ID: 1, Stock: 0}))

	stock, err := c.RestoreStock(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, stock)

	_, err = c.RestoreStock(ctx, 999, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryCatalog_ConcurrentReserve(t *testing.T) {
	const (
		initialStock = 30
		attempts     = 100
	)
	ctx := context.Background()
	c := NewMemoryCatalog()
	require.NoError(t, c.PutItem(ctx, domain.Item{ID: 1, Stock: initialStock}))

	var success atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.ReserveStock(ctx, 1, 1); err == nil {
				success.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(initialStock), success.Load())
	item, err := c.GetItem(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, item.Stock)
	assert.GreaterOrEqual(t, item.Stock, 0)
}

func TestMemoryCatalog_DistinctItemsDoNotContend(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog()
	require.NoError(t, c.PutItem(ctx, domain.Item{ID: 1, Stock: 1000}))
	require.NoError(t, c.PutItem(ctx, domain.Item{ID: 2, Stock: 1000}))

	var wg sync.WaitGroup
	for id := 1; id <= 2; id++ {
		for i := 0; i < 500; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				_, err := c.ReserveStock(ctx, id, 1)
				assert.NoError(t, err)
			}(id)
		}
	}
	wg.Wait()

	for id := 1; id <= 2; id++ {
		item, err := c.GetItem(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 500, item.Stock)
	}
}

func TestMemoryCatalog_ListItems(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog()
	require.NoError(t, c.PutItem(ctx, domain.Item{ID: 2, Topic: "distributed systems"}))
	require.NoError(t, c.PutItem(ctx, domain.Item{ID: 1, Topic: "undergraduate school"}))
	require.NoError(t, c.PutItem(ctx, domain.Item{ID: 3, Topic: "distributed systems"}))

	items, err := c.ListItems(ctx, func(it domain.Item) bool {
		return it.Topic == "distributed systems"
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].ID)
	assert.Equal(t, 3, items[1].ID)
}

func TestMemoryOrderStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryOrderStore()

	order := domain.Order{OrderID: "o-1", ItemID: 1, Timestamp: time.Now().UTC()}
	require.NoError(t, s.AppendOrder(ctx, order))

	got, err := s.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, order, got)

	// Appends are write-once per order id.
	assert.Error(t, s.AppendOrder(ctx, order))

	_, err = s.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryIdempotency_ClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryIdempotency()

	orderID, claimed, err := s.Claim(ctx, "k")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Empty(t, orderID)

	// In flight: second claim fails with no order.
	orderID, claimed, err = s.Claim(ctx, "k")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Empty(t, orderID)

	require.NoError(t, s.Complete(ctx, "k", "o-9"))
	orderID, claimed, err = s.Claim(ctx, "k")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "o-9", orderID)

	// Released keys can be claimed again.
	require.NoError(t, s.Release(ctx, "k2"))
	_, claimed, err = s.Claim(ctx, "k2")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestMemoryIdempotency_ConcurrentClaim(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryIdempotency()

	var claims atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, claimed, err := s.Claim(ctx, "same-key")
			assert.NoError(t, err)
			if claimed {
				claims.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), claims.Load())
}
