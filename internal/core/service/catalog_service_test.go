package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazar-store/bazar/internal/adapter/storage"
	"github.com/bazar-store/bazar/internal/core/domain"
)

const seedCSV = `item_number,title,topic,stock,cost
1,How to get a good grade in DOS in 40 minutes a day,distributed systems,10,30
2,RPCs for Noobs,distributed systems,7,25
3,Xen and the Art of Surviving Undergraduate School,undergraduate school,5,40
4,Cooking for the Impatient Undergrad,undergraduate school,3,15
`

func newSeededCatalog(t *testing.T) *CatalogService {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalog.csv")
	require.NoError(t, os.WriteFile(path, []byte(seedCSV), 0o644))

	svc := NewCatalogService(storage.NewMemoryCatalog(), zerolog.Nop())
	require.NoError(t, svc.SeedFromCSV(context.Background(), path))
	return svc
}

func TestSeedFromCSV(t *testing.T) {
	svc := newSeededCatalog(t)

	item, err := svc.GetItem(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "RPCs for Noobs", item.Title)
	assert.Equal(t, "distributed systems", item.Topic)
	assert.Equal(t, 7, item.Stock)
	assert.Equal(t, 25, item.Cost)
}

func TestSeedFromCSV_MissingFileIsEmptyCatalog(t *testing.T) {
	svc := NewCatalogService(storage.NewMemoryCatalog(), zerolog.Nop())
	err := svc.SeedFromCSV(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, err)

	_, err = svc.GetItem(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSeedFromCSV_SkipsWhenNotEmpty(t *testing.T) {
	repo := storage.NewMemoryCatalog()
	require.NoError(t, repo.PutItem(context.Background(), domain.Item{ID: 42, Title: "Existing", Stock: 1}))

	path := filepath.Join(t.TempDir(), "catalog.csv")
	require.NoError(t, os.WriteFile(path, []byte(seedCSV), 0o644))

	svc := NewCatalogService(repo, zerolog.Nop())
	require.NoError(t, svc.SeedFromCSV(context.Background(), path))

	_, err := svc.GetItem(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSearchByTopic(t *testing.T) {
	svc := newSeededCatalog(t)

	items, err := svc.SearchByTopic(context.Background(), "Distributed Systems")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"How to get a good grade in DOS in 40 minutes a day": 1,
		"RPCs for Noobs": 2,
	}, items)

	items, err = svc.SearchByTopic(context.Background(), "knitting")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSearchByKeyword(t *testing.T) {
	svc := newSeededCatalog(t)

	items, err := svc.SearchByKeyword(context.Background(), "undergrad")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"Xen and the Art of Surviving Undergraduate School": 3,
		"Cooking for the Impatient Undergrad":               4,
	}, items)

	items, err = svc.SearchByKeyword(context.Background(), "RPC")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"RPCs for Noobs": 2}, items)
}

func TestReserveRestoreRoundTrip(t *testing.T) {
	svc := newSeededCatalog(t)
	ctx := context.Background()

	before, err := svc.GetItem(ctx, 3)
	require.NoError(t, err)

	remaining, err := svc.ReserveStock(ctx, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, before.Stock-2, remaining)

	restored, err := svc.RestoreStock(ctx, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, before.Stock, restored)

	after, err := svc.GetItem(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, before.Stock, after.Stock)
}

// racingCatalog fails ReserveStock with ErrReservationRace a set number of
// times before delegating to the real store.
type racingCatalog struct {
	*storage.MemoryCatalog
	races    int
	attempts int
}

func (c *racingCatalog) ReserveStock(ctx context.Context, id, quantity int) (int, error) {
	c.attempts++
	if c.attempts <= c.races {
		return 0, domain.ErrReservationRace
	}
	return c.MemoryCatalog.ReserveStock(ctx, id, quantity)
}

func TestReserveStock_RetriesTransientRaces(t *testing.T) {
	repo := &racingCatalog{MemoryCatalog: storage.NewMemoryCatalog(), races: 2}
	require.NoError(t, repo.PutItem(context.Background(), domain.Item{ID: 1, Stock: 5}))
	svc := NewCatalogService(repo, zerolog.Nop())

	remaining, err := svc.ReserveStock(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, remaining)
	assert.Equal(t, 3, repo.attempts)
}

func TestReserveStock_RaceBudgetExhausted(t *testing.T) {
	repo := &racingCatalog{MemoryCatalog: storage.NewMemoryCatalog(), races: 100}
	require.NoError(t, repo.PutItem(context.Background(), domain.Item{ID: 1, Stock: 5}))
	svc := NewCatalogService(repo, zerolog.Nop())

	_, err := svc.ReserveStock(context.Background(), 1, 1)
	assert.ErrorIs(t, err, domain.ErrReservationRace)
	assert.Equal(t, reserveAttempts, repo.attempts)

	// The failed attempts never touched the stock.
	item, err := repo.GetItem(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Stock)
}

func TestReserveStock_Errors(t *testing.T) {
	svc := newSeededCatalog(t)
	ctx := context.Background()

	_, err := svc.ReserveStock(ctx, 999, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.ReserveStock(ctx, 4, 100)
	assert.ErrorIs(t, err, domain.ErrOutOfStock)

	// Failed reservation leaves stock unchanged.
	item, err := svc.GetItem(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, item.Stock)

	_, err = svc.ReserveStock(ctx, 4, 0)
	assert.Error(t, err)
}
