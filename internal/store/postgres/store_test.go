package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sheetalert/internal/contracts"
	"github.com/wonny/sheetalert/pkg/database"
)

func integrationStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err, "database connection failed")
	t.Cleanup(pool.Close)

	db := &database.DB{Pool: pool}
	require.NoError(t, db.Migrate(context.Background()))

	return New(pool)
}

func TestStoreRoundTrip(t *testing.T) {
	s := integrationStore(t)
	ctx := context.Background()

	sheet := &contracts.Sheet{ID: "test-sheet-rt", Title: "RT", StockIDs: []string{"zz1", "zz2"}, UserIDs: []string{"test-user-rt"}}
	user := &contracts.User{ID: "test-user-rt", Email: "rt@example.com", Notify: true, SheetIDs: []string{sheet.ID}}
	stock := &contracts.Stock{ID: "zz1", SheetIDs: []string{sheet.ID}}
	binding := &contracts.Binding{SheetID: sheet.ID, Symbol: "zz1", BoundLower: 1.5, BoundUpper: 3}

	t.Cleanup(func() {
		s.Delete(ctx, &contracts.Keys{
			Users:    []string{user.ID},
			Sheets:   []string{sheet.ID},
			Stocks:   []string{stock.ID},
			Bindings: []contracts.BindingKey{binding.Key()},
		})
	})

	require.NoError(t, s.Put(ctx, &contracts.Batch{
		Users:    []*contracts.User{user},
		Sheets:   []*contracts.Sheet{sheet},
		Stocks:   []*contracts.Stock{stock},
		Bindings: []*contracts.Binding{binding},
	}))
	assert.False(t, sheet.LastUpdated.IsZero())

	gotSheet, err := s.GetSheet(ctx, sheet.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"zz1", "zz2"}, gotSheet.StockIDs)

	gotStock, err := s.GetStock(ctx, stock.ID)
	require.NoError(t, err)
	assert.Nil(t, gotStock.Price)

	require.NoError(t, s.SetPrices(ctx, map[string]*float64{stock.ID: contracts.Price(12.34), "zz-missing": contracts.Price(1)}))
	gotStock, err = s.GetStock(ctx, stock.ID)
	require.NoError(t, err)
	require.NotNil(t, gotStock.Price)
	assert.Equal(t, 12.34, *gotStock.Price)
	assert.Equal(t, []string{sheet.ID}, gotStock.SheetIDs)
	_, err = s.GetStock(ctx, "zz-missing")
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	gotBinding, err := s.GetBinding(ctx, binding.Key())
	require.NoError(t, err)
	assert.Equal(t, 1.5, gotBinding.BoundLower)

	notify, err := s.ListUsersToNotify(ctx)
	require.NoError(t, err)
	found := false
	for _, u := range notify {
		if u.ID == user.ID {
			found = true
		}
	}
	assert.True(t, found)

	require.NoError(t, s.Delete(ctx, &contracts.Keys{Bindings: []contracts.BindingKey{binding.Key()}}))
	_, err = s.GetBinding(ctx, binding.Key())
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func TestEmptyBatchIsNoop(t *testing.T) {
	s := New(nil)
	assert.NoError(t, s.Put(context.Background(), &contracts.Batch{}))
	assert.NoError(t, s.Delete(context.Background(), &contracts.Keys{}))
}
