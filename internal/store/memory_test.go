package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmart/backend/internal/models"
)

func newListing(name, seller string, price int64) *models.Listing {
	return &models.Listing{
		Name:        name,
		Description: "a test model",
		Price:       price,
		Seller:      seller,
		AssetRef:    "asset.bin",
	}
}

func TestMemory_Create(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	t.Run("ids are strictly increasing from 1", func(t *testing.T) {
		first := newListing("M1", "0xa", 100)
		second := newListing("M2", "0xb", 200)

		require.NoError(t, m.Create(ctx, first))
		require.NoError(t, m.Create(ctx, second))

		assert.Equal(t, int64(1), first.ID)
		assert.Equal(t, int64(2), second.ID)
		assert.Equal(t, models.ListingAvailable, first.Status)
		assert.False(t, first.CreatedAt.IsZero())
	})
}

func TestMemory_List(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Create(ctx, newListing("M1", "0xa", 100)))
	require.NoError(t, m.Create(ctx, newListing("M2", "0xb", 200)))
	require.NoError(t, m.Create(ctx, newListing("M3", "0xc", 300)))

	t.Run("creation order", func(t *testing.T) {
		listings, err := m.List(ctx)
		require.NoError(t, err)
		require.Len(t, listings, 3)
		assert.Equal(t, "M1", listings[0].Name)
		assert.Equal(t, "M2", listings[1].Name)
		assert.Equal(t, "M3", listings[2].Name)
	})

	t.Run("idempotent without intervening mutation", func(t *testing.T) {
		first, err := m.List(ctx)
		require.NoError(t, err)
		second, err := m.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("returned copies do not alias store state", func(t *testing.T) {
		listings, err := m.List(ctx)
		require.NoError(t, err)
		listings[0].Status = models.ListingSold

		fresh, err := m.Get(ctx, listings[0].ID)
		require.NoError(t, err)
		assert.Equal(t, models.ListingAvailable, fresh.Status)
	})
}

func TestMemory_Get(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Create(ctx, newListing("M1", "0xa", 100)))

	t.Run("found", func(t *testing.T) {
		listing, err := m.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "M1", listing.Name)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := m.Get(ctx, 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemory_MarkSold(t *testing.T) {
	ctx := context.Background()

	t.Run("transitions exactly once", func(t *testing.T) {
		m := NewMemory()
		require.NoError(t, m.Create(ctx, newListing("M1", "0xa", 100)))

		sold, err := m.MarkSold(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, models.ListingSold, sold.Status)
		require.NotNil(t, sold.SoldAt)

		_, err = m.MarkSold(ctx, 1)
		assert.ErrorIs(t, err, ErrAlreadySold)
	})

	t.Run("unknown id", func(t *testing.T) {
		m := NewMemory()
		_, err := m.MarkSold(ctx, 42)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent calls yield a single success", func(t *testing.T) {
		m := NewMemory()
		require.NoError(t, m.Create(ctx, newListing("M1", "0xa", 100)))

		var wg sync.WaitGroup
		var mu sync.Mutex
		successes := 0
		alreadySold := 0

		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := m.MarkSold(ctx, 1)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case err == ErrAlreadySold:
					alreadySold++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, 49, alreadySold)
	})
}
