package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/db/dbtest"
	"storefront/internal/domain"
)

func TestPostgres_GetOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, time.Hour, nil)

	owner := domain.SessionOwner("sess-1")
	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := repo.GetOrCreate(ctx, owner)
			if assert.NoError(t, err) {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	c, err := repo.FindByOwner(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, c.ExpiresAt)
	assert.True(t, c.ExpiresAt.After(time.Now()))
	assert.Empty(t, c.Lines)
}

func TestPostgres_AddItemRespectsInventory(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, time.Hour, nil)
	variantID := dbtest.InsertVariant(t, pool, "TEE-M", "49.99", 3)

	c, err := repo.GetOrCreate(ctx, domain.SessionOwner("sess-add"))
	require.NoError(t, err)

	require.NoError(t, repo.AddItem(ctx, c.ID, variantID, 2))
	err = repo.AddItem(ctx, c.ID, variantID, 2)
	require.ErrorIs(t, err, domain.ErrInsufficientInventory)
	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
	require.NotNil(t, derr.Available)
	assert.Equal(t, 3, *derr.Available)

	c, err = repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 2, c.Lines[0].Quantity, "rejected add must not change the line")
	assert.Equal(t, "99.98", c.Subtotal().StringFixed(2))
	assert.Equal(t, "TEE-M", c.Lines[0].Variant.SKU)
}

func TestPostgres_SetItemQuantity(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, time.Hour, nil)
	variantID := dbtest.InsertVariant(t, pool, "MUG", "12.00", 5)
	customerID := dbtest.InsertCustomer(t, pool, "a@example.com")

	c, err := repo.GetOrCreate(ctx, domain.CustomerOwner(customerID))
	require.NoError(t, err)
	assert.Nil(t, c.ExpiresAt, "customer carts do not expire")
	require.NoError(t, repo.AddItem(ctx, c.ID, variantID, 1))
	c, err = repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	itemID := c.Lines[0].ID

	require.ErrorIs(t, repo.SetItemQuantity(ctx, c.ID, itemID, 6), domain.ErrInsufficientInventory)
	require.NoError(t, repo.SetItemQuantity(ctx, c.ID, itemID, 5))
	require.ErrorIs(t, repo.SetItemQuantity(ctx, c.ID, "00000000-0000-0000-0000-000000000000", 1), domain.ErrCartItemNotFound)

	require.NoError(t, repo.SetItemQuantity(ctx, c.ID, itemID, 0))
	c, err = repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, c.Lines)

	require.NoError(t, repo.RemoveItem(ctx, c.ID, itemID), "removing a missing item is a no-op")
}

func TestPostgres_ApplyMergeDeletesSource(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, time.Hour, nil)
	a := dbtest.InsertVariant(t, pool, "A", "10.00", 5)
	b := dbtest.InsertVariant(t, pool, "B", "5.00", 5)
	customerID := dbtest.InsertCustomer(t, pool, "m@example.com")

	guest, err := repo.GetOrCreate(ctx, domain.SessionOwner("sess-merge"))
	require.NoError(t, err)
	require.NoError(t, repo.AddItem(ctx, guest.ID, a, 3))
	require.NoError(t, repo.AddItem(ctx, guest.ID, b, 1))

	target, err := repo.GetOrCreate(ctx, domain.CustomerOwner(customerID))
	require.NoError(t, err)
	require.NoError(t, repo.AddItem(ctx, target.ID, a, 4))

	existing, err := repo.LinesForVariants(ctx, target.ID, []string{a, b})
	require.NoError(t, err)
	require.Len(t, existing, 1)
	assert.Equal(t, 4, existing[a].Quantity)

	require.NoError(t, repo.ApplyMerge(ctx, MergePlan{
		TargetCartID: target.ID,
		SourceCartID: guest.ID,
		Updates:      []MergeLine{{VariantID: a, Quantity: 5}},
		Inserts:      []MergeLine{{VariantID: b, Quantity: 1}},
	}))

	_, err = repo.FindByOwner(ctx, domain.SessionOwner("sess-merge"))
	require.ErrorIs(t, err, domain.ErrNotFound)

	merged, err := repo.GetByID(ctx, target.ID)
	require.NoError(t, err)
	la, ok := merged.Line(a)
	require.True(t, ok)
	assert.Equal(t, 5, la.Quantity)
	lb, ok := merged.Line(b)
	require.True(t, ok)
	assert.Equal(t, 1, lb.Quantity)
}

func TestPostgres_ExpiredCartsAreAbsentAndSwept(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, time.Hour, nil)

	c, err := repo.GetOrCreate(ctx, domain.SessionOwner("sess-old"))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `UPDATE carts SET expires_at = now() - interval '1 minute' WHERE id = $1`, c.ID)
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, c.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, repo.Clear(ctx, c.ID), domain.ErrCartNotFound)

	n, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	fresh, err := repo.GetOrCreate(ctx, domain.SessionOwner("sess-old"))
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, fresh.ID)
}
