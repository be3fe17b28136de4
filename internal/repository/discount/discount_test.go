package discount

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/db/dbtest"
	"storefront/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestPostgres_UpsertCanonicalizesCode(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgres(dbtest.Pool(t), nil)

	d, err := repo.Upsert(ctx, UpsertInput{Code: " welcome10 ", Type: domain.DiscountPercentage, Value: decimal.NewFromInt(10), Active: true})
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", d.Code)

	got, err := repo.GetByCode(ctx, "WELCOME10")
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)

	_, err = repo.GetByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.Upsert(ctx, UpsertInput{Code: "BAD", Type: "BOGO"})
	assert.Error(t, err)
}

func TestIncrementUsage_RespectsMaxUses(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, nil)

	d, err := repo.Upsert(ctx, UpsertInput{Code: "TWICE", Type: domain.DiscountFixedAmount, Value: decimal.NewFromInt(5), MaxUses: intPtr(2), Active: true})
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := IncrementUsage(ctx, pool, d.ID)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrUsageLimitReached)
	}
	assert.Equal(t, 2, ok)

	got, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsedCount)
}

func TestIncrementUsage_InactiveCode(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, nil)

	d, err := repo.Upsert(ctx, UpsertInput{Code: "OFF", Type: domain.DiscountFreeShipping, Active: false})
	require.NoError(t, err)

	assert.ErrorIs(t, IncrementUsage(ctx, pool, d.ID), domain.ErrCodeInactive)
	assert.ErrorIs(t, IncrementUsage(ctx, pool, "00000000-0000-0000-0000-000000000000"), domain.ErrInvalidCode)
}
