// Package dbtest connects repository integration tests to a real Postgres.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"storefront/internal/migrate"
)

// Pool returns a migrated, truncated pool for TEST_DB_DSN. The test is
// skipped when TEST_DB_DSN is not set.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err, "connect db")
	t.Cleanup(pool.Close)

	require.NoError(t, migrate.Apply(ctx, pool), "apply migrations")
	Reset(t, pool)
	return pool
}

// Reset truncates every application table.
func Reset(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
TRUNCATE fulfillments, payments, order_items, orders, cart_items, carts,
         discount_codes, store_settings, product_variants, products,
         addresses, tokens, customers, users
RESTART IDENTITY CASCADE`)
	require.NoError(t, err, "truncate tables")
}

// InsertVariant creates an active product with a single variant and returns
// the variant id.
func InsertVariant(t *testing.T, pool *pgxpool.Pool, sku, price string, inventory int) string {
	t.Helper()
	ctx := context.Background()
	var productID, variantID string
	err := pool.QueryRow(ctx, `
INSERT INTO products (title, slug) VALUES ($1, $2) RETURNING id::text
`, "Product "+sku, "product-"+sku).Scan(&productID)
	require.NoError(t, err, "insert product")
	err = pool.QueryRow(ctx, `
INSERT INTO product_variants (product_id, title, sku, price, inventory_quantity)
VALUES ($1, 'Default', $2, $3::numeric, $4)
RETURNING id::text
`, productID, sku, price, inventory).Scan(&variantID)
	require.NoError(t, err, "insert variant")
	return variantID
}

// InsertCustomer creates a user with its customer profile and returns the
// customer id.
func InsertCustomer(t *testing.T, pool *pgxpool.Pool, email string) string {
	t.Helper()
	ctx := context.Background()
	var userID, customerID string
	err := pool.QueryRow(ctx, `
INSERT INTO users (email, password_hash) VALUES ($1, 'x') RETURNING id::text
`, email).Scan(&userID)
	require.NoError(t, err, "insert user")
	err = pool.QueryRow(ctx, `
INSERT INTO customers (user_id, email) VALUES ($1, $2) RETURNING id::text
`, userID, email).Scan(&customerID)
	require.NoError(t, err, "insert customer")
	return customerID
}

// Inventory reads the stored inventory of a variant.
func Inventory(t *testing.T, pool *pgxpool.Pool, variantID string) int {
	t.Helper()
	var qty int
	err := pool.QueryRow(context.Background(),
		`SELECT inventory_quantity FROM product_variants WHERE id = $1`, variantID).Scan(&qty)
	require.NoError(t, err, "read inventory")
	return qty
}
