package variant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/db"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

const selectVariant = `
SELECT v.id::text, v.product_id::text, p.title, p.slug, p.status, p.deleted_at IS NOT NULL,
       v.title, v.sku, v.price, v.compare_at_price, v.inventory_quantity, v.image_url, v.updated_at
FROM product_variants v
JOIN products p ON p.id = v.product_id
`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger)}
}

func (r *postgresRepo) Get(ctx context.Context, id string) (*domain.Variant, error) {
	v, err := scanVariant(r.pool.QueryRow(ctx, selectVariant+`WHERE v.id = $1`, id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.logger.Debug("variant repo: not found", zap.String("variant_id", id))
			return nil, err
		}
		r.logger.Error("variant repo: get", zap.String("variant_id", id), zap.Error(err))
		return nil, err
	}
	return v, nil
}

func (r *postgresRepo) GetMany(ctx context.Context, ids []string) (map[string]domain.Variant, error) {
	out := make(map[string]domain.Variant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, selectVariant+`WHERE v.id = ANY($1::text[]::uuid[])`, ids)
	if err != nil {
		if db.IsInvalidInput(err) {
			return out, nil
		}
		r.logger.Error("variant repo: get many", zap.Int("count", len(ids)), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		out[v.ID] = *v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, in UpsertInput) (*domain.Variant, error) {
	status := in.ProductStatus
	if status == "" {
		status = domain.ProductStatusActive
	}
	var compareAt decimal.NullDecimal
	if in.CompareAtPrice != nil {
		compareAt = decimal.NewNullDecimal(*in.CompareAtPrice)
	}

	var variantID string
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		var productID string
		if err := tx.QueryRow(ctx, `
INSERT INTO products (title, slug, status)
VALUES ($1, $2, $3)
ON CONFLICT (slug) DO UPDATE SET title = EXCLUDED.title, status = EXCLUDED.status
RETURNING id::text
`, in.ProductTitle, in.ProductSlug, status).Scan(&productID); err != nil {
			return fmt.Errorf("upsert product %s: %w", in.ProductSlug, err)
		}
		if err := tx.QueryRow(ctx, `
INSERT INTO product_variants (product_id, title, sku, price, compare_at_price, inventory_quantity, image_url)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (sku) DO UPDATE SET
    product_id = EXCLUDED.product_id,
    title = EXCLUDED.title,
    price = EXCLUDED.price,
    compare_at_price = EXCLUDED.compare_at_price,
    inventory_quantity = EXCLUDED.inventory_quantity,
    image_url = EXCLUDED.image_url,
    updated_at = now()
RETURNING id::text
`, productID, in.Title, in.SKU, in.Price, compareAt, in.InventoryQuantity, in.ImageURL).Scan(&variantID); err != nil {
			return fmt.Errorf("upsert variant %s: %w", in.SKU, err)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("variant repo: upsert", zap.String("sku", in.SKU), zap.Error(err))
		return nil, err
	}
	r.logger.Info("variant repo: upserted", zap.String("sku", in.SKU), zap.String("variant_id", variantID))
	return r.Get(ctx, variantID)
}

// Decrement atomically removes qty units of inventory. It refuses to go below
// zero against the quantity committed at execution time, returning an
// InsufficientInventory error with the quantity that was available.
func Decrement(ctx context.Context, q db.Querier, variantID string, qty int) error {
	var remaining int
	err := q.QueryRow(ctx, `
UPDATE product_variants
SET inventory_quantity = inventory_quantity - $2, updated_at = now()
WHERE id = $1 AND inventory_quantity >= $2
RETURNING inventory_quantity
`, variantID, qty).Scan(&remaining)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("decrement inventory %s: %w", variantID, err)
	}
	available, err := Available(ctx, q, variantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.InsufficientInventory(variantID, 0)
		}
		return err
	}
	return domain.InsufficientInventory(variantID, available)
}

// Available reads the committed inventory quantity of a variant.
func Available(ctx context.Context, q db.Querier, variantID string) (int, error) {
	var qty int
	err := q.QueryRow(ctx, `SELECT inventory_quantity FROM product_variants WHERE id = $1`, variantID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("read inventory %s: %w", variantID, err)
	}
	return qty, nil
}

func scanVariant(row pgx.Row) (*domain.Variant, error) {
	var (
		v         domain.Variant
		status    string
		compareAt decimal.NullDecimal
	)
	err := row.Scan(
		&v.ID,
		&v.ProductID,
		&v.ProductTitle,
		&v.ProductSlug,
		&status,
		&v.ProductDeleted,
		&v.Title,
		&v.SKU,
		&v.Price,
		&compareAt,
		&v.InventoryQuantity,
		&v.ImageURL,
		&v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	v.ProductStatus = domain.ProductStatus(status)
	if compareAt.Valid {
		c := compareAt.Decimal
		v.CompareAtPrice = &c
	}
	return &v, nil
}
