package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/db"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/repository/variant"
)

const selectCart = `
SELECT id::text, customer_id::text, session_id, expires_at, created_at, updated_at
FROM carts
`

const liveCart = `(expires_at IS NULL OR expires_at > now())`

type postgresRepo struct {
	pool    *pgxpool.Pool
	anonTTL time.Duration
	logger  *zap.Logger
}

// NewPostgres returns a Repository backed by Postgres. Anonymous carts expire
// anonTTL after their last mutation.
func NewPostgres(pool *pgxpool.Pool, anonTTL time.Duration, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, anonTTL: anonTTL, logger: logging.OrNop(logger)}
}

func (r *postgresRepo) GetOrCreate(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, domain.ErrInvalidIdentity
	}
	if owner.Anonymous() {
		// An expired cart is dead; drop it so the session starts over.
		if _, err := r.pool.Exec(ctx, `
DELETE FROM carts WHERE session_id = $1 AND expires_at <= now()
`, owner.SessionID); err != nil {
			return nil, fmt.Errorf("drop expired cart: %w", err)
		}
		if _, err := r.pool.Exec(ctx, `
INSERT INTO carts (session_id, expires_at)
VALUES ($1, now() + make_interval(secs => $2))
ON CONFLICT (session_id) DO NOTHING
`, owner.SessionID, r.anonTTL.Seconds()); err != nil {
			return nil, fmt.Errorf("create session cart: %w", err)
		}
	} else {
		if _, err := r.pool.Exec(ctx, `
INSERT INTO carts (customer_id)
VALUES ($1)
ON CONFLICT (customer_id) DO NOTHING
`, owner.CustomerID); err != nil {
			if db.IsInvalidInput(err) {
				return nil, domain.ErrInvalidIdentity
			}
			return nil, fmt.Errorf("create customer cart: %w", err)
		}
	}
	c, err := r.FindByOwner(ctx, owner)
	if err != nil {
		r.logger.Error("cart repo: get or create", zap.Error(err))
		return nil, err
	}
	return c, nil
}

func (r *postgresRepo) FindByOwner(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, domain.ErrInvalidIdentity
	}
	if owner.Anonymous() {
		return r.fetchCart(ctx, selectCart+`WHERE session_id = $1 AND `+liveCart, owner.SessionID)
	}
	return r.fetchCart(ctx, selectCart+`WHERE customer_id = $1`, owner.CustomerID)
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Cart, error) {
	return r.fetchCart(ctx, selectCart+`WHERE id = $1 AND `+liveCart, id)
}

func (r *postgresRepo) LinesForVariants(ctx context.Context, cartID string, variantIDs []string) (map[string]domain.CartLine, error) {
	out := make(map[string]domain.CartLine, len(variantIDs))
	if len(variantIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
SELECT id::text, cart_id::text, variant_id::text, quantity, created_at
FROM cart_items
WHERE cart_id = $1 AND variant_id = ANY($2::text[]::uuid[])
`, cartID, variantIDs)
	if err != nil {
		return nil, fmt.Errorf("load cart lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.ID, &l.CartID, &l.VariantID, &l.Quantity, &l.CreatedAt); err != nil {
			return nil, err
		}
		out[l.VariantID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AddItem increments (or inserts) the line and validates the new total
// against committed inventory in the same transaction, rolling back when the
// line would exceed it.
func (r *postgresRepo) AddItem(ctx context.Context, cartID, variantID string, quantity int) error {
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := r.touch(ctx, tx, cartID); err != nil {
			return err
		}
		var newQty int
		if err := tx.QueryRow(ctx, `
INSERT INTO cart_items (cart_id, variant_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (cart_id, variant_id) DO UPDATE
SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
RETURNING quantity
`, cartID, variantID, quantity).Scan(&newQty); err != nil {
			if db.IsForeignKeyViolation(err) || db.IsInvalidInput(err) {
				return domain.ErrUnavailableVariant
			}
			return fmt.Errorf("upsert cart item: %w", err)
		}
		available, err := variant.Available(ctx, tx, variantID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrUnavailableVariant
			}
			return err
		}
		if newQty > available {
			return domain.InsufficientInventory(variantID, available)
		}
		return nil
	})
	if err != nil {
		r.logDomainAware("cart repo: add item", err, zap.String("cart_id", cartID), zap.String("variant_id", variantID))
	}
	return err
}

func (r *postgresRepo) SetItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error {
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := r.touch(ctx, tx, cartID); err != nil {
			return err
		}
		if quantity <= 0 {
			tag, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
			if err != nil {
				if db.IsInvalidInput(err) {
					return domain.ErrCartItemNotFound
				}
				return fmt.Errorf("delete cart item: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return domain.ErrCartItemNotFound
			}
			return nil
		}

		var variantID string
		err := tx.QueryRow(ctx, `
UPDATE cart_items
SET quantity = $3, updated_at = now()
WHERE id = $1 AND cart_id = $2
RETURNING variant_id::text
`, itemID, cartID, quantity).Scan(&variantID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
				return domain.ErrCartItemNotFound
			}
			return fmt.Errorf("update cart item: %w", err)
		}
		available, err := variant.Available(ctx, tx, variantID)
		if err != nil {
			return err
		}
		if quantity > available {
			return domain.InsufficientInventory(variantID, available)
		}
		return nil
	})
	if err != nil {
		r.logDomainAware("cart repo: set item quantity", err, zap.String("cart_id", cartID), zap.String("item_id", itemID))
	}
	return err
}

func (r *postgresRepo) RemoveItem(ctx context.Context, cartID, itemID string) error {
	return db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := r.touch(ctx, tx, cartID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID); err != nil {
			if db.IsInvalidInput(err) {
				return nil
			}
			return fmt.Errorf("remove cart item: %w", err)
		}
		return nil
	})
}

func (r *postgresRepo) Clear(ctx context.Context, cartID string) error {
	return db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := r.touch(ctx, tx, cartID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	})
}

func (r *postgresRepo) ApplyMerge(ctx context.Context, plan MergePlan) error {
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := r.touch(ctx, tx, plan.TargetCartID); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, u := range plan.Updates {
			batch.Queue(`
UPDATE cart_items SET quantity = $3, updated_at = now()
WHERE cart_id = $1 AND variant_id = $2
`, plan.TargetCartID, u.VariantID, u.Quantity)
		}
		for _, in := range plan.Inserts {
			batch.Queue(`
INSERT INTO cart_items (cart_id, variant_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (cart_id, variant_id) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()
`, plan.TargetCartID, in.VariantID, in.Quantity)
		}
		batch.Queue(`DELETE FROM carts WHERE id = $1`, plan.SourceCartID)
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("apply merge: %w", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("cart repo: apply merge",
			zap.String("target_cart_id", plan.TargetCartID),
			zap.String("source_cart_id", plan.SourceCartID),
			zap.Error(err))
		return err
	}
	r.logger.Info("cart repo: merged",
		zap.String("target_cart_id", plan.TargetCartID),
		zap.String("source_cart_id", plan.SourceCartID),
		zap.Int("updates", len(plan.Updates)),
		zap.Int("inserts", len(plan.Inserts)))
	return nil
}

func (r *postgresRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired carts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// touch locks the live cart row, bumps updated_at and slides the expiry of
// anonymous carts.
func (r *postgresRepo) touch(ctx context.Context, q db.Querier, cartID string) error {
	var id string
	err := q.QueryRow(ctx, `
UPDATE carts
SET updated_at = now(),
    expires_at = CASE WHEN session_id IS NOT NULL THEN now() + make_interval(secs => $2) END
WHERE id = $1 AND `+liveCart+`
RETURNING id::text
`, cartID, r.anonTTL.Seconds()).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
			return domain.ErrCartNotFound
		}
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

func (r *postgresRepo) logDomainAware(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if domain.KindOf(err) != "" {
		r.logger.Debug(msg, fields...)
		return
	}
	r.logger.Error(msg, fields...)
}

func (r *postgresRepo) fetchCart(ctx context.Context, cartQuery string, args ...any) (*domain.Cart, error) {
	var c domain.Cart
	err := r.pool.QueryRow(ctx, cartQuery, args...).Scan(
		&c.ID,
		&c.CustomerID,
		&c.SessionID,
		&c.ExpiresAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	const linesQuery = `
SELECT ci.id::text, ci.cart_id::text, ci.variant_id::text, ci.quantity, ci.created_at,
       v.product_id::text, p.title, p.slug, p.status, p.deleted_at IS NOT NULL,
       v.title, v.sku, v.price, v.compare_at_price, v.inventory_quantity, v.image_url, v.updated_at
FROM cart_items ci
JOIN product_variants v ON v.id = ci.variant_id
JOIN products p ON p.id = v.product_id
WHERE ci.cart_id = $1
ORDER BY ci.created_at ASC, ci.id ASC
`
	rows, err := r.pool.Query(ctx, linesQuery, c.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	c.Lines = []domain.CartLine{}
	for rows.Next() {
		var (
			line      domain.CartLine
			status    string
			compareAt decimal.NullDecimal
		)
		if err := rows.Scan(
			&line.ID,
			&line.CartID,
			&line.VariantID,
			&line.Quantity,
			&line.CreatedAt,
			&line.Variant.ProductID,
			&line.Variant.ProductTitle,
			&line.Variant.ProductSlug,
			&status,
			&line.Variant.ProductDeleted,
			&line.Variant.Title,
			&line.Variant.SKU,
			&line.Variant.Price,
			&compareAt,
			&line.Variant.InventoryQuantity,
			&line.Variant.ImageURL,
			&line.Variant.UpdatedAt,
		); err != nil {
			return nil, err
		}
		line.Variant.ID = line.VariantID
		line.Variant.ProductStatus = domain.ProductStatus(status)
		if compareAt.Valid {
			v := compareAt.Decimal
			line.Variant.CompareAtPrice = &v
		}
		c.Lines = append(c.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &c, nil
}
