package discount

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

const selectDiscount = `
SELECT id::text, code, type, value, min_order_amount, starts_at, ends_at, max_uses, used_count, is_active, created_at
FROM discount_codes
`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger)}
}

func (r *postgresRepo) GetByCode(ctx context.Context, code string) (*domain.DiscountCode, error) {
	return scanDiscount(r.pool.QueryRow(ctx, selectDiscount+`WHERE code = $1`, domain.CanonicalCode(code)))
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.DiscountCode, error) {
	return scanDiscount(r.pool.QueryRow(ctx, selectDiscount+`WHERE id = $1`, id))
}

func (r *postgresRepo) Upsert(ctx context.Context, in UpsertInput) (*domain.DiscountCode, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("discount type %q is not supported", in.Type)
	}
	var minOrder decimal.NullDecimal
	if in.MinOrderAmount != nil {
		minOrder = decimal.NewNullDecimal(*in.MinOrderAmount)
	}
	d, err := scanDiscount(r.pool.QueryRow(ctx, `
INSERT INTO discount_codes (code, type, value, min_order_amount, starts_at, ends_at, max_uses, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (code) DO UPDATE SET
    type = EXCLUDED.type,
    value = EXCLUDED.value,
    min_order_amount = EXCLUDED.min_order_amount,
    starts_at = EXCLUDED.starts_at,
    ends_at = EXCLUDED.ends_at,
    max_uses = EXCLUDED.max_uses,
    is_active = EXCLUDED.is_active
RETURNING id::text, code, type, value, min_order_amount, starts_at, ends_at, max_uses, used_count, is_active, created_at
`, domain.CanonicalCode(in.Code), string(in.Type), in.Value, minOrder, in.StartsAt, in.EndsAt, in.MaxUses, in.Active))
	if err != nil {
		r.logger.Error("discount repo: upsert", zap.String("code", in.Code), zap.Error(err))
		return nil, err
	}
	return d, nil
}

// IncrementUsage consumes one use of the code. The increment only applies
// while the code is active and below its usage limit, so concurrent
// checkouts can never push used_count past max_uses.
func IncrementUsage(ctx context.Context, q db.Querier, id string) error {
	tag, err := q.Exec(ctx, `
UPDATE discount_codes
SET used_count = used_count + 1
WHERE id = $1 AND is_active AND (max_uses IS NULL OR used_count < max_uses)
`, id)
	if err != nil {
		return fmt.Errorf("increment discount usage %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var active bool
	err = q.QueryRow(ctx, `SELECT is_active FROM discount_codes WHERE id = $1`, id).Scan(&active)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrInvalidCode
	case err != nil:
		return fmt.Errorf("read discount %s: %w", id, err)
	case !active:
		return domain.ErrCodeInactive
	default:
		return domain.ErrUsageLimitReached
	}
}

func scanDiscount(row pgx.Row) (*domain.DiscountCode, error) {
	var (
		d        domain.DiscountCode
		typ      string
		minOrder decimal.NullDecimal
	)
	err := row.Scan(
		&d.ID,
		&d.Code,
		&typ,
		&d.Value,
		&minOrder,
		&d.StartsAt,
		&d.EndsAt,
		&d.MaxUses,
		&d.UsedCount,
		&d.Active,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	d.Type = domain.DiscountType(typ)
	if minOrder.Valid {
		m := minOrder.Decimal
		d.MinOrderAmount = &m
	}
	return &d, nil
}
