package order

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/db"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/repository/customer"
	"storefront/internal/repository/discount"
	"storefront/internal/repository/variant"
)

const selectOrder = `
SELECT o.id::text, o.order_number, o.customer_id::text, o.email, o.status,
       o.subtotal, o.discount_amount, o.shipping_cost, o.tax, o.total,
       o.shipping_address, o.note, o.created_at, o.updated_at,
       o.shipped_at, o.delivered_at, o.cancelled_at,
       d.id::text, d.code, d.type, d.value
FROM orders o
LEFT JOIN discount_codes d ON d.id = o.discount_code_id
`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger)}
}

func (r *postgresRepo) Place(ctx context.Context, in PlaceInput) (*domain.Order, error) {
	if len(in.Lines) == 0 {
		return nil, domain.ErrEmptyCart
	}
	lines := append([]PlacedLine(nil), in.Lines...)
	// Lock variants in a stable order so concurrent checkouts cannot deadlock.
	sort.Slice(lines, func(i, j int) bool { return lines[i].VariantID < lines[j].VariantID })

	o := &domain.Order{
		OrderNumber:     in.OrderNumber,
		CustomerID:      in.CustomerID,
		Email:           in.Email,
		Status:          domain.OrderStatusPaid,
		Subtotal:        in.Subtotal,
		DiscountAmount:  in.DiscountAmount,
		ShippingCost:    in.ShippingCost,
		Tax:             in.Tax,
		Total:           in.Total,
		ShippingAddress: in.ShippingAddress,
		Note:            in.Note,
		Items:           make([]domain.OrderItem, 0, len(lines)),
		Fulfillments:    []domain.Fulfillment{},
	}
	// The returned order is assembled inside the transaction. Nothing is read
	// after commit, so a committed order is never reported as a failure.
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockCartLines(ctx, tx, in.CartID, lines); err != nil {
			return err
		}

		if in.SaveAddress && in.CustomerID != nil {
			if _, err := customer.InsertAddress(ctx, tx, *in.CustomerID, in.ShippingAddress); err != nil {
				return err
			}
		}

		if err := tx.QueryRow(ctx, `
INSERT INTO orders (order_number, customer_id, email, status, subtotal, discount_amount, shipping_cost, tax, total,
                    discount_code_id, shipping_address, note)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id::text, created_at, updated_at
`, in.OrderNumber, in.CustomerID, in.Email, string(domain.OrderStatusPaid),
			in.Subtotal, in.DiscountAmount, in.ShippingCost, in.Tax, in.Total,
			in.DiscountCodeID, in.ShippingAddress, in.Note).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("order number %s: %w", in.OrderNumber, domain.ErrAlreadyExists)
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for _, l := range lines {
			item := domain.OrderItem{
				VariantID:    l.VariantID,
				ProductTitle: l.ProductTitle,
				VariantTitle: l.VariantTitle,
				SKU:          l.SKU,
				Price:        l.Price,
				Quantity:     l.Quantity,
				ImageURL:     l.ImageURL,
			}
			if err := tx.QueryRow(ctx, `
INSERT INTO order_items (order_id, variant_id, product_title, variant_title, sku, price, quantity, image_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id::text
`, o.ID, l.VariantID, l.ProductTitle, l.VariantTitle, l.SKU, l.Price, l.Quantity, l.ImageURL).Scan(&item.ID); err != nil {
				return fmt.Errorf("insert order item %s: %w", l.SKU, err)
			}
			if err := variant.Decrement(ctx, tx, l.VariantID, l.Quantity); err != nil {
				return err
			}
			o.Items = append(o.Items, item)
		}

		p := in.Payment
		p.Status = domain.PaymentStatusSucceeded
		if err := tx.QueryRow(ctx, `
INSERT INTO payments (order_id, amount, status, provider, transaction_id, card_brand, card_last4)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id::text, created_at
`, o.ID, p.Amount, string(p.Status), p.Provider, p.TransactionID, p.CardBrand, p.CardLast4).Scan(&p.ID, &p.CreatedAt); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		o.Payment = &p

		if in.DiscountCodeID != nil {
			if err := discount.IncrementUsage(ctx, tx, *in.DiscountCodeID); err != nil {
				return err
			}
			d := domain.DiscountCode{ID: *in.DiscountCodeID}
			var dType string
			if err := tx.QueryRow(ctx, `SELECT code, type, value FROM discount_codes WHERE id = $1`, d.ID).
				Scan(&d.Code, &dType, &d.Value); err != nil {
				return fmt.Errorf("read discount code: %w", err)
			}
			d.Type = domain.DiscountType(dType)
			o.Discount = &d
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, in.CartID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, in.CartID); err != nil {
			return fmt.Errorf("touch cart: %w", err)
		}
		return nil
	})
	if err != nil {
		if domain.KindOf(err) != "" {
			r.logger.Info("order repo: place rejected", zap.String("cart_id", in.CartID), zap.Error(err))
		} else {
			r.logger.Error("order repo: place", zap.String("cart_id", in.CartID), zap.Error(err))
		}
		return nil, err
	}
	sortItems(o.Items)
	r.logger.Info("order repo: placed",
		zap.String("order_id", o.ID),
		zap.String("order_number", in.OrderNumber),
		zap.String("total", in.Total.StringFixed(2)))
	return o, nil
}

// sortItems matches the ordering used when items are loaded back.
func sortItems(items []domain.OrderItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].SKU != items[j].SKU {
			return items[i].SKU < items[j].SKU
		}
		return items[i].ID < items[j].ID
	})
}

// lockCartLines takes the cart row lock and checks that the stored lines are
// exactly the ones that were priced. A concurrent checkout of the same cart
// blocks here and then sees an empty or changed cart.
func lockCartLines(ctx context.Context, tx pgx.Tx, cartID string, priced []PlacedLine) error {
	var id string
	if err := tx.QueryRow(ctx, `SELECT id::text FROM carts WHERE id = $1 FOR UPDATE`, cartID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
			return domain.ErrCartNotFound
		}
		return fmt.Errorf("lock cart: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT variant_id::text, quantity FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("read cart lines: %w", err)
	}
	stored := map[string]int{}
	for rows.Next() {
		var (
			variantID string
			qty       int
		)
		if err := rows.Scan(&variantID, &qty); err != nil {
			rows.Close()
			return err
		}
		stored[variantID] = qty
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if len(stored) == 0 {
		return domain.ErrEmptyCart
	}
	if len(stored) != len(priced) {
		return domain.ErrCartChanged
	}
	for _, l := range priced {
		if stored[l.VariantID] != l.Quantity {
			return domain.ErrCartChanged
		}
	}
	return nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.fetchOrder(ctx, selectOrder+`WHERE o.id = $1`, id)
}

func (r *postgresRepo) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return r.fetchOrder(ctx, selectOrder+`WHERE o.order_number = $1`, number)
}

func (r *postgresRepo) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, selectOrder+`
WHERE o.customer_id = $1
ORDER BY o.created_at DESC, o.id
LIMIT $2 OFFSET $3
`, customerID, limit, offset)
	if err != nil {
		if db.IsInvalidInput(err) {
			return []domain.Order{}, nil
		}
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	page := make([]*domain.Order, len(out))
	for i := range out {
		page[i] = &out[i]
	}
	if err := r.loadChildren(ctx, page...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
UPDATE orders
SET status = $3,
    updated_at = now(),
    shipped_at = CASE WHEN $3 = 'SHIPPED' THEN COALESCE(shipped_at, now()) ELSE shipped_at END,
    delivered_at = CASE WHEN $3 = 'DELIVERED' THEN now() ELSE delivered_at END,
    cancelled_at = CASE WHEN $3 = 'CANCELLED' THEN now() ELSE cancelled_at END
WHERE id = $1 AND status = $2
`, id, string(from), string(to))
		if err != nil {
			if db.IsInvalidInput(err) {
				return domain.ErrOrderNotFound
			}
			return fmt.Errorf("update order status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return domain.ErrOrderNotFound
			}
			return domain.Invalid(domain.ErrInvalidStatusTransition, fmt.Sprintf("order is no longer %s", from))
		}
		if to == domain.OrderStatusRefunded {
			if _, err := tx.Exec(ctx, `UPDATE payments SET status = $2 WHERE order_id = $1`, id, string(domain.PaymentStatusRefunded)); err != nil {
				return fmt.Errorf("refund payment: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("order repo: status changed", zap.String("order_id", id),
		zap.String("from", string(from)), zap.String("to", string(to)))
	return r.GetByID(ctx, id)
}

func (r *postgresRepo) AddFulfillment(ctx context.Context, id string, in FulfillmentInput) (*domain.Order, error) {
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
				return domain.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}
		current := domain.OrderStatus(status)
		if current != domain.OrderStatusShipped && !current.CanTransitionTo(domain.OrderStatusShipped) {
			return domain.Invalid(domain.ErrInvalidStatusTransition,
				fmt.Sprintf("cannot fulfill an order in status %s", current))
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO fulfillments (order_id, carrier, tracking_number, tracking_url)
VALUES ($1, $2, $3, $4)
`, id, in.Carrier, in.TrackingNumber, in.TrackingURL); err != nil {
			return fmt.Errorf("insert fulfillment: %w", err)
		}
		if _, err := tx.Exec(ctx, `
UPDATE orders
SET status = 'SHIPPED', shipped_at = COALESCE(shipped_at, now()), updated_at = now()
WHERE id = $1
`, id); err != nil {
			return fmt.Errorf("mark order shipped: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("order repo: fulfillment created", zap.String("order_id", id), zap.String("carrier", in.Carrier))
	return r.GetByID(ctx, id)
}

func (r *postgresRepo) fetchOrder(ctx context.Context, query string, args ...any) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// loadChildren fills items, payment and fulfillments for a page of orders
// with one query per child table.
func (r *postgresRepo) loadChildren(ctx context.Context, orders ...*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	byID := make(map[string]*domain.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
		o.Items = []domain.OrderItem{}
		o.Payment = nil
		o.Fulfillments = []domain.Fulfillment{}
	}

	rows, err := r.pool.Query(ctx, `
SELECT order_id::text, id::text, COALESCE(variant_id::text, ''), product_title, variant_title, sku, price, quantity, image_url
FROM order_items
WHERE order_id = ANY($1::text[]::uuid[])
ORDER BY sku, id
`, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	for rows.Next() {
		var (
			orderID string
			it      domain.OrderItem
		)
		if err := rows.Scan(&orderID, &it.ID, &it.VariantID, &it.ProductTitle, &it.VariantTitle, &it.SKU, &it.Price, &it.Quantity, &it.ImageURL); err != nil {
			rows.Close()
			return err
		}
		if o := byID[orderID]; o != nil {
			o.Items = append(o.Items, it)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.pool.Query(ctx, `
SELECT order_id::text, id::text, amount, status, provider, transaction_id, card_brand, card_last4, created_at
FROM payments
WHERE order_id = ANY($1::text[]::uuid[])
`, ids)
	if err != nil {
		return fmt.Errorf("load payments: %w", err)
	}
	for rows.Next() {
		var (
			orderID string
			status  string
			p       domain.Payment
		)
		if err := rows.Scan(&orderID, &p.ID, &p.Amount, &status, &p.Provider, &p.TransactionID, &p.CardBrand, &p.CardLast4, &p.CreatedAt); err != nil {
			rows.Close()
			return err
		}
		p.Status = domain.PaymentStatus(status)
		if o := byID[orderID]; o != nil {
			o.Payment = &p
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.pool.Query(ctx, `
SELECT order_id::text, id::text, carrier, tracking_number, tracking_url, shipped_at, created_at
FROM fulfillments
WHERE order_id = ANY($1::text[]::uuid[])
ORDER BY created_at ASC, id
`, ids)
	if err != nil {
		return fmt.Errorf("load fulfillments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID string
			f       domain.Fulfillment
		)
		if err := rows.Scan(&orderID, &f.ID, &f.Carrier, &f.TrackingNumber, &f.TrackingURL, &f.ShippedAt, &f.CreatedAt); err != nil {
			return err
		}
		if o := byID[orderID]; o != nil {
			o.Fulfillments = append(o.Fulfillments, f)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o             domain.Order
		status        string
		discountID    *string
		discountCode  *string
		discountType  *string
		discountValue decimal.NullDecimal
	)
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.CustomerID,
		&o.Email,
		&status,
		&o.Subtotal,
		&o.DiscountAmount,
		&o.ShippingCost,
		&o.Tax,
		&o.Total,
		&o.ShippingAddress,
		&o.Note,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.ShippedAt,
		&o.DeliveredAt,
		&o.CancelledAt,
		&discountID,
		&discountCode,
		&discountType,
		&discountValue,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	if discountID != nil {
		o.Discount = &domain.DiscountCode{
			ID:    *discountID,
			Code:  *discountCode,
			Type:  domain.DiscountType(*discountType),
			Value: discountValue.Decimal,
		}
	}
	return &o, nil
}
