package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront/internal/db"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

const selectUser = `
SELECT id::text, email, password_hash, name, role, created_at
FROM users
`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres returns a Repository backed by Postgres.
func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger)}
}

func (r *postgresRepo) CreateUser(ctx context.Context, u domain.User) (*domain.User, error) {
	role := u.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	const q = `
INSERT INTO users (email, password_hash, name, role)
VALUES ($1, $2, $3, $4)
RETURNING id::text, email, password_hash, name, role, created_at
`
	out, err := r.scanUser(r.pool.QueryRow(ctx, q, strings.ToLower(u.Email), u.PasswordHash, u.Name, string(role)))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return out, nil
}

func (r *postgresRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, selectUser+`WHERE lower(email) = lower($1) LIMIT 1`, email))
}

func (r *postgresRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, selectUser+`WHERE id = $1`, id))
}

func (r *postgresRepo) EnsureCustomer(ctx context.Context, userID, email string) (*domain.Customer, error) {
	if _, err := r.pool.Exec(ctx, `
INSERT INTO customers (user_id, email)
VALUES ($1, $2)
ON CONFLICT (user_id) DO NOTHING
`, userID, strings.ToLower(email)); err != nil {
		if db.IsForeignKeyViolation(err) || db.IsInvalidInput(err) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("customer repo: ensure customer", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	var c domain.Customer
	err := r.pool.QueryRow(ctx, `
SELECT id::text, user_id::text, email, first_name, last_name, phone, created_at
FROM customers
WHERE user_id = $1
`, userID).Scan(&c.ID, &c.UserID, &c.Email, &c.FirstName, &c.LastName, &c.Phone, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *postgresRepo) ListAddresses(ctx context.Context, customerID string) ([]domain.Address, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id::text, first_name, last_name, line1, line2, city, state, postal_code, country, phone, is_default
FROM addresses
WHERE customer_id = $1
ORDER BY is_default DESC, created_at ASC
`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	out := []domain.Address{}
	for rows.Next() {
		var a domain.Address
		if err := rows.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Line1, &a.Line2, &a.City, &a.State,
			&a.PostalCode, &a.Country, &a.Phone, &a.IsDefault); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertAddress saves addr for the customer using q, so checkout can store
// it inside its own transaction. A default address demotes the previous one.
func InsertAddress(ctx context.Context, q db.Querier, customerID string, addr domain.Address) (string, error) {
	if addr.IsDefault {
		if _, err := q.Exec(ctx, `UPDATE addresses SET is_default = FALSE WHERE customer_id = $1 AND is_default`, customerID); err != nil {
			return "", fmt.Errorf("reset default address: %w", err)
		}
	}
	var id string
	err := q.QueryRow(ctx, `
INSERT INTO addresses (customer_id, first_name, last_name, line1, line2, city, state, postal_code, country, phone, is_default)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id::text
`, customerID, addr.FirstName, addr.LastName, addr.Line1, addr.Line2, addr.City, addr.State,
		addr.PostalCode, addr.Country, addr.Phone, addr.IsDefault).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert address: %w", err)
	}
	return id, nil
}

func (r *postgresRepo) scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
			return nil, domain.ErrNotFound
		}
		if !db.IsUniqueViolation(err) {
			r.logger.Error("customer repo: scan user", zap.Error(err))
		}
		return nil, err
	}
	u.Role = domain.Role(role)
	return &u, nil
}
