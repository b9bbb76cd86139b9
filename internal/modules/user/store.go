// README: User store backed by PostgreSQL.
package user

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const selectUser = `
	SELECT id, full_name, COALESCE(email, ''), COALESCE(phone, ''), role,
	       wallet_balance, COALESCE(stripe_customer_id, ''), created_at, password_hash
	FROM users`

func (s *Store) Create(ctx context.Context, u *User, passwordHash string) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (full_name, email, phone, password_hash, role)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5)
		RETURNING id, wallet_balance, created_at`,
		u.FullName, u.Email, u.Phone, passwordHash, string(u.Role),
	).Scan(&u.ID, &u.WalletBalance, &u.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

func (s *Store) Get(ctx context.Context, id int64) (*User, error) {
	u, _, err := s.scanOne(ctx, selectUser+` WHERE id = $1`, id)
	return u, err
}

// GetByLogin matches either email or phone and also returns the password hash.
func (s *Store) GetByLogin(ctx context.Context, login string) (*User, string, error) {
	return s.scanOne(ctx, selectUser+` WHERE email = $1 OR phone = $1`, login)
}

func (s *Store) SetStripeCustomerID(ctx context.Context, id int64, customerID string) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET stripe_customer_id = $1 WHERE id = $2`, customerID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) scanOne(ctx context.Context, query string, arg any) (*User, string, error) {
	var u User
	var role, hash string
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.FullName, &u.Email, &u.Phone, &role,
		&u.WalletBalance, &u.StripeCustomerID, &u.CreatedAt, &hash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	u.Role = Role(role)
	return &u, hash, nil
}
