// README: Wallet ledger store; balance changes and ledger rows commit together.
package wallet

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"petride/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const selectTx = `
	SELECT id, user_id, order_id, amount, type, status, description, reference_id, created_at
	FROM wallet_transactions`

func (s *Store) Balance(ctx context.Context, userID int64) (types.Money, error) {
	var b int64
	err := s.db.QueryRow(ctx, `SELECT wallet_balance FROM users WHERE id = $1`, userID).Scan(&b)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return types.Money(b), err
}

func (s *Store) Transactions(ctx context.Context, userID int64) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, selectTx+` WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) CreatePending(ctx context.Context, t *Transaction) error {
	t.Status = StatusPending
	return s.db.QueryRow(ctx, `
		INSERT INTO wallet_transactions (user_id, amount, type, status, description, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		t.UserID, int64(t.Amount), string(t.Type), string(t.Status), t.Description, t.ReferenceID,
	).Scan(&t.ID, &t.CreatedAt)
}

// Get returns the user's transaction; another user's id reads as not found.
func (s *Store) Get(ctx context.Context, id, userID int64) (*Transaction, error) {
	return scanTx(s.db.QueryRow(ctx, selectTx+` WHERE id = $1 AND user_id = $2`, id, userID))
}

// Settle moves a pending top-up to completed and credits the balance in one
// transaction. It reports false when the row was no longer pending.
func (s *Store) Settle(ctx context.Context, id, userID int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var amount int64
	err = tx.QueryRow(ctx, `
		UPDATE wallet_transactions SET status = 'completed'
		WHERE id = $1 AND user_id = $2 AND status = 'pending'
		RETURNING amount`, id, userID,
	).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET wallet_balance = wallet_balance + $1 WHERE id = $2`, amount, userID); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *Store) MarkFailed(ctx context.Context, id, userID int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE wallet_transactions SET status = 'failed'
		WHERE id = $1 AND user_id = $2 AND status = 'pending'`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanTx(row pgx.Row) (*Transaction, error) {
	var t Transaction
	var kind, status string
	err := row.Scan(&t.ID, &t.UserID, &t.OrderID, &t.Amount, &kind, &status, &t.Description, &t.ReferenceID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Type = TxType(kind)
	t.Status = TxStatus(status)
	return &t, nil
}
