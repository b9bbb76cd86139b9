package notification

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const selectNotification = `SELECT id, user_id, title, message, is_read, created_at FROM notifications`

func (s *Store) Insert(ctx context.Context, n *Notification) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO notifications (user_id, title, message)
		VALUES ($1, $2, $3)
		RETURNING id, is_read, created_at`,
		n.UserID, n.Title, n.Message,
	).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
}

// InsertForDriver files the notification under the user account behind driverID.
// It reports false when the driver does not exist.
func (s *Store) InsertForDriver(ctx context.Context, driverID int64, title, message string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO notifications (user_id, title, message)
		SELECT user_id, $2, $3 FROM drivers WHERE id = $1`,
		driverID, title, message)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListByUser(ctx context.Context, userID int64, limit int) ([]Notification, error) {
	rows, err := s.db.Query(ctx, selectNotification+`
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		n, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (s *Store) GetOwned(ctx context.Context, userID, id int64) (*Notification, error) {
	n, err := scan(s.db.QueryRow(ctx, selectNotification+` WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return n, err
}

func (s *Store) MarkRead(ctx context.Context, userID, id int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scan(row pgx.Row) (*Notification, error) {
	var n Notification
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}
